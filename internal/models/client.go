package models

import "time"

// Client represents a customer calling the call center.
type Client struct {
	ID        int       `json:"id"`         // Unique identifier for the client
	FirstName string    `json:"first_name"` // First name of the client
	LastName  string    `json:"last_name"`  // Last name of the client
	Phone     string    `json:"phone"`      // Phone number, unique across clients
	Address   string    `json:"address"`    // Delivery address
	CreatedAt time.Time `json:"created_at"` // Timestamp of when the client was created
}

// FullName returns the display name of the client.
func (c Client) FullName() string {
	return joinName(c.FirstName, c.LastName)
}
