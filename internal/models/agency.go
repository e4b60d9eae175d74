package models

// Agency represents a restaurant or fulfillment location that receives orders.
// It owns users, tablets and orders.
type Agency struct {
	ID       int    `json:"id"`        // Unique identifier for the agency
	Name     string `json:"name"`      // Display name of the agency
	Address  string `json:"address"`   // Postal address of the agency
	Phone    string `json:"phone"`     // Contact phone number
	IsActive bool   `json:"is_active"` // IsActive tells whether the agency is operating
}
