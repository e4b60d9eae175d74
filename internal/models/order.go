package models

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle label of an order.
type OrderStatus string

const (
	StatusSent       OrderStatus = "sent" // initial status of every submitted order
	StatusReceived   OrderStatus = "received"
	StatusInProgress OrderStatus = "in_progress"
	StatusReady      OrderStatus = "ready"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus converts s into a known OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	switch status {
	case StatusSent, StatusReceived, StatusInProgress, StatusReady, StatusDelivered, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Order represents a customer order dispatched to an agency.
type Order struct {
	ID         int         `json:"id"`                    // Unique identifier for the order
	ClientID   int         `json:"client_id"`             // Client who placed the order
	AgencyID   int         `json:"agency_id"`             // Agency that fulfills the order
	CreatorID  int         `json:"creator_id"`            // Call center user who created the order
	ReceiverID int         `json:"receiver_id"`           // Agency user currently handling the order
	CreatedAt  time.Time   `json:"created_at"`            // Timestamp of the submission
	ReceivedAt *time.Time  `json:"received_at,omitempty"` // First time the order reached "received"
	Status     OrderStatus `json:"status"`                // Current lifecycle label
	Total      int64       `json:"total"`                 // Sum of line sub-totals at submission
	Notes      string      `json:"notes"`                 // Free-form notes from the call center
	Lines      []OrderLine `json:"lines,omitempty"`       // Lines of the order, filled when loaded with it
}

// OrderLine is one article entry of an order.
type OrderLine struct {
	ID          int    `json:"id"`
	OrderID     int    `json:"order_id"`
	ArticleName string `json:"article_name"`
	ArticleRef  string `json:"article_ref"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	SubTotal    int64  `json:"sub_total"`
}

// ComputeSubTotal returns quantity × unit price.
func (l OrderLine) ComputeSubTotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// OrderTotal returns the sum of the line sub-totals.
func OrderTotal(lines []OrderLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.ComputeSubTotal()
	}
	return total
}

// OrderDetail is the read-only composite returned to the front-ends.
type OrderDetail struct {
	Order
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	ClientAddress string `json:"client_address"`
	ReceiverName  string `json:"receiver_name"`
}

// AgencyOrderRow is a flattened order used by the agency report.
type AgencyOrderRow struct {
	OrderID     int
	CreatedAt   time.Time
	ReceivedAt  *time.Time
	Status      OrderStatus
	ClientName  string
	ClientPhone string
	Total       int64
	Notes       string
}
