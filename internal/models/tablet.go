package models

import "time"

// Tablet represents a device installed in an agency that receives push notifications.
// A tablet holds at most one push token at a time.
type Tablet struct {
	ID           int       `json:"id"`                   // Unique identifier for the tablet
	SerialNumber string    `json:"serial_number"`        // Hardware serial number, unique across tablets
	AgencyID     int       `json:"agency_id"`            // Agency the tablet is assigned to
	IsActive     bool      `json:"is_active"`            // Only active tablets may register a push token
	LastSyncAt   time.Time `json:"last_sync_at"`         // Last time the tablet checked in
	PushToken    *string   `json:"push_token,omitempty"` // Current push token, nil when unregistered
}

// HasToken reports whether the tablet currently holds a push token.
func (t Tablet) HasToken() bool {
	return t.PushToken != nil && *t.PushToken != ""
}

// TabletStatus is the answer given to a tablet checking in.
type TabletStatus struct {
	IsActive   bool      `json:"is_active"`
	AgencyID   int       `json:"agency_id"`
	LastSyncAt time.Time `json:"last_sync_at"`
}
