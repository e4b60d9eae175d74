package models

import (
	"strings"
	"time"
)

// Role is the enumerated role of a user.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleCallCenterAgent Role = "call_center_agent"
	RoleAgencyAgent     Role = "agency_agent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCallCenterAgent, RoleAgencyAgent:
		return true
	default:
		return false
	}
}

// User represents a call center or agency operator.
// The credential hash is never read by the dispatch core.
type User struct {
	ID           int        `json:"id"`                       // Unique identifier for the user
	AgencyID     int        `json:"agency_id"`                // Agency the user belongs to
	FirstName    string     `json:"first_name"`               // First name of the user
	LastName     string     `json:"last_name"`                // Last name of the user
	Email        string     `json:"email"`                    // Email address used as login
	Phone        string     `json:"phone"`                    // Phone number of the user
	Role         Role       `json:"role"`                     // Role of the user
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`  // Last time the user logged in
	LastLogoutAt *time.Time `json:"last_logout_at,omitempty"` // Last time the user logged out
}

// FullName returns the display name of the user.
func (u User) FullName() string {
	return joinName(u.FirstName, u.LastName)
}

// Principal is the authenticated caller supplied by the credential layer.
type Principal struct {
	UserID int
	Role   Role
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
