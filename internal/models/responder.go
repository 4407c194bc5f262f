package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ResponderType string

const (
	ResponderPolice   ResponderType = "POLICE"
	ResponderMedical  ResponderType = "MEDICAL"
	ResponderFire     ResponderType = "FIRE"
	ResponderSecurity ResponderType = "SECURITY"
	ResponderOther    ResponderType = "OTHER"
)

// Availability is the responder's self-reported duty state.
type Availability string

const (
	Available Availability = "AVAILABLE"
	Busy      Availability = "BUSY"
	OffDuty   Availability = "OFF_DUTY"
)

// ParseAvailability accepts any casing of a known availability.
func ParseAvailability(s string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case Available, Busy, OffDuty:
		return a, nil
	}
	return "", fmt.Errorf("unknown availability %q", s)
}

// Responder is a user account specialised for emergency response.
// ID equals the owning user's id.
type Responder struct {
	ID               uuid.UUID     `json:"id"`
	Type             ResponderType `json:"responderType"`
	BadgeNumber      string        `json:"badgeNumber"`
	Status           Availability  `json:"status"`
	Active           bool          `json:"active"`
	LastStatusUpdate *time.Time    `json:"lastStatusUpdate,omitempty"`
	Version          int64         `json:"-"`
}

// Owner carries the contact fields of the user who raised an alert.
type Owner struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Phone    *string   `json:"phone,omitempty"`
	Email    *string   `json:"email,omitempty"`
}

// Role is the caller's role as asserted by the identity service.
type Role string

const (
	RoleUser      Role = "USER"
	RoleResponder Role = "RESPONDER"
)
