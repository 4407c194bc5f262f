package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus is one responder's relationship to one alert.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentAccepted  AssignmentStatus = "ACCEPTED"
	AssignmentRejected  AssignmentStatus = "REJECTED"
	AssignmentForwarded AssignmentStatus = "FORWARDED"
	// AssignmentCritical is only found in rows written by older clients.
	// It is read as ACCEPTED and never written.
	AssignmentCritical AssignmentStatus = "CRITICAL"
)

// NotesForwarded marks an entry created or refreshed by a handoff.
const NotesForwarded = "forwarded"

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentRejected, AssignmentForwarded, AssignmentCritical:
		return true
	}
	return false
}

// Holds reports whether the status counts as ownership of the alert.
func (s AssignmentStatus) Holds() bool {
	return s == AssignmentAccepted || s == AssignmentCritical
}

// Assignment is the ledger entry keyed by (AlertID, ResponderID).
type Assignment struct {
	AlertID     uuid.UUID        `json:"alertId"`
	ResponderID uuid.UUID        `json:"responderId"`
	Status      AssignmentStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	AcceptedAt  *time.Time       `json:"acceptedAt,omitempty"`
	ArrivedAt   *time.Time       `json:"arrivedAt,omitempty"`
	ETA         *string          `json:"eta,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Forwarded reports whether the entry came from a handoff.
func (a Assignment) Forwarded() bool {
	return a.Notes == NotesForwarded
}
