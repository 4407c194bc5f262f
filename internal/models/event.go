package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed alert transition.
type EventType string

const (
	EventAlertCreated   EventType = "alert.created"
	EventAlertAccepted  EventType = "alert.accepted"
	EventAlertRejected  EventType = "alert.rejected"
	EventAlertForwarded EventType = "alert.forwarded"
	EventAlertCanceled  EventType = "alert.canceled"
	EventAlertResolved  EventType = "alert.resolved"
)

// Event describes a committed state change for out-of-band delivery.
// A nil TargetResponderID means all connected responders.
type Event struct {
	ID                uuid.UUID   `json:"id"`
	Type              EventType   `json:"type"`
	AlertID           uuid.UUID   `json:"alertId"`
	AlertStatus       AlertStatus `json:"alertStatus"`
	ActorID           uuid.UUID   `json:"actorId"`
	TargetResponderID *uuid.UUID  `json:"targetResponderId,omitempty"`
	BadgeNumber       string      `json:"badgeNumber,omitempty"`
	OccurredAt        time.Time   `json:"occurredAt"`
}
