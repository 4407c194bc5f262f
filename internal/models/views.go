package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertSummary is the compact alert shape used by list views.
type AlertSummary struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	Latitude      decimal.Decimal `json:"latitude"`
	Longitude     decimal.Decimal `json:"longitude"`
	Address       *string         `json:"address,omitempty"`
	TriggerMethod TriggerMethod   `json:"triggerMethod"`
	Message       *string         `json:"message,omitempty"`
	TriggeredAt   time.Time       `json:"triggeredAt"`
	Status        AlertStatus     `json:"status"`
}

// Summarize projects an alert onto its list shape.
func Summarize(a Alert) AlertSummary {
	return AlertSummary{
		ID:            a.ID,
		UserID:        a.UserID,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
		Address:       a.Address,
		TriggerMethod: a.TriggerMethod,
		Message:       a.Message,
		TriggeredAt:   a.TriggeredAt,
		Status:        a.Status,
	}
}

// PendingAlert is an ACTIVE alert still waiting on the responder.
type PendingAlert struct {
	AlertSummary
	Forwarded bool `json:"forwarded"`
}

// AcceptedAlert is a ledger summary for an alert the responder holds.
type AcceptedAlert struct {
	AlertID     uuid.UUID        `json:"alertId"`
	Status      AssignmentStatus `json:"status"`
	AcceptedAt  *time.Time       `json:"acceptedAt,omitempty"`
	ArrivedAt   *time.Time       `json:"arrivedAt,omitempty"`
	ETA         *string          `json:"eta,omitempty"`
	AlertStatus AlertStatus      `json:"alertStatus"`
	Latitude    decimal.Decimal  `json:"latitude"`
	Longitude   decimal.Decimal  `json:"longitude"`
	Address     *string          `json:"address,omitempty"`
	TriggeredAt time.Time        `json:"triggeredAt"`
}

// HistoryEntry joins a ledger entry with its alert and the alert owner.
type HistoryEntry struct {
	Alert      Alert      `json:"alert"`
	Assignment Assignment `json:"assignment"`
	Owner      *Owner     `json:"owner,omitempty"`
}

// AlertDetail is the full view of one alert for one responder.
type AlertDetail struct {
	Alert      Alert       `json:"alert"`
	Owner      *Owner      `json:"owner,omitempty"`
	Assignment *Assignment `json:"assignment,omitempty"`
}
