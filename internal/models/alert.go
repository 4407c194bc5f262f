package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertStatus is the authoritative lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive   AlertStatus = "ACTIVE"
	AlertAccepted AlertStatus = "ACCEPTED"
	AlertRejected AlertStatus = "REJECTED"
	AlertCanceled AlertStatus = "CANCELED"
	AlertResolved AlertStatus = "RESOLVED"
	AlertExpired  AlertStatus = "EXPIRED"
)

// ParseAlertStatus accepts any casing of a known status.
func ParseAlertStatus(s string) (AlertStatus, error) {
	st := AlertStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown alert status %q", s)
	}
	return st, nil
}

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertActive, AlertAccepted, AlertRejected, AlertCanceled, AlertResolved, AlertExpired:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Nothing ever moves back to ACTIVE.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	switch s {
	case AlertActive:
		switch next {
		case AlertAccepted, AlertRejected, AlertCanceled, AlertExpired:
			return true
		}
		return false
	case AlertAccepted:
		return next == AlertResolved
	case AlertRejected, AlertCanceled, AlertResolved, AlertExpired:
		return false
	}
	return false
}

// TriggerMethod records how the alert was raised.
type TriggerMethod string

const (
	TriggerManual    TriggerMethod = "MANUAL"
	TriggerVoice     TriggerMethod = "VOICE"
	TriggerAutomatic TriggerMethod = "AUTOMATIC"
)

func ParseTriggerMethod(s string) (TriggerMethod, error) {
	m := TriggerMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case TriggerManual, TriggerVoice, TriggerAutomatic:
		return m, nil
	case "":
		return TriggerManual, nil
	}
	return "", fmt.Errorf("unknown trigger method %q", s)
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Alert is a single emergency trigger event.
type Alert struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"userId"`
	Latitude           decimal.Decimal    `json:"latitude"`
	Longitude          decimal.Decimal    `json:"longitude"`
	Address            *string            `json:"address,omitempty"`
	TriggerMethod      TriggerMethod      `json:"triggerMethod"`
	Message            *string            `json:"message,omitempty"`
	AudioURL           *string            `json:"audioUrl,omitempty"`
	TriggeredAt        time.Time          `json:"triggeredAt"`
	Status             AlertStatus        `json:"status"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	ResolvedAt         *time.Time         `json:"resolvedAt,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// NewAlert returns an ACTIVE alert with a fresh id.
func NewAlert(userID uuid.UUID, lat, lng decimal.Decimal, method TriggerMethod, at time.Time) Alert {
	return Alert{
		ID:                 uuid.New(),
		UserID:             userID,
		Latitude:           lat.Round(7),
		Longitude:          lng.Round(7),
		TriggerMethod:      method,
		TriggeredAt:        at,
		Status:             AlertActive,
		VerificationStatus: VerificationPending,
		UpdatedAt:          at,
	}
}
