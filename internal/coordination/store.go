package coordination

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/models"
)

// Store is the persistence the engine coordinates over. Implementations must
// run InTx callbacks with isolation strong enough that two transactions which
// both LockAlert the same id are serialized.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error

	CreateAlert(ctx context.Context, alert models.Alert) error

	// Responder returns errs.ErrNotFound when no responder has id.
	Responder(ctx context.Context, id uuid.UUID) (models.Responder, error)
	// UpdateAvailability writes status only if the stored version still
	// equals version, and returns errs.ErrConflict otherwise.
	UpdateAvailability(ctx context.Context, id uuid.UUID, status models.Availability, version int64, at time.Time) error

	PendingAlerts(ctx context.Context, responderID uuid.UUID) ([]models.PendingAlert, error)
	AcceptedAlerts(ctx context.Context, responderID uuid.UUID) ([]models.AcceptedAlert, error)
	ActiveAlerts(ctx context.Context) ([]models.AlertSummary, error)
	History(ctx context.Context, responderID uuid.UUID) ([]models.HistoryEntry, error)
}

// Tx is the transactional view used by a single coordination operation.
type Tx interface {
	// Alert reads the alert without locking it. It returns errs.ErrNotFound
	// when the alert does not exist.
	Alert(ctx context.Context, id uuid.UUID) (models.Alert, error)
	// LockAlert reads the alert and holds it until the transaction ends.
	// It returns errs.ErrNotFound when the alert does not exist.
	LockAlert(ctx context.Context, id uuid.UUID) (models.Alert, error)
	// SetAlertStatus also stamps canceled/resolved timestamps when relevant.
	SetAlertStatus(ctx context.Context, id uuid.UUID, status models.AlertStatus, at time.Time) error

	Assignment(ctx context.Context, alertID, responderID uuid.UUID) (models.Assignment, bool, error)
	UpsertAssignment(ctx context.Context, a models.Assignment) error
	// OpenStakeholders counts on-duty active responders other than exclude
	// that have no entry for the alert or still hold a PENDING or ACCEPTED one.
	OpenStakeholders(ctx context.Context, alertID, exclude uuid.UUID) (int, error)

	// ResponderByBadge returns errs.ErrNotFound for unknown badges.
	ResponderByBadge(ctx context.Context, badge string) (models.Responder, error)
	// Owner returns nil when the user record is gone.
	Owner(ctx context.Context, userID uuid.UUID) (*models.Owner, error)
}

// Notifier receives committed events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Event) {}
