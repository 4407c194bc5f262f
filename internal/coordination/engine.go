// Package coordination implements the alert lifecycle and the responder
// accept/reject/forward protocol on top of a transactional Store.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/models"
)

// RejectPolicy decides when a first-touch rejection demotes the whole alert.
type RejectPolicy string

const (
	// RejectLastResponder demotes the alert only when no other on-duty
	// responder still has an open stake in it.
	RejectLastResponder RejectPolicy = "last-responder"
	// RejectLegacy demotes the alert on every first-touch rejection.
	RejectLegacy RejectPolicy = "legacy"
)

func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch p := RejectPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case RejectLastResponder, RejectLegacy:
		return p, nil
	case "":
		return RejectLastResponder, nil
	default:
		return "", fmt.Errorf("unknown reject policy %q", s)
	}
}

const maxETALength = 64

// Engine applies responder and owner actions to alerts and ledger entries.
type Engine struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	rejectPolicy   RejectPolicy
	availAttempts  int
	availRetryBase time.Duration
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithRejectPolicy(p RejectPolicy) Option { return func(e *Engine) { e.rejectPolicy = p } }

// WithAvailabilityRetry bounds the optimistic retry loop of SetAvailability.
func WithAvailabilityRetry(attempts int, base time.Duration) Option {
	return func(e *Engine) {
		e.availAttempts = attempts
		e.availRetryBase = base
	}
}

func New(store Store, logger *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		notifier:       nopNotifier{},
		logger:         logger,
		now:            time.Now,
		rejectPolicy:   RejectLastResponder,
		availAttempts:  3,
		availRetryBase: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RaiseAlert stores a freshly triggered alert and announces it to all responders.
func (e *Engine) RaiseAlert(ctx context.Context, alert models.Alert) error {
	if alert.ID == uuid.Nil || alert.UserID == uuid.Nil {
		return fmt.Errorf("%w: alert and user ids are required", errs.ErrInvalidArgument)
	}
	if alert.Status != models.AlertActive {
		return fmt.Errorf("%w: new alerts must be ACTIVE", errs.ErrInvalidArgument)
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		e.metrics.ObserveAction("raise", err)
		return fmt.Errorf("raise alert %s: %w", alert.ID, err)
	}
	e.metrics.ObserveAction("raise", nil)
	e.emit(ctx, models.EventAlertCreated, alert.ID, models.AlertActive, alert.UserID, nil, "")
	return nil
}

// AcceptAlert makes responderID the single owner of an ACTIVE alert.
func (e *Engine) AcceptAlert(ctx context.Context, alertID, responderID uuid.UUID) (models.Assignment, error) {
	now := e.now()
	var entry models.Assignment
	err := e.store.InTx(ctx, func(tx Tx) error {
		alert, err := lockActive(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if !alert.Status.CanTransition(models.AlertAccepted) {
			return errs.ErrNotFoundOrInactive
		}
		entry, err = touch(ctx, tx, alertID, responderID, now)
		if err != nil {
			return err
		}
		entry.Status = models.AssignmentAccepted
		entry.AcceptedAt = &now
		entry.UpdatedAt = now
		if err := tx.UpsertAssignment(ctx, entry); err != nil {
			return err
		}
		return tx.SetAlertStatus(ctx, alertID, models.AlertAccepted, now)
	})
	e.metrics.ObserveAction("accept", err)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("accept alert %s: %w", alertID, err)
	}
	e.log(alertID, responderID).Info("Alert accepted")
	e.emit(ctx, models.EventAlertAccepted, alertID, models.AlertAccepted, responderID, nil, "")
	return entry, nil
}

// RejectAlert records that responderID declines the alert.
func (e *Engine) RejectAlert(ctx context.Context, alertID, responderID uuid.UUID) (models.Assignment, error) {
	now := e.now()
	var (
		entry       models.Assignment
		alertStatus models.AlertStatus
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		alert, err := lockActive(ctx, tx, alertID)
		if err != nil {
			return err
		}
		alertStatus = alert.Status
		existing, ok, err := tx.Assignment(ctx, alertID, responderID)
		if err != nil {
			return err
		}
		if ok {
			// The holder must resolve; rejecting would leave an ACCEPTED alert with no owner.
			if existing.Status.Holds() {
				return errs.ErrNotFoundOrInactive
			}
			existing.Status = models.AssignmentRejected
			existing.UpdatedAt = now
			entry = existing
			return tx.UpsertAssignment(ctx, entry)
		}

		if alert.Status != models.AlertActive {
			return errs.ErrNotFoundOrInactive
		}
		entry = models.Assignment{
			AlertID:     alertID,
			ResponderID: responderID,
			Status:      models.AssignmentRejected,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.UpsertAssignment(ctx, entry); err != nil {
			return err
		}
		alertStatus = alert.Status

		demote, err := e.shouldDemote(ctx, tx, alertID, responderID)
		if err != nil || !demote {
			return err
		}
		alertStatus = models.AlertRejected
		return tx.SetAlertStatus(ctx, alertID, models.AlertRejected, now)
	})
	e.metrics.ObserveAction("reject", err)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("reject alert %s: %w", alertID, err)
	}
	e.log(alertID, responderID).WithField("alert_status", alertStatus).Info("Alert rejected")
	e.emit(ctx, models.EventAlertRejected, alertID, alertStatus, responderID, nil, "")
	return entry, nil
}

func (e *Engine) shouldDemote(ctx context.Context, tx Tx, alertID, responderID uuid.UUID) (bool, error) {
	switch e.rejectPolicy {
	case RejectLegacy:
		return true, nil
	case RejectLastResponder:
		n, err := tx.OpenStakeholders(ctx, alertID, responderID)
		if err != nil {
			return false, err
		}
		return n == 0, nil
	default:
		return false, fmt.Errorf("unsupported reject policy %q", e.rejectPolicy)
	}
}

// ForwardAlert hands an ACTIVE alert from one responder to the responder
// holding targetBadge. Both ledger writes share one transaction.
func (e *Engine) ForwardAlert(ctx context.Context, alertID, fromResponderID uuid.UUID, targetBadge string) (models.Responder, error) {
	badge := strings.TrimSpace(targetBadge)
	if badge == "" {
		return models.Responder{}, fmt.Errorf("%w: badge number is required", errs.ErrInvalidArgument)
	}
	now := e.now()
	var target models.Responder
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		target, err = tx.ResponderByBadge(ctx, badge)
		if errors.Is(err, errs.ErrNotFound) || (err == nil && !target.Active) {
			return errs.ErrResponderNotFound
		}
		if err != nil {
			return err
		}
		if target.ID == fromResponderID {
			return fmt.Errorf("%w: cannot forward an alert to yourself", errs.ErrInvalidArgument)
		}

		alert, err := lockActive(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != models.AlertActive {
			return errs.ErrNotFoundOrInactive
		}

		from, err := touch(ctx, tx, alertID, fromResponderID, now)
		if err != nil {
			return err
		}
		from.Status = models.AssignmentForwarded
		from.UpdatedAt = now
		if err := tx.UpsertAssignment(ctx, from); err != nil {
			return err
		}

		to, err := touch(ctx, tx, alertID, target.ID, now)
		if err != nil {
			return err
		}
		to.Status = models.AssignmentPending
		to.Notes = models.NotesForwarded
		to.AcceptedAt = nil
		to.UpdatedAt = now
		return tx.UpsertAssignment(ctx, to)
	})
	e.metrics.ObserveAction("forward", err)
	if err != nil {
		return models.Responder{}, fmt.Errorf("forward alert %s: %w", alertID, err)
	}
	e.log(alertID, fromResponderID).WithField("badge", badge).Info("Alert forwarded")
	e.emit(ctx, models.EventAlertForwarded, alertID, models.AlertActive, fromResponderID, &target.ID, target.BadgeNumber)
	return target, nil
}

// CancelAlert lets the alert's owner withdraw it while it is still ACTIVE.
// Every failure is reported as errs.ErrNotFoundOrUnauthorized.
func (e *Engine) CancelAlert(ctx context.Context, alertID, ownerUserID uuid.UUID) error {
	now := e.now()
	err := e.store.InTx(ctx, func(tx Tx) error {
		alert, err := tx.LockAlert(ctx, alertID)
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFoundOrUnauthorized
		}
		if err != nil {
			return err
		}
		if alert.UserID != ownerUserID || !alert.Status.CanTransition(models.AlertCanceled) {
			return errs.ErrNotFoundOrUnauthorized
		}
		return tx.SetAlertStatus(ctx, alertID, models.AlertCanceled, now)
	})
	e.metrics.ObserveAction("cancel", err)
	if err != nil {
		return fmt.Errorf("cancel alert %s: %w", alertID, err)
	}
	e.logger.WithFields(logrus.Fields{"alert_id": alertID, "user_id": ownerUserID}).Info("Alert canceled by owner")
	e.emit(ctx, models.EventAlertCanceled, alertID, models.AlertCanceled, ownerUserID, nil, "")
	return nil
}

// ResolveAlert closes an alert the caller has accepted.
func (e *Engine) ResolveAlert(ctx context.Context, alertID, responderID uuid.UUID) error {
	now := e.now()
	err := e.store.InTx(ctx, func(tx Tx) error {
		alert, err := lockActive(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if !alert.Status.CanTransition(models.AlertResolved) {
			return errs.ErrNotFoundOrInactive
		}
		entry, ok, err := tx.Assignment(ctx, alertID, responderID)
		if err != nil {
			return err
		}
		if !ok || !entry.Status.Holds() {
			return errs.ErrNotFoundOrInactive
		}
		return tx.SetAlertStatus(ctx, alertID, models.AlertResolved, now)
	})
	e.metrics.ObserveAction("resolve", err)
	if err != nil {
		return fmt.Errorf("resolve alert %s: %w", alertID, err)
	}
	e.log(alertID, responderID).Info("Alert resolved")
	e.emit(ctx, models.EventAlertResolved, alertID, models.AlertResolved, responderID, nil, "")
	return nil
}

// UpdateArrival records the ETA and, optionally, arrival of the responder
// holding the alert.
func (e *Engine) UpdateArrival(ctx context.Context, alertID, responderID uuid.UUID, eta *string, arrived bool) (models.Assignment, error) {
	if eta != nil {
		trimmed := strings.TrimSpace(*eta)
		if len(trimmed) > maxETALength {
			return models.Assignment{}, fmt.Errorf("%w: eta must be at most %d characters", errs.ErrInvalidArgument, maxETALength)
		}
		if trimmed == "" {
			eta = nil
		} else {
			eta = &trimmed
		}
	}
	now := e.now()
	var entry models.Assignment
	err := e.store.InTx(ctx, func(tx Tx) error {
		var (
			ok  bool
			err error
		)
		entry, ok, err = tx.Assignment(ctx, alertID, responderID)
		if err != nil {
			return err
		}
		if !ok || !entry.Status.Holds() {
			return errs.ErrNotFoundOrInactive
		}
		if eta != nil {
			entry.ETA = eta
		}
		if arrived && entry.ArrivedAt == nil {
			entry.ArrivedAt = &now
		}
		entry.UpdatedAt = now
		return tx.UpsertAssignment(ctx, entry)
	})
	e.metrics.ObserveAction("arrival", err)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("update arrival for alert %s: %w", alertID, err)
	}
	return entry, nil
}

// lockActive locks the alert and folds absence into ErrNotFoundOrInactive.
func lockActive(ctx context.Context, tx Tx, alertID uuid.UUID) (models.Alert, error) {
	alert, err := tx.LockAlert(ctx, alertID)
	if errors.Is(err, errs.ErrNotFound) {
		return models.Alert{}, errs.ErrNotFoundOrInactive
	}
	return alert, err
}

// touch returns the existing entry for the pair or a fresh one stamped now.
func touch(ctx context.Context, tx Tx, alertID, responderID uuid.UUID, now time.Time) (models.Assignment, error) {
	entry, ok, err := tx.Assignment(ctx, alertID, responderID)
	if err != nil {
		return models.Assignment{}, err
	}
	if ok {
		return entry, nil
	}
	return models.Assignment{
		AlertID:     alertID,
		ResponderID: responderID,
		Status:      models.AssignmentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (e *Engine) emit(ctx context.Context, typ models.EventType, alertID uuid.UUID, status models.AlertStatus, actor uuid.UUID, target *uuid.UUID, badge string) {
	e.notifier.Notify(ctx, models.Event{
		ID:                uuid.New(),
		Type:              typ,
		AlertID:           alertID,
		AlertStatus:       status,
		ActorID:           actor,
		TargetResponderID: target,
		BadgeNumber:       badge,
		OccurredAt:        e.now(),
	})
}

func (e *Engine) log(alertID, responderID uuid.UUID) *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{"alert_id": alertID, "responder_id": responderID})
}
