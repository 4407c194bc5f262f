package coordination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

// PendingAlerts lists ACTIVE alerts the responder has not yet acted on.
func (e *Engine) PendingAlerts(ctx context.Context, responderID uuid.UUID) ([]models.PendingAlert, error) {
	list, err := e.store.PendingAlerts(ctx, responderID)
	if err != nil {
		return nil, fmt.Errorf("list pending alerts: %w", err)
	}
	return list, nil
}

// AcceptedAlerts lists the ledger entries the responder currently holds.
func (e *Engine) AcceptedAlerts(ctx context.Context, responderID uuid.UUID) ([]models.AcceptedAlert, error) {
	list, err := e.store.AcceptedAlerts(ctx, responderID)
	if err != nil {
		return nil, fmt.Errorf("list accepted alerts: %w", err)
	}
	return list, nil
}

func (e *Engine) ActiveAlerts(ctx context.Context) ([]models.AlertSummary, error) {
	list, err := e.store.ActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return list, nil
}

// History lists the responder's past involvement, newest alert first.
func (e *Engine) History(ctx context.Context, responderID uuid.UUID) ([]models.HistoryEntry, error) {
	list, err := e.store.History(ctx, responderID)
	if err != nil {
		return nil, fmt.Errorf("list responder history: %w", err)
	}
	return list, nil
}

// AlertDetail returns the alert, its owner and the caller's ledger entry.
// Viewing an ACTIVE alert for the first time creates a PENDING entry.
func (e *Engine) AlertDetail(ctx context.Context, alertID, responderID uuid.UUID) (models.AlertDetail, error) {
	now := e.now()
	var detail models.AlertDetail
	err := e.store.InTx(ctx, func(tx Tx) error {
		alert, err := tx.Alert(ctx, alertID)
		if err != nil {
			return err
		}
		if detail.Owner, err = tx.Owner(ctx, alert.UserID); err != nil {
			return err
		}
		entry, ok, err := tx.Assignment(ctx, alertID, responderID)
		if err != nil {
			return err
		}
		if !ok && alert.Status == models.AlertActive {
			// Only the lazy insert takes the row lock; the status is re-read under it.
			if alert, err = tx.LockAlert(ctx, alertID); err != nil {
				return err
			}
			if entry, ok, err = tx.Assignment(ctx, alertID, responderID); err != nil {
				return err
			}
			if !ok && alert.Status == models.AlertActive {
				entry = models.Assignment{
					AlertID:     alertID,
					ResponderID: responderID,
					Status:      models.AssignmentPending,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := tx.UpsertAssignment(ctx, entry); err != nil {
					return err
				}
				ok = true
			}
		}
		detail.Alert = alert
		if ok {
			detail.Assignment = &entry
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.AlertDetail{}, fmt.Errorf("alert %s: %w", alertID, err)
		}
		return models.AlertDetail{}, fmt.Errorf("load alert detail %s: %w", alertID, err)
	}
	return detail, nil
}
