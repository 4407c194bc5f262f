package coordination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
	"dispatch-service/internal/utils"
)

func isConflict(err error) bool { return errors.Is(err, errs.ErrConflict) }

// SetAvailability changes the responder's duty status under optimistic
// concurrency. A lost race is retried a bounded number of times before
// errs.ErrConflict is returned.
func (e *Engine) SetAvailability(ctx context.Context, responderID uuid.UUID, raw string) (models.Responder, error) {
	status, err := models.ParseAvailability(raw)
	if err != nil {
		return models.Responder{}, fmt.Errorf("%w: status must be one of AVAILABLE, BUSY, OFF_DUTY", errs.ErrInvalidArgument)
	}

	var (
		updated  models.Responder
		attempts int
	)
	err = utils.RetryOn(ctx, e.logger, e.availAttempts, e.availRetryBase, isConflict, func(attempt int) error {
		attempts = attempt
		r, err := e.store.Responder(ctx, responderID)
		if err != nil {
			return err
		}
		now := e.now()
		if err := e.store.UpdateAvailability(ctx, responderID, status, r.Version, now); err != nil {
			return err
		}
		r.Status = status
		r.Version++
		r.LastStatusUpdate = &now
		updated = r
		return nil
	})
	e.metrics.ObserveAvailabilityAttempts(attempts)
	e.metrics.ObserveAction("availability", err)
	if err != nil {
		return models.Responder{}, fmt.Errorf("set availability for responder %s: %w", responderID, err)
	}
	e.logger.WithFields(logrus.Fields{
		"responder_id": responderID,
		"status":       status,
		"attempts":     attempts,
	}).Info("Responder availability updated")
	return updated, nil
}

// Profile returns the responder record for the caller.
func (e *Engine) Profile(ctx context.Context, responderID uuid.UUID) (models.Responder, error) {
	r, err := e.store.Responder(ctx, responderID)
	if err != nil {
		return models.Responder{}, fmt.Errorf("load responder %s: %w", responderID, err)
	}
	return r, nil
}
