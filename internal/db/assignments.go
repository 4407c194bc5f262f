package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dispatch-service/internal/models"
)

const assignmentColumns = `
	ar.alert_id, ar.responder_id, ar.status, ar.notes, ar.created_at,
	ar.accepted_at, ar.arrived_at, ar.eta, ar.updated_at`

func (t *dbTx) Assignment(ctx context.Context, alertID, responderID uuid.UUID) (models.Assignment, bool, error) {
	query := `SELECT` + assignmentColumns + `
	FROM alert_responders ar
	WHERE ar.alert_id = $1 AND ar.responder_id = $2`
	a, err := scanAssignment(t.q.QueryRow(ctx, query, alertID, responderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Assignment{}, false, nil
	}
	if err != nil {
		return models.Assignment{}, false, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, true, nil
}

// UpsertAssignment writes the whole entry, keyed by (alert_id, responder_id).
// created_at is kept from the first write.
func (t *dbTx) UpsertAssignment(ctx context.Context, a models.Assignment) error {
	query := `
	INSERT INTO alert_responders (
		alert_id, responder_id, status, notes, created_at, accepted_at, arrived_at, eta, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (alert_id, responder_id) DO UPDATE SET
		status = EXCLUDED.status,
		notes = EXCLUDED.notes,
		accepted_at = EXCLUDED.accepted_at,
		arrived_at = EXCLUDED.arrived_at,
		eta = EXCLUDED.eta,
		updated_at = EXCLUDED.updated_at`
	_, err := t.q.Exec(ctx, query,
		a.AlertID,
		a.ResponderID,
		string(a.Status),
		a.Notes,
		a.CreatedAt,
		a.AcceptedAt,
		a.ArrivedAt,
		a.ETA,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

func (t *dbTx) OpenStakeholders(ctx context.Context, alertID, exclude uuid.UUID) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM responders r
	LEFT JOIN alert_responders ar ON ar.responder_id = r.id AND ar.alert_id = $1
	WHERE r.id <> $2
		AND r.is_active
		AND r.status <> 'OFF_DUTY'
		AND (ar.status IS NULL OR ar.status IN ('PENDING', 'ACCEPTED', 'CRITICAL'))`
	var n int
	if err := t.q.QueryRow(ctx, query, alertID, exclude).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open stakeholders: %w", err)
	}
	return n, nil
}

func scanAssignment(row pgx.Row) (models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(
		&a.AlertID,
		&a.ResponderID,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.AcceptedAt,
		&a.ArrivedAt,
		&a.ETA,
		&a.UpdatedAt,
	)
	return a, err
}
