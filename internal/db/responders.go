package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

const responderColumns = `
	r.id, r.responder_type, r.badge_number, r.status, r.is_active, r.last_status_update, r.version`

func (d *DB) Responder(ctx context.Context, id uuid.UUID) (models.Responder, error) {
	return getResponder(ctx, d.Pool, `r.id = $1`, id)
}

// UpdateAvailability is a compare-and-set on the version column.
func (d *DB) UpdateAvailability(ctx context.Context, id uuid.UUID, status models.Availability, version int64, at time.Time) error {
	query := `
	UPDATE responders
	SET status = $1, last_status_update = $2, version = version + 1
	WHERE id = $3 AND version = $4`
	tag, err := d.Pool.Exec(ctx, query, string(status), at, id, version)
	if err != nil {
		return fmt.Errorf("failed to update responder status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

func (t *dbTx) ResponderByBadge(ctx context.Context, badge string) (models.Responder, error) {
	return getResponder(ctx, t.q, `lower(r.badge_number) = lower($1)`, strings.TrimSpace(badge))
}

func (t *dbTx) Owner(ctx context.Context, userID uuid.UUID) (*models.Owner, error) {
	var o models.Owner
	err := t.q.QueryRow(ctx,
		`SELECT id, full_name, phone, email FROM users WHERE id = $1`, userID,
	).Scan(&o.ID, &o.FullName, &o.Phone, &o.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert owner: %w", err)
	}
	return &o, nil
}

func getResponder(ctx context.Context, q querier, where string, arg any) (models.Responder, error) {
	var r models.Responder
	err := q.QueryRow(ctx, `SELECT`+responderColumns+` FROM responders r WHERE `+where, arg).Scan(
		&r.ID,
		&r.Type,
		&r.BadgeNumber,
		&r.Status,
		&r.Active,
		&r.LastStatusUpdate,
		&r.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Responder{}, errs.ErrNotFound
	}
	if err != nil {
		return models.Responder{}, fmt.Errorf("failed to get responder: %w", err)
	}
	return r, nil
}
