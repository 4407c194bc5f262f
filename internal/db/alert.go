package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

const uniqueViolation = "23505"

const alertColumns = `
	a.id, a.user_id, a.latitude::text, a.longitude::text, a.address, a.trigger_method,
	a.message, a.audio_url, a.triggered_at, a.status, a.verification_status,
	a.canceled_at, a.resolved_at, a.updated_at`

// CreateAlert inserts a new alert record into the database.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	query := `
	INSERT INTO alerts (
		id, user_id, latitude, longitude, address, trigger_method, message, audio_url,
		triggered_at, status, verification_status, updated_at
	) VALUES (
		$1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8,
		$9, $10, $11, $12
	)`
	_, err := d.Pool.Exec(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Latitude.String(),
		alert.Longitude.String(),
		alert.Address,
		alert.TriggerMethod,
		alert.Message,
		alert.AudioURL,
		alert.TriggeredAt,
		alert.Status,
		alert.VerificationStatus,
		alert.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "alerts_pkey" {
		return fmt.Errorf("alert %s already exists: %w", alert.ID, errs.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (t *dbTx) Alert(ctx context.Context, id uuid.UUID) (models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts a WHERE a.id = $1`
	alert, err := scanAlert(t.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, errs.ErrNotFound
	}
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to read alert %s: %w", id, err)
	}
	return alert, nil
}

func (t *dbTx) LockAlert(ctx context.Context, id uuid.UUID) (models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts a WHERE a.id = $1 FOR UPDATE`
	alert, err := scanAlert(t.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Alert{}, errs.ErrNotFound
	}
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to lock alert %s: %w", id, err)
	}
	return alert, nil
}

func (t *dbTx) SetAlertStatus(ctx context.Context, id uuid.UUID, status models.AlertStatus, at time.Time) error {
	query := `
	UPDATE alerts
	SET status = $1,
		updated_at = $2,
		canceled_at = CASE WHEN $1 = 'CANCELED' THEN $2 ELSE canceled_at END,
		resolved_at = CASE WHEN $1 = 'RESOLVED' THEN $2 ELSE resolved_at END
	WHERE id = $3`
	tag, err := t.q.Exec(ctx, query, string(status), at, id)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// scanAlert reads a row selected with alertColumns.
func scanAlert(row pgx.Row) (models.Alert, error) {
	var (
		a        models.Alert
		lat, lng string
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&lat,
		&lng,
		&a.Address,
		&a.TriggerMethod,
		&a.Message,
		&a.AudioURL,
		&a.TriggeredAt,
		&a.Status,
		&a.VerificationStatus,
		&a.CanceledAt,
		&a.ResolvedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return models.Alert{}, err
	}
	if a.Latitude, err = decimal.NewFromString(lat); err != nil {
		return models.Alert{}, fmt.Errorf("failed to parse latitude: %w", err)
	}
	if a.Longitude, err = decimal.NewFromString(lng); err != nil {
		return models.Alert{}, fmt.Errorf("failed to parse longitude: %w", err)
	}
	return a, nil
}
