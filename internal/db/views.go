package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"dispatch-service/internal/models"
)

func (d *DB) PendingAlerts(ctx context.Context, responderID uuid.UUID) ([]models.PendingAlert, error) {
	query := `
	SELECT` + alertColumns + `, COALESCE(ar.notes = 'forwarded', FALSE)
	FROM alerts a
	LEFT JOIN alert_responders ar ON ar.alert_id = a.id AND ar.responder_id = $1
	WHERE a.status = 'ACTIVE' AND (ar.status IS NULL OR ar.status = 'PENDING')
	ORDER BY a.triggered_at DESC`
	rows, err := d.Pool.Query(ctx, query, responderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending alerts: %w", err)
	}
	defer rows.Close()

	list := []models.PendingAlert{}
	for rows.Next() {
		var (
			a         models.Alert
			forwarded bool
		)
		if a, err = scanAlertWith(rows, &forwarded); err != nil {
			return nil, fmt.Errorf("failed to scan pending alert: %w", err)
		}
		list = append(list, models.PendingAlert{AlertSummary: models.Summarize(a), Forwarded: forwarded})
	}
	return list, rows.Err()
}

func (d *DB) AcceptedAlerts(ctx context.Context, responderID uuid.UUID) ([]models.AcceptedAlert, error) {
	query := `
	SELECT ar.alert_id, ar.status, ar.accepted_at, ar.arrived_at, ar.eta,
		a.status, a.latitude::text, a.longitude::text, a.address, a.triggered_at
	FROM alert_responders ar
	JOIN alerts a ON a.id = ar.alert_id
	WHERE ar.responder_id = $1 AND ar.status IN ('ACCEPTED', 'CRITICAL')
	ORDER BY ar.accepted_at DESC NULLS LAST`
	rows, err := d.Pool.Query(ctx, query, responderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accepted alerts: %w", err)
	}
	defer rows.Close()

	list := []models.AcceptedAlert{}
	for rows.Next() {
		var (
			v        models.AcceptedAlert
			lat, lng string
		)
		err := rows.Scan(&v.AlertID, &v.Status, &v.AcceptedAt, &v.ArrivedAt, &v.ETA,
			&v.AlertStatus, &lat, &lng, &v.Address, &v.TriggeredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accepted alert: %w", err)
		}
		if v.Latitude, err = decimal.NewFromString(lat); err != nil {
			return nil, fmt.Errorf("failed to parse latitude: %w", err)
		}
		if v.Longitude, err = decimal.NewFromString(lng); err != nil {
			return nil, fmt.Errorf("failed to parse longitude: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (d *DB) ActiveAlerts(ctx context.Context) ([]models.AlertSummary, error) {
	query := `SELECT` + alertColumns + ` FROM alerts a WHERE a.status = 'ACTIVE' ORDER BY a.triggered_at DESC`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active alerts: %w", err)
	}
	defer rows.Close()

	list := []models.AlertSummary{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active alert: %w", err)
		}
		list = append(list, models.Summarize(a))
	}
	return list, rows.Err()
}

func (d *DB) History(ctx context.Context, responderID uuid.UUID) ([]models.HistoryEntry, error) {
	query := `
	SELECT` + alertColumns + `,` + assignmentColumns + `,
		u.id, u.full_name, u.phone, u.email
	FROM alert_responders ar
	JOIN alerts a ON a.id = ar.alert_id
	LEFT JOIN users u ON u.id = a.user_id
	WHERE ar.responder_id = $1 AND ar.status NOT IN ('PENDING', 'REJECTED')
	ORDER BY a.triggered_at DESC NULLS LAST`
	rows, err := d.Pool.Query(ctx, query, responderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get responder history: %w", err)
	}
	defer rows.Close()

	list := []models.HistoryEntry{}
	for rows.Next() {
		var (
			h        models.HistoryEntry
			ownerID  *uuid.UUID
			fullName *string
			owner    models.Owner
			lat, lng string
		)
		err := rows.Scan(
			&h.Alert.ID, &h.Alert.UserID, &lat, &lng, &h.Alert.Address, &h.Alert.TriggerMethod,
			&h.Alert.Message, &h.Alert.AudioURL, &h.Alert.TriggeredAt, &h.Alert.Status,
			&h.Alert.VerificationStatus, &h.Alert.CanceledAt, &h.Alert.ResolvedAt, &h.Alert.UpdatedAt,
			&h.Assignment.AlertID, &h.Assignment.ResponderID, &h.Assignment.Status, &h.Assignment.Notes,
			&h.Assignment.CreatedAt, &h.Assignment.AcceptedAt, &h.Assignment.ArrivedAt, &h.Assignment.ETA,
			&h.Assignment.UpdatedAt,
			&ownerID, &fullName, &owner.Phone, &owner.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if h.Alert.Latitude, err = decimal.NewFromString(lat); err != nil {
			return nil, fmt.Errorf("failed to parse latitude: %w", err)
		}
		if h.Alert.Longitude, err = decimal.NewFromString(lng); err != nil {
			return nil, fmt.Errorf("failed to parse longitude: %w", err)
		}
		if ownerID != nil {
			owner.ID = *ownerID
			if fullName != nil {
				owner.FullName = *fullName
			}
			h.Owner = &owner
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// scanAlertWith reads alertColumns followed by extra destinations.
func scanAlertWith(row pgx.Row, extra ...any) (models.Alert, error) {
	return scanAlert(extraRow{row: row, extra: extra})
}

type extraRow struct {
	row   pgx.Row
	extra []any
}

func (r extraRow) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.extra...)...)
}
