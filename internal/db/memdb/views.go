package memdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"dispatch-service/internal/models"
)

func (s *Store) PendingAlerts(_ context.Context, responderID uuid.UUID) ([]models.PendingAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PendingAlert{}
	for id, a := range s.alerts {
		if a.Status != models.AlertActive {
			continue
		}
		entry, ok := s.assignments[pairKey{id, responderID}]
		if ok && entry.Status != models.AssignmentPending {
			continue
		}
		out = append(out, models.PendingAlert{
			AlertSummary: models.Summarize(a),
			Forwarded:    ok && entry.Forwarded(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

func (s *Store) AcceptedAlerts(_ context.Context, responderID uuid.UUID) ([]models.AcceptedAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AcceptedAlert{}
	for k, entry := range s.assignments {
		if k.responderID != responderID || !entry.Status.Holds() {
			continue
		}
		a := s.alerts[k.alertID]
		out = append(out, models.AcceptedAlert{
			AlertID:     k.alertID,
			Status:      entry.Status,
			AcceptedAt:  entry.AcceptedAt,
			ArrivedAt:   entry.ArrivedAt,
			ETA:         entry.ETA,
			AlertStatus: a.Status,
			Latitude:    a.Latitude,
			Longitude:   a.Longitude,
			Address:     a.Address,
			TriggeredAt: a.TriggeredAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].AcceptedAt, out[j].AcceptedAt
		switch {
		case ai == nil:
			return false
		case aj == nil:
			return true
		default:
			return ai.After(*aj)
		}
	})
	return out, nil
}

func (s *Store) ActiveAlerts(_ context.Context) ([]models.AlertSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AlertSummary{}
	for _, a := range s.alerts {
		if a.Status == models.AlertActive {
			out = append(out, models.Summarize(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

func (s *Store) History(_ context.Context, responderID uuid.UUID) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.HistoryEntry{}
	for k, entry := range s.assignments {
		if k.responderID != responderID {
			continue
		}
		if entry.Status == models.AssignmentPending || entry.Status == models.AssignmentRejected {
			continue
		}
		h := models.HistoryEntry{Alert: s.alerts[k.alertID], Assignment: entry}
		if o, ok := s.owners[h.Alert.UserID]; ok {
			h.Owner = &o
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Alert.TriggeredAt, out[j].Alert.TriggeredAt
		switch {
		case ti.IsZero():
			return false
		case tj.IsZero():
			return true
		default:
			return ti.After(tj)
		}
	})
	return out, nil
}
