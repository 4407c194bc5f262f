// Package memdb is an in-process implementation of the coordination store.
// Transactions are serialized by a single mutex and their writes are staged
// until the callback returns nil.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispatch-service/internal/coordination"
	"dispatch-service/internal/errs"
	"dispatch-service/internal/models"
)

type pairKey struct {
	alertID     uuid.UUID
	responderID uuid.UUID
}

type Store struct {
	mu          sync.Mutex
	alerts      map[uuid.UUID]models.Alert
	assignments map[pairKey]models.Assignment
	responders  map[uuid.UUID]models.Responder
	owners      map[uuid.UUID]models.Owner
}

var _ coordination.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		alerts:      make(map[uuid.UUID]models.Alert),
		assignments: make(map[pairKey]models.Assignment),
		responders:  make(map[uuid.UUID]models.Responder),
		owners:      make(map[uuid.UUID]models.Owner),
	}
}

// PutResponder inserts or replaces a responder. Badge numbers must be unique.
func (s *Store) PutResponder(r models.Responder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.responders {
		if id != r.ID && strings.EqualFold(other.BadgeNumber, r.BadgeNumber) {
			return fmt.Errorf("badge number %s already assigned", r.BadgeNumber)
		}
	}
	s.responders[r.ID] = r
	return nil
}

func (s *Store) PutOwner(o models.Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.ID] = o
}

// Alert returns a committed alert, for inspection.
func (s *Store) Alert(id uuid.UUID) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	return a, ok
}

// Assignments returns all committed entries for an alert, for inspection.
func (s *Store) Assignments(alertID uuid.UUID) []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for k, a := range s.assignments {
		if k.alertID == alertID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponderID.String() < out[j].ResponderID.String() })
	return out
}

func (s *Store) CreateAlert(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists: %w", alert.ID, errs.ErrConflict)
	}
	s.alerts[alert.ID] = alert
	return nil
}

func (s *Store) Responder(_ context.Context, id uuid.UUID) (models.Responder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responders[id]
	if !ok {
		return models.Responder{}, errs.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateAvailability(_ context.Context, id uuid.UUID, status models.Availability, version int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responders[id]
	if !ok {
		return errs.ErrNotFound
	}
	if r.Version != version {
		return errs.ErrConflict
	}
	r.Status = status
	r.Version++
	r.LastStatusUpdate = &at
	s.responders[id] = r
	return nil
}

func (s *Store) InTx(ctx context.Context, fn func(coordination.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:           s,
		alerts:      make(map[uuid.UUID]models.Alert),
		assignments: make(map[pairKey]models.Assignment),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, a := range tx.alerts {
		s.alerts[id] = a
	}
	for k, a := range tx.assignments {
		s.assignments[k] = a
	}
	return nil
}

// memTx reads through its staged writes to the committed maps. The store
// mutex is held for its whole lifetime.
type memTx struct {
	s           *Store
	alerts      map[uuid.UUID]models.Alert
	assignments map[pairKey]models.Assignment
}

func (t *memTx) alert(id uuid.UUID) (models.Alert, bool) {
	if a, ok := t.alerts[id]; ok {
		return a, true
	}
	a, ok := t.s.alerts[id]
	return a, ok
}

func (t *memTx) Alert(_ context.Context, id uuid.UUID) (models.Alert, error) {
	a, ok := t.alert(id)
	if !ok {
		return models.Alert{}, errs.ErrNotFound
	}
	return a, nil
}

// LockAlert is a plain read: the store mutex already serializes transactions.
func (t *memTx) LockAlert(_ context.Context, id uuid.UUID) (models.Alert, error) {
	a, ok := t.alert(id)
	if !ok {
		return models.Alert{}, errs.ErrNotFound
	}
	return a, nil
}

func (t *memTx) SetAlertStatus(_ context.Context, id uuid.UUID, status models.AlertStatus, at time.Time) error {
	a, ok := t.alert(id)
	if !ok {
		return errs.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	switch status {
	case models.AlertCanceled:
		a.CanceledAt = &at
	case models.AlertResolved:
		a.ResolvedAt = &at
	}
	t.alerts[id] = a
	return nil
}

func (t *memTx) Assignment(_ context.Context, alertID, responderID uuid.UUID) (models.Assignment, bool, error) {
	k := pairKey{alertID, responderID}
	if a, ok := t.assignments[k]; ok {
		return a, true, nil
	}
	a, ok := t.s.assignments[k]
	return a, ok, nil
}

func (t *memTx) UpsertAssignment(_ context.Context, a models.Assignment) error {
	if _, ok := t.alert(a.AlertID); !ok {
		return fmt.Errorf("alert %s does not exist", a.AlertID)
	}
	if _, ok := t.s.responders[a.ResponderID]; !ok {
		return fmt.Errorf("responder %s does not exist", a.ResponderID)
	}
	t.assignments[pairKey{a.AlertID, a.ResponderID}] = a
	return nil
}

func (t *memTx) OpenStakeholders(ctx context.Context, alertID, exclude uuid.UUID) (int, error) {
	n := 0
	for id, r := range t.s.responders {
		if id == exclude || !r.Active || r.Status == models.OffDuty {
			continue
		}
		entry, ok, _ := t.Assignment(ctx, alertID, id)
		if !ok || entry.Status == models.AssignmentPending || entry.Status.Holds() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ResponderByBadge(_ context.Context, badge string) (models.Responder, error) {
	for _, r := range t.s.responders {
		if strings.EqualFold(r.BadgeNumber, badge) {
			return r, nil
		}
	}
	return models.Responder{}, errs.ErrNotFound
}

func (t *memTx) Owner(_ context.Context, userID uuid.UUID) (*models.Owner, error) {
	o, ok := t.s.owners[userID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}
