package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

// InMemory keeps reminders in a map guarded by one mutex. Every read returns
// a clone.
type InMemory struct {
	mu        sync.RWMutex
	reminders map[domain.ReminderID]*models.Reminder
}

func NewInMemory() *InMemory {
	return &InMemory{reminders: make(map[domain.ReminderID]*models.Reminder)}
}

func (s *InMemory) Create(ctx context.Context, r *models.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.ID]; ok {
		return fmt.Errorf("reminder %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.reminders[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.ReminderID) (*models.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns reminders with the given stored status, or all when status is
// empty, due date ascending.
func (s *InMemory) List(ctx context.Context, status models.Status) ([]*models.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if status == "" || r.Status == status {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return models.DueFirst(out[i], out[j]) })
	return out, nil
}

// Execute runs validate then mutate on a copy under the write lock, so two
// racing transitions on one reminder are serialized and the loser sees the
// winner's state.
func (s *InMemory) Execute(ctx context.Context, id domain.ReminderID, validate func(*models.Reminder) error, mutate func(*models.Reminder)) (*models.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.reminders[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r := current.Clone()
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	s.reminders[id] = r
	return r.Clone(), nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.ReminderID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.reminders, id)
	return nil
}
