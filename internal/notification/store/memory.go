package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

// InMemory keeps notifications in a map guarded by one mutex. Every read
// returns a clone.
type InMemory struct {
	mu      sync.RWMutex
	records map[domain.NotificationID]*models.Notification
	byKey   map[string]domain.NotificationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[domain.NotificationID]*models.Notification),
		byKey:   make(map[string]domain.NotificationID),
	}
}

// Create stores n. A reused id or dedupe key fails with ErrConflict.
func (s *InMemory) Create(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(n)
}

// CreateIfAbsent stores n unless another notification holds its dedupe key,
// in which case that one is returned with created=false.
func (s *InMemory) CreateIfAbsent(ctx context.Context, n *models.Notification) (*models.Notification, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupeKey != "" {
		if id, ok := s.byKey[n.DedupeKey]; ok {
			return s.records[id].Clone(), false, nil
		}
	}
	if err := s.insertLocked(n); err != nil {
		return nil, false, err
	}
	return n.Clone(), true, nil
}

func (s *InMemory) insertLocked(n *models.Notification) error {
	if _, ok := s.records[n.ID]; ok {
		return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
	}
	if n.DedupeKey != "" {
		if _, ok := s.byKey[n.DedupeKey]; ok {
			return fmt.Errorf("dedupe key %q: %w", n.DedupeKey, sentinel.ErrConflict)
		}
		s.byKey[n.DedupeKey] = n.ID
	}
	s.records[n.ID] = n.Clone()
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return n.Clone(), nil
}

// List returns matching notifications newest first.
func (s *InMemory) List(ctx context.Context, f models.ListFilter) ([]*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*models.Notification, 0, len(s.records))
	for _, n := range s.records {
		if f.Matches(n) {
			out = append(out, n.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return models.Newer(out[i], out[j]) })
	return out, nil
}

func (s *InMemory) CountUnread(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.records {
		if !n.IsRead() {
			count++
		}
	}
	return count, nil
}

// Execute runs validate then mutate on a copy of the record under the write
// lock and stores the result only if validate passes.
func (s *InMemory) Execute(ctx context.Context, id domain.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	n := current.Clone()
	if err := validate(n); err != nil {
		return nil, err
	}
	mutate(n)
	s.records[id] = n
	return n.Clone(), nil
}
