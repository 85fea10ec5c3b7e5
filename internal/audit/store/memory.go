package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

// record keeps the encoded event as the source of truth; the decoded copy
// is only read for filtering and never handed out.
type record struct {
	event *models.Event
	raw   []byte
}

// InMemory is an append-only event store for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	records []record
	ids     map[domain.EventID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{ids: make(map[domain.EventID]struct{})}
}

// Append stores an encoded copy of e. Reusing an id fails with ErrConflict.
func (s *InMemory) Append(ctx context.Context, e *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	stored, err := decode(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[e.ID]; ok {
		return fmt.Errorf("audit event %s: %w", e.ID, sentinel.ErrConflict)
	}
	s.ids[e.ID] = struct{}{}
	s.records = append(s.records, record{event: stored, raw: raw})
	return nil
}

// Query returns one page of matching events, newest first with ties broken
// by id descending, plus the total number of matches.
func (s *InMemory) Query(ctx context.Context, q models.Query) ([]*models.Event, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]record, 0)
	for _, r := range s.records {
		if q.Filter.Matches(r.event) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].event, matched[j].event
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID.Compare(b.ID) > 0
	})

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.Limit, total)

	events := make([]*models.Event, 0, end-start)
	for _, r := range matched[start:end] {
		e, err := decode(r.raw)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, nil
}

func decode(raw []byte) (*models.Event, error) {
	var e models.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode audit event: %w", err)
	}
	return &e, nil
}
