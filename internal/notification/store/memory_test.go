package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newNotification(title string, at time.Time) *models.Notification {
	n, err := models.NewNotification(domain.NewNotificationID(), models.CreateInput{Title: title}, at)
	s.Require().NoError(err)
	return n
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("rejects duplicate dedupe key", func() {
		s.SetupTest()
		first := s.newNotification("Overdue", s.base)
		first.DedupeKey = "reminder_overdue:r-1"
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newNotification("Overdue again", s.base)
		second.DedupeKey = "reminder_overdue:r-1"
		err := s.store.Create(s.ctx, second)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("stored record is independent of the caller's copy", func() {
		s.SetupTest()
		n := s.newNotification("Signed", s.base)
		s.Require().NoError(s.store.Create(s.ctx, n))
		n.Title = "mutated"

		got, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal("Signed", got.Title)
	})
}

func (s *InMemoryStoreSuite) TestCreateIfAbsent() {
	first := s.newNotification("Overdue", s.base)
	first.DedupeKey = "k"
	got, created, err := s.store.CreateIfAbsent(s.ctx, first)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(first.ID, got.ID)

	second := s.newNotification("Overdue", s.base.Add(time.Hour))
	second.DedupeKey = "k"
	got, created, err = s.store.CreateIfAbsent(s.ctx, second)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, got.ID)

	all, err := s.store.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *InMemoryStoreSuite) TestList() {
	older := s.newNotification("older", s.base)
	newer := s.newNotification("newer", s.base.Add(time.Minute))
	newer.Type = "contract_signed"
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	s.Run("newest first", func() {
		got, err := s.store.List(s.ctx, models.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(newer.ID, got[0].ID)
		s.Equal(older.ID, got[1].ID)
	})

	s.Run("filters by type and status", func() {
		got, err := s.store.List(s.ctx, models.ListFilter{Type: "contract_signed"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(newer.ID, got[0].ID)

		got, err = s.store.List(s.ctx, models.ListFilter{Status: models.StatusRead})
		s.Require().NoError(err)
		s.Empty(got)
		s.NotNil(got)
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	s.Run("unknown id", func() {
		s.SetupTest()
		_, err := s.store.Execute(s.ctx, domain.NewNotificationID(),
			func(*models.Notification) error { return nil },
			func(*models.Notification) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("failed validation leaves record unchanged", func() {
		s.SetupTest()
		n := s.newNotification("t", s.base)
		s.Require().NoError(s.store.Create(s.ctx, n))

		boom := errors.New("boom")
		_, err := s.store.Execute(s.ctx, n.ID,
			func(*models.Notification) error { return boom },
			func(n *models.Notification) { n.ApplyRead(time.Now()) })
		s.ErrorIs(err, boom)

		count, err := s.store.CountUnread(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, count)
	})

	s.Run("concurrent reads keep the first readAt", func() {
		s.SetupTest()
		n := s.newNotification("t", s.base)
		s.Require().NoError(s.store.Create(s.ctx, n))

		const writers = 16
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at := s.base.Add(time.Duration(i+1) * time.Second)
				_, err := s.store.Execute(s.ctx, n.ID,
					func(*models.Notification) error { return nil },
					func(n *models.Notification) { n.ApplyRead(at) })
				s.NoError(err)
			}(i)
		}
		wg.Wait()

		got, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRead, got.Status)
		s.Require().NotNil(got.ReadAt)

		// Every later transition was a no-op, so the stored readAt is one of
		// the candidates and never changes afterwards.
		first := *got.ReadAt
		_, err = s.store.Execute(s.ctx, n.ID,
			func(*models.Notification) error { return nil },
			func(n *models.Notification) { n.ApplyRead(s.base.Add(time.Hour)) })
		s.Require().NoError(err)
		again, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal(first, *again.ReadAt)
	})
}

func (s *InMemoryStoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.store.List(ctx, models.ListFilter{})
	s.ErrorIs(err, context.Canceled)
}
