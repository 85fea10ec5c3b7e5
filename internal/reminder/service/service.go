package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"kontrakpro/internal/reminder/metrics"
	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/storecall"
	"kontrakpro/pkg/platform/tracing"
)

const resourceReminder = "reminder"

// Store persists reminders. Execute must run validate and mutate atomically
// with respect to other writers of the same reminder.
type Store interface {
	Create(ctx context.Context, r *models.Reminder) error
	FindByID(ctx context.Context, id domain.ReminderID) (*models.Reminder, error)
	List(ctx context.Context, status models.Status) ([]*models.Reminder, error)
	Execute(ctx context.Context, id domain.ReminderID, validate func(*models.Reminder) error, mutate func(*models.Reminder)) (*models.Reminder, error)
	Delete(ctx context.Context, id domain.ReminderID) error
}

// Service schedules reminders and moves them through their lifecycle.
type Service struct {
	store        Store
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.storeTimeout = d
	}
}

func New(store Store, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  clk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create schedules a pending reminder.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (_ *models.View, err error) {
	ctx, end := tracing.StartSpan(ctx, "reminder.create")
	defer func() { end(err) }()

	now := clock.Stamp(s.clock)
	r, err := models.NewReminder(domain.NewReminderID(), in, now)
	if err != nil {
		return nil, err
	}
	err = storecall.Exec(ctx, s.storeTimeout, resourceReminder, func(ctx context.Context) error {
		return s.store.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "reminder created",
		"reminder_id", r.ID.String(),
		"resource_id", r.ResourceID,
		"due_date", r.DueDate,
	)
	view := models.NewView(r, now)
	return &view, nil
}

// Get returns one reminder with its status derived now.
func (s *Service) Get(ctx context.Context, id domain.ReminderID) (_ *models.View, err error) {
	ctx, end := tracing.StartSpan(ctx, "reminder.get", attribute.String("reminder_id", id.String()))
	defer func() { end(err) }()

	r, err := storecall.Do(ctx, s.storeTimeout, resourceReminder, func(ctx context.Context) (*models.Reminder, error) {
		return s.store.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	view := models.NewView(r, clock.Stamp(s.clock))
	return &view, nil
}

// List returns reminders whose derived status matches status, due date
// ascending. Upcoming and overdue are evaluated against the clock at call
// time, never against a stored field.
func (s *Service) List(ctx context.Context, status models.ListStatus) (_ []models.View, err error) {
	ctx, end := tracing.StartSpan(ctx, "reminder.list", attribute.String("status", string(status)))
	defer func() { end(err) }()

	if status == "" {
		status = models.ListAll
	}
	reminders, err := storecall.Do(ctx, s.storeTimeout, resourceReminder, func(ctx context.Context) ([]*models.Reminder, error) {
		return s.store.List(ctx, status.StoredStatus())
	})
	if err != nil {
		return nil, err
	}

	now := clock.Stamp(s.clock)
	out := make([]models.View, 0, len(reminders))
	for _, r := range reminders {
		v := models.NewView(r, now)
		if status.Matches(v.DerivedStatus) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Complete moves a pending reminder to completed. Any other state is a
// conflict carrying the current status.
func (s *Service) Complete(ctx context.Context, id domain.ReminderID) (*models.View, error) {
	return s.transition(ctx, "reminder.complete", id, func(r *models.Reminder, now time.Time) {
		r.ApplyComplete(now)
	})
}

// Cancel moves a pending reminder to cancelled. Any other state is a
// conflict carrying the current status.
func (s *Service) Cancel(ctx context.Context, id domain.ReminderID) (*models.View, error) {
	return s.transition(ctx, "reminder.cancel", id, func(r *models.Reminder, now time.Time) {
		r.ApplyCancel(now)
	})
}

func (s *Service) transition(ctx context.Context, op string, id domain.ReminderID, apply func(*models.Reminder, time.Time)) (_ *models.View, err error) {
	ctx, end := tracing.StartSpan(ctx, op, attribute.String("reminder_id", id.String()))
	defer func() { end(err) }()

	now := clock.Stamp(s.clock)
	r, err := storecall.Do(ctx, s.storeTimeout, resourceReminder, func(ctx context.Context) (*models.Reminder, error) {
		return s.store.Execute(ctx, id,
			func(r *models.Reminder) error { return r.RequirePending() },
			func(r *models.Reminder) { apply(r, now) },
		)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
			s.metrics.IncrementConflict()
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "reminder "+string(r.Status),
		"log_type", "audit",
		"reminder_id", r.ID.String(),
		"resource_id", r.ResourceID,
	)
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(r.Status))
	}
	view := models.NewView(r, now)
	return &view, nil
}

// Delete removes a reminder regardless of its state.
func (s *Service) Delete(ctx context.Context, id domain.ReminderID) (err error) {
	ctx, end := tracing.StartSpan(ctx, "reminder.delete", attribute.String("reminder_id", id.String()))
	defer func() { end(err) }()

	err = storecall.Exec(ctx, s.storeTimeout, resourceReminder, func(ctx context.Context) error {
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "reminder deleted",
		"log_type", "audit",
		"reminder_id", id.String(),
	)
	return nil
}
