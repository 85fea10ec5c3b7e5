// Package sweeper raises one overdue notification per overdue reminder.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	notificationModels "kontrakpro/internal/notification/models"
	"kontrakpro/internal/reminder/metrics"
	"kontrakpro/internal/reminder/models"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/platform/tracing"
)

const (
	dedupeKeyPrefix      = "reminder_overdue:"
	resourceTypeReminder = "reminder"

	defaultInterval = time.Minute
)

// Reminders lists reminders by derived status.
type Reminders interface {
	List(ctx context.Context, status models.ListStatus) ([]models.View, error)
}

// Notifier raises a notification at most once per dedupe key.
type Notifier interface {
	CreateOnce(ctx context.Context, in notificationModels.CreateInput) (*notificationModels.Notification, bool, error)
}

// Sweeper periodically turns overdue reminders into notifications.
type Sweeper struct {
	reminders Reminders
	notifier  Notifier
	clock     clock.Clock
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func New(reminders Reminders, notifier Notifier, clk clock.Clock, opts ...Option) *Sweeper {
	s := &Sweeper{
		reminders: reminders,
		notifier:  notifier,
		clock:     clk,
		interval:  defaultInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DedupeKey is the notification dedupe key for an overdue reminder.
func DedupeKey(r *models.Reminder) string {
	return dedupeKeyPrefix + r.ID.String()
}

// SweepOnce notifies every reminder that is overdue now and returns how many
// new notifications were raised. Reminders already notified are skipped by
// the dedupe key. Per-reminder failures are joined into the returned error
// and do not stop the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (_ int, err error) {
	ctx, end := tracing.StartSpan(ctx, "reminder.sweep")
	defer func() { end(err) }()
	if s.metrics != nil {
		s.metrics.IncrementSweepRun()
	}

	overdue, err := s.reminders.List(ctx, models.ListOverdue)
	if err != nil {
		return 0, fmt.Errorf("list overdue reminders: %w", err)
	}

	var (
		created int
		errs    []error
	)
	for i := range overdue {
		r := &overdue[i].Reminder
		_, isNew, err := s.notifier.CreateOnce(ctx, notificationModels.CreateInput{
			Type:         notificationModels.TypeReminderOverdue,
			Title:        "Reminder overdue: " + r.Title,
			Message:      fmt.Sprintf("%s was due %s", r.Title, r.DueDate.Format(time.RFC3339)),
			Priority:     notificationModels.PriorityHigh,
			ResourceType: resourceTypeReminder,
			ResourceID:   r.ID.String(),
			DedupeKey:    DedupeKey(r),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("reminder %s: %w", r.ID, err))
			if s.metrics != nil {
				s.metrics.IncrementSweepFailure()
			}
			continue
		}
		if isNew {
			created++
			if s.metrics != nil {
				s.metrics.IncrementOverdueNotified()
			}
		}
	}

	tracing.AddEvent(ctx, "sweep_done",
		attribute.Int("overdue", len(overdue)),
		attribute.Int("created", created),
	)
	return created, errors.Join(errs...)
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	created, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "overdue sweep incomplete",
			"created", created,
			"error", err,
		)
		return
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "overdue reminders notified", "created", created)
	}
}
