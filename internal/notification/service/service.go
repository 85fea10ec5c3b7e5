package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"kontrakpro/internal/notification/metrics"
	"kontrakpro/internal/notification/models"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/storecall"
	"kontrakpro/pkg/platform/tracing"
)

const (
	resourceNotification = "notification"

	defaultMarkAllConcurrency = 8
)

// Store persists notifications. Execute must apply validate and mutate
// atomically with respect to other writers of the same record.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateIfAbsent(ctx context.Context, n *models.Notification) (*models.Notification, bool, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Notification, error)
	CountUnread(ctx context.Context) (int, error)
	Execute(ctx context.Context, id domain.NotificationID, validate func(*models.Notification) error, mutate func(*models.Notification)) (*models.Notification, error)
}

// Service raises notifications and tracks their read state.
type Service struct {
	store        Store
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
	concurrency  int
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

// WithMarkAllConcurrency bounds how many records MarkAllRead updates at once.
func WithMarkAllConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(store Store, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:       store,
		clock:       clk,
		logger:      slog.Default(),
		concurrency: defaultMarkAllConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create raises an unread notification.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (_ *models.Notification, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.create", attribute.String("type", in.Type))
	defer func() { end(err) }()

	n, err := models.NewNotification(domain.NewNotificationID(), in, clock.Stamp(s.clock))
	if err != nil {
		return nil, err
	}
	err = storecall.Exec(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) error {
		return s.store.Create(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	s.created(ctx, n)
	return n, nil
}

// CreateOnce raises a notification unless one already exists for
// in.DedupeKey, in which case the existing one is returned with
// created=false.
func (s *Service) CreateOnce(ctx context.Context, in models.CreateInput) (_ *models.Notification, created bool, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.create_once", attribute.String("dedupe_key", in.DedupeKey))
	defer func() { end(err) }()

	n, err := models.NewNotification(domain.NewNotificationID(), in, clock.Stamp(s.clock))
	if err != nil {
		return nil, false, err
	}
	if n.DedupeKey == "" {
		return nil, false, dErrors.Validation("dedupeKey", "dedupeKey is required")
	}

	type result struct {
		n       *models.Notification
		created bool
	}
	res, err := storecall.Do(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) (result, error) {
		got, created, err := s.store.CreateIfAbsent(ctx, n)
		return result{n: got, created: created}, err
	})
	if err != nil {
		return nil, false, err
	}
	if res.created {
		s.created(ctx, res.n)
	} else if s.metrics != nil {
		s.metrics.IncrementDeduplicated()
	}
	return res.n, res.created, nil
}

func (s *Service) created(ctx context.Context, n *models.Notification) {
	s.logger.InfoContext(ctx, "notification created",
		"notification_id", n.ID.String(),
		"type", n.Type,
		"priority", n.Priority,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated(n.Type, string(n.Priority))
	}
}

// List returns notifications matching f, newest first.
func (s *Service) List(ctx context.Context, f models.ListFilter) (_ []*models.Notification, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.list")
	defer func() { end(err) }()

	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out, err := storecall.Do(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) ([]*models.Notification, error) {
		return s.store.List(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Notification{}
	}
	return out, nil
}

// MarkRead moves a notification to read. Marking an already-read
// notification succeeds and keeps its original readAt.
func (s *Service) MarkRead(ctx context.Context, id domain.NotificationID) (_ *models.Notification, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.mark_read", attribute.String("notification_id", id.String()))
	defer func() { end(err) }()

	return s.markRead(ctx, id)
}

func (s *Service) markRead(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	now := clock.Stamp(s.clock)
	var transitioned bool
	n, err := storecall.Do(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) (*models.Notification, error) {
		return s.store.Execute(ctx, id,
			func(n *models.Notification) error {
				transitioned = !n.IsRead()
				return nil
			},
			func(n *models.Notification) {
				n.ApplyRead(now)
			},
		)
	})
	if err != nil {
		return nil, err
	}
	if transitioned && s.metrics != nil {
		s.metrics.IncrementMarkedRead()
	}
	return n, nil
}

// MarkAllRead marks every notification that is unread when the call starts.
// Records are updated concurrently and independently; a failure on one does
// not undo the others. If ctx ends before an id is dispatched, that id is
// reported failed.
func (s *Service) MarkAllRead(ctx context.Context) (_ *models.MarkAllResult, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.mark_all_read")
	defer func() { end(err) }()

	unread, err := storecall.Do(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) ([]*models.Notification, error) {
		return s.store.List(ctx, models.ListFilter{Status: models.StatusUnread})
	})
	if err != nil {
		return nil, err
	}

	errs := make([]error, len(unread))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, n := range unread {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for j := i; j < len(unread); j++ {
				errs[j] = storecall.Translate(ctxErr, resourceNotification)
			}
			break
		}
		g.Go(func() error {
			_, errs[i] = s.markRead(ctx, n.ID)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.MarkAllResult{
		Succeeded: make([]domain.NotificationID, 0, len(unread)),
		Failed:    []domain.NotificationID{},
	}
	for i, n := range unread {
		if errs[i] == nil {
			result.Succeeded = append(result.Succeeded, n.ID)
			continue
		}
		s.logger.WarnContext(ctx, "failed to mark notification read",
			"notification_id", n.ID.String(),
			"error", errs[i],
		)
		result.Fail(n.ID, errs[i])
		if s.metrics != nil {
			s.metrics.IncrementMarkAllFailure()
		}
	}

	s.logger.InfoContext(ctx, "mark all read completed",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}

// UnreadCount returns how many notifications are unread.
func (s *Service) UnreadCount(ctx context.Context) (_ int, err error) {
	ctx, end := tracing.StartSpan(ctx, "notification.unread_count")
	defer func() { end(err) }()

	return storecall.Do(ctx, s.storeTimeout, resourceNotification, func(ctx context.Context) (int, error) {
		return s.store.CountUnread(ctx)
	})
}
