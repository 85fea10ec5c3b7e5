package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"kontrakpro/internal/audit/metrics"
	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/storecall"
	"kontrakpro/pkg/platform/tracing"
)

const (
	resourceAuditEvent = "audit event"

	defaultMaxPageSize   = 200
	defaultMaxExportRows = 10000
	defaultSinkTimeout   = 3 * time.Second
)

// Store is the append-only event log.
type Store interface {
	Append(ctx context.Context, e *models.Event) error
	Query(ctx context.Context, q models.Query) ([]*models.Event, int, error)
}

// Sink receives each event after it is durably appended.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e *models.Event) error
}

// Service records and queries the contract audit trail.
type Service struct {
	store         Store
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
	sinks         []Sink
	storeTimeout  time.Duration
	sinkTimeout   time.Duration
	maxPageSize   int
	maxExportRows int
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

// WithSinks appends post-commit sinks. They run in order after every append.
func WithSinks(sinks ...Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.storeTimeout = d
	}
}

func WithSinkTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.sinkTimeout = d
	}
}

func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func WithMaxExportRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxExportRows = n
		}
	}
}

// New constructs a Service.
func New(store Store, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:         store,
		clock:         clk,
		logger:        slog.Default(),
		sinkTimeout:   defaultSinkTimeout,
		maxPageSize:   defaultMaxPageSize,
		maxExportRows: defaultMaxExportRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxPageSize is the largest page QueryEvents accepts.
func (s *Service) MaxPageSize() int { return s.maxPageSize }

// LogEvent validates in, stamps it with a fresh id and the current time, and
// appends it. The event is durable when LogEvent returns without error.
// Sink failures are logged and counted but never returned.
func (s *Service) LogEvent(ctx context.Context, in models.EventInput) (_ *models.Event, err error) {
	ctx, end := tracing.StartSpan(ctx, "audit.log_event", attribute.String("event_type", string(in.Type)))
	defer func() { end(err) }()

	event, err := models.NewEvent(domain.NewEventID(), in, clock.Stamp(s.clock))
	if err != nil {
		return nil, err
	}

	err = storecall.Exec(ctx, s.storeTimeout, resourceAuditEvent, func(ctx context.Context) error {
		return s.store.Append(ctx, event)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit event",
			"event_type", event.Type,
			"contract_id", event.ContractID,
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, string(event.Type),
		"log_type", "audit",
		"event_id", event.ID.String(),
		"contract_id", event.ContractID,
		"user_id", event.UserID,
	)
	if s.metrics != nil {
		s.metrics.IncrementEventsLogged(string(event.Type))
	}

	s.deliver(ctx, event)
	return event, nil
}

// deliver fans the committed event out to sinks, each under its own deadline.
func (s *Service) deliver(ctx context.Context, event *models.Event) {
	for _, sink := range s.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
		err := sink.Deliver(sinkCtx, event)
		cancel()
		if err == nil {
			continue
		}
		s.logger.WarnContext(ctx, "audit sink delivery failed",
			"sink", sink.Name(),
			"event_id", event.ID.String(),
			"error", err,
		)
		tracing.AddEvent(ctx, "sink_failed", attribute.String("sink", sink.Name()))
		if s.metrics != nil {
			s.metrics.IncrementSinkFailure(sink.Name())
		}
	}
}

// QueryEvents returns one page of events matching every predicate in q,
// newest first.
func (s *Service) QueryEvents(ctx context.Context, q models.Query) (_ *models.EventPage, err error) {
	ctx, end := tracing.StartSpan(ctx, "audit.query_events")
	defer func() { end(err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveQuery(time.Now())
	}

	q.Filter.Normalize()
	q.ApplyDefaults(s.maxPageSize)
	if err := q.Validate(s.maxPageSize); err != nil {
		return nil, err
	}

	type result struct {
		events []*models.Event
		total  int
	}
	res, err := storecall.Do(ctx, s.storeTimeout, resourceAuditEvent, func(ctx context.Context) (result, error) {
		events, total, err := s.store.Query(ctx, q)
		return result{events: events, total: total}, err
	})
	if err != nil {
		return nil, err
	}
	if res.events == nil {
		res.events = []*models.Event{}
	}
	return &models.EventPage{
		Events:     res.events,
		Pagination: models.NewPagination(q.Page, q.Limit, res.total),
	}, nil
}

// Diff lists the field-level changes between two versions of a record, in
// the shape contract_updated details expect.
func (s *Service) Diff(old, new models.Snapshot) []models.Change {
	return models.Diff(old, new)
}
