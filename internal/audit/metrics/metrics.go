package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module.
type Metrics struct {
	EventsLogged  *prometheus.CounterVec
	SinkFailures  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	ExportedRows  prometheus.Counter
}

// New creates audit metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kontrakpro_audit_events_logged_total",
			Help: "Audit events durably appended, by event type",
		}, []string{"event_type"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kontrakpro_audit_sink_failures_total",
			Help: "Post-commit audit sink deliveries that failed, by sink",
		}, []string{"sink"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kontrakpro_audit_query_duration_seconds",
			Help:    "Duration of audit event queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ExportedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_audit_exported_rows_total",
			Help: "Audit events written to exports",
		}),
	}
}

func (m *Metrics) IncrementEventsLogged(eventType string) {
	m.EventsLogged.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementSinkFailure(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// ObserveQuery records the duration of a query started at start.
func (m *Metrics) ObserveQuery(start time.Time) {
	m.QueryDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddExportedRows(n int) {
	m.ExportedRows.Add(float64(n))
}
