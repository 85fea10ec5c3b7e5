package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification module.
type Metrics struct {
	Created         *prometheus.CounterVec
	Deduplicated    prometheus.Counter
	MarkedRead      prometheus.Counter
	MarkAllFailures prometheus.Counter
}

// New creates notification metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kontrakpro_notifications_created_total",
			Help: "Notifications created, by type and priority",
		}, []string{"type", "priority"}),
		Deduplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_notifications_deduplicated_total",
			Help: "CreateOnce calls that found an existing notification for the dedupe key",
		}),
		MarkedRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_notifications_marked_read_total",
			Help: "Notifications moved from unread to read",
		}),
		MarkAllFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_notifications_mark_all_failures_total",
			Help: "Per-record failures during mark-all-read batches",
		}),
	}
}

func (m *Metrics) IncrementCreated(notificationType, priority string) {
	m.Created.WithLabelValues(notificationType, priority).Inc()
}

func (m *Metrics) IncrementDeduplicated() {
	m.Deduplicated.Inc()
}

func (m *Metrics) IncrementMarkedRead() {
	m.MarkedRead.Inc()
}

func (m *Metrics) IncrementMarkAllFailure() {
	m.MarkAllFailures.Inc()
}
