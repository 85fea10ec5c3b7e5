package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for reminders and the overdue sweeper.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Conflicts       prometheus.Counter
	SweepRuns       prometheus.Counter
	OverdueNotified prometheus.Counter
	SweepFailures   prometheus.Counter
}

// New creates reminder metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kontrakpro_reminder_transitions_total",
			Help: "Reminder state transitions, by target status",
		}, []string{"status"}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_reminder_transition_conflicts_total",
			Help: "Complete or cancel attempts rejected because the reminder was no longer pending",
		}),
		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_reminder_sweep_runs_total",
			Help: "Overdue sweeper passes",
		}),
		OverdueNotified: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_reminder_overdue_notifications_total",
			Help: "Overdue notifications raised by the sweeper",
		}),
		SweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kontrakpro_reminder_sweep_failures_total",
			Help: "Overdue reminders the sweeper failed to notify",
		}),
	}
}

func (m *Metrics) IncrementTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementConflict() {
	m.Conflicts.Inc()
}

func (m *Metrics) IncrementSweepRun() {
	m.SweepRuns.Inc()
}

func (m *Metrics) IncrementOverdueNotified() {
	m.OverdueNotified.Inc()
}

func (m *Metrics) IncrementSweepFailure() {
	m.SweepFailures.Inc()
}
