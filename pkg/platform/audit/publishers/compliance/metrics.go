package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "rwagate/pkg/platform/audit"
)

type Metrics struct {
	eventsEmitted   *prometheus.CounterVec
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_audit_events_emitted_total",
			Help: "Audit events persisted, by category",
		}, []string{"category"}),
		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "rwagate_audit_persist_failures_total",
			Help: "Audit events that failed to persist",
		}),
		persistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwagate_audit_persist_duration_seconds",
			Help:    "Time to persist an audit event",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) IncEventsEmitted(category audit.EventCategory) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(seconds)
}
