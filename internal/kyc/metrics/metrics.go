package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for identity verification workflows.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	StepOutcomes    *prometheus.CounterVec
	VerifierLatency prometheus.Histogram
	Expired         prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_kyc_transitions_total",
			Help: "Identity workflow status transitions, by target status",
		}, []string{"status"}),
		StepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_kyc_step_outcomes_total",
			Help: "Identity step verification outcomes, by step kind and outcome",
		}, []string{"step", "outcome"}),
		VerifierLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwagate_kyc_verifier_latency_seconds",
			Help:    "Latency of identity claim verifier calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Expired: factory.NewCounter(prometheus.CounterOpts{
			Name: "rwagate_kyc_expired_total",
			Help: "Identity workflows moved to expired",
		}),
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// IncStepOutcome records verified, rejected, timeout or error.
func (m *Metrics) IncStepOutcome(step, outcome string) {
	if m != nil {
		m.StepOutcomes.WithLabelValues(step, outcome).Inc()
	}
}

func (m *Metrics) ObserveVerifierLatency(seconds float64) {
	if m != nil {
		m.VerifierLatency.Observe(seconds)
	}
}

func (m *Metrics) IncExpired() {
	if m != nil {
		m.Expired.Inc()
	}
}
