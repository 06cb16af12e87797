package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the compliance gate and the transaction ledger.
type Metrics struct {
	Eligibility         *prometheus.CounterVec
	LimitViolations     *prometheus.CounterVec
	StageTransitions    *prometheus.CounterVec
	LedgerAppendLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Eligibility: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_compliance_eligibility_total",
			Help: "Eligibility decisions, by kind (tokenization, trading) and outcome",
		}, []string{"kind", "outcome"}),
		LimitViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_compliance_limit_violations_total",
			Help: "AML limit violations, by window",
		}, []string{"window"}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_compliance_stage_transitions_total",
			Help: "Compliance workflow stage transitions, by target stage",
		}, []string{"stage"}),
		LedgerAppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwagate_compliance_ledger_append_seconds",
			Help:    "Latency of transaction ledger appends",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEligibility(kind string, eligible bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if eligible {
		outcome = "eligible"
	}
	m.Eligibility.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncLimitViolation(window string) {
	if m != nil {
		m.LimitViolations.WithLabelValues(window).Inc()
	}
}

func (m *Metrics) IncStageTransition(stage string) {
	if m != nil {
		m.StageTransitions.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveLedgerAppend(seconds float64) {
	if m != nil {
		m.LedgerAppendLatency.Observe(seconds)
	}
}
