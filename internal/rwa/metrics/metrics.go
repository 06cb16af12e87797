package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for asset verification workflows.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	DocumentScores      *prometheus.HistogramVec
	Decisions           *prometheus.CounterVec
	CollaboratorLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_rwa_transitions_total",
			Help: "Asset workflow status transitions, by target status",
		}, []string{"status"}),
		DocumentScores: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwagate_rwa_document_score",
			Help:    "Rule-set scores of verified asset documents",
			Buckets: []float64{10, 25, 40, 50, 60, 70, 80, 90, 95, 100},
		}, []string{"doc_type"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rwagate_rwa_decisions_total",
			Help: "Final asset verification decisions",
		}, []string{"decision"}),
		CollaboratorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwagate_rwa_collaborator_latency_seconds",
			Help:    "Latency of document pipeline and legal registry calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collaborator"}),
	}
}

func (m *Metrics) IncTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveDocumentScore(docType string, score float64) {
	if m != nil {
		m.DocumentScores.WithLabelValues(docType).Observe(score)
	}
}

func (m *Metrics) IncDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) ObserveCollaboratorLatency(collaborator string, seconds float64) {
	if m != nil {
		m.CollaboratorLatency.WithLabelValues(collaborator).Observe(seconds)
	}
}
