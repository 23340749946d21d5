package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// PipelineMetrics implements ports.PipelineMetrics and tracks breaker state.
type PipelineMetrics struct {
	service string

	uploadsTotal         *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	commitsTotal         *prometheus.CounterVec
	extractedTotal       *prometheus.CounterVec
	breakerState         *prometheus.GaugeVec
}

func NewPipelineMetrics(registerer prometheus.Registerer, service string) *PipelineMetrics {
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "uploads_total",
			Help:      "Upload requests by outcome.",
		},
		[]string{"service", "status"},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Classification requests by outcome.",
		},
		[]string{"service", "status"},
	)
	commitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "commits_total",
			Help:      "POD commit requests by outcome.",
		},
		[]string{"service", "status"},
	)
	extractedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "extracted_documents_total",
			Help:      "Uploaded files by format and extraction outcome.",
		},
		[]string{"service", "format", "outcome"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(uploadsTotal, classificationsTotal, commitsTotal, extractedTotal, breakerState)

	return &PipelineMetrics{
		service:              service,
		uploadsTotal:         uploadsTotal,
		classificationsTotal: classificationsTotal,
		commitsTotal:         commitsTotal,
		extractedTotal:       extractedTotal,
		breakerState:         breakerState,
	}
}

func (m *PipelineMetrics) RecordUpload(status string) {
	m.uploadsTotal.WithLabelValues(m.service, orUnknown(status)).Inc()
}

func (m *PipelineMetrics) RecordClassification(status string) {
	m.classificationsTotal.WithLabelValues(m.service, orUnknown(status)).Inc()
}

func (m *PipelineMetrics) RecordCommit(status string) {
	m.commitsTotal.WithLabelValues(m.service, orUnknown(status)).Inc()
}

func (m *PipelineMetrics) RecordExtraction(format, outcome string) {
	m.extractedTotal.WithLabelValues(m.service, orUnknown(format), orUnknown(outcome)).Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *PipelineMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
