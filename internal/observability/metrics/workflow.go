package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// WorkflowMetrics counts transition outcomes; it satisfies ports.WorkflowObserver.
type WorkflowMetrics struct {
	service        string
	decisionsTotal *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
}

func NewWorkflowMetrics(service string, reg prometheus.Registerer) *WorkflowMetrics {
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "decisions_total",
			Help:      "Transition attempts by action and outcome (applied, throttled, error or a lowercased guard reason).",
		},
		[]string{"service", "action", "outcome"},
	)
	conflictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "store_conflicts_total",
			Help:      "Version conflicts hit while saving a transition.",
		},
		[]string{"service", "action"},
	)
	reg.MustRegister(decisionsTotal, conflictsTotal)

	return &WorkflowMetrics{
		service:        service,
		decisionsTotal: decisionsTotal,
		conflictsTotal: conflictsTotal,
	}
}

func (m *WorkflowMetrics) ObserveDecision(action domain.Action, outcome string) {
	m.decisionsTotal.WithLabelValues(m.service, string(action), outcome).Inc()
}

func (m *WorkflowMetrics) ObserveStoreConflict(action domain.Action) {
	m.conflictsTotal.WithLabelValues(m.service, string(action)).Inc()
}

// BreakerMetrics exports circuit breaker state: 0 closed, 1 half-open, 2 open.
type BreakerMetrics struct {
	state *prometheus.GaugeVec
}

func NewBreakerMetrics(service string, reg prometheus.Registerer) *BreakerMetrics {
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	reg.MustRegister(state)
	return &BreakerMetrics{state: state}
}

func (m *BreakerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	m.state.WithLabelValues(operation).Set(float64(to))
}
