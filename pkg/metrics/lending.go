package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics records borrow lifecycle transitions.
type LendingMetrics struct {
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

// NewLendingMetrics registers the lending metrics on the provided registerer.
func NewLendingMetrics(reg prometheus.Registerer) *LendingMetrics {
	if reg == nil {
		return &LendingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lending_operation_duration_seconds",
		Help:    "Duration of lending operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_operations_total",
		Help: "Lending operations by outcome code.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, transitions)
	return &LendingMetrics{
		duration:    duration,
		transitions: transitions,
	}
}

// Observe records the outcome and duration of one operation. An empty outcome
// is reported as "ok".
func (m *LendingMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	if outcome == "" {
		outcome = "ok"
	}
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
