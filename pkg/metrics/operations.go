package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records outcomes of wallet mutating operations.
type OperationMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewOperationMetrics registers the operation metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operation_total",
		Help: "Wallet operations by name and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_operation_duration_seconds",
		Help:    "Duration of wallet operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(outcomes, duration)
	return &OperationMetrics{outcomes: outcomes, duration: duration}
}

// Observe records one operation outcome and its duration.
func (m *OperationMetrics) Observe(operation string, err error, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.outcomes.WithLabelValues(normalizeLabel(operation), outcome).Inc()
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(elapsed.Seconds())
}
