package metrics

import "github.com/prometheus/client_golang/prometheus"

// StorageMetrics covers round trips to the Redis and Postgres snapshot backends.
type StorageMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ConnectionErrors  *prometheus.CounterVec
}

func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	m := &StorageMetrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Backend operations by backend, operation and status.",
		}, []string{"backend", "operation", "status"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Backend operation latency in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "operation"}),
		ConnectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "connection_errors_total",
			Help:      "Failed attempts to open a backend connection.",
		}, []string{"backend"}),
	}

	reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.ConnectionErrors)
	return m
}

// Observe records one operation.
func (m *StorageMetrics) Observe(backend, operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.OperationDuration.WithLabelValues(backend, operation).Observe(seconds)
}
