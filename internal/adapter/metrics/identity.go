package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdentityMetrics holds Prometheus metrics for identity assignment and persistence.
type IdentityMetrics struct {
	KnownIdentities      prometheus.Gauge
	AssignmentsTotal     prometheus.Counter
	SnapshotWrites       *prometheus.CounterVec
	SnapshotWriteSeconds prometheus.Histogram
}

// NewIdentityMetrics creates and registers identity metrics on the given registry.
func NewIdentityMetrics(reg prometheus.Registerer) *IdentityMetrics {
	m := &IdentityMetrics{
		KnownIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "known",
			Help:      "Number of addresses with an assigned identity.",
		}),
		AssignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "assignments_total",
			Help:      "Identities generated for previously unseen addresses.",
		}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "snapshot_writes_total",
			Help:      "Identity snapshot writes by outcome (ok, error, skipped).",
		}, []string{"status"}),
		SnapshotWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "snapshot_write_duration_seconds",
			Help:      "Duration of identity snapshot writes, including retries.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	reg.MustRegister(m.KnownIdentities, m.AssignmentsTotal, m.SnapshotWrites, m.SnapshotWriteSeconds)
	return m
}
