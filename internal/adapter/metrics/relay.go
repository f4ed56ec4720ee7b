package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for relayed connections and messages.
type RelayMetrics struct {
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	RejectedConnections *prometheus.CounterVec
	MessagesReceived    prometheus.Counter
	MessagesDiscarded   prometheus.Counter
	EnvelopesSent       prometheus.Counter
	EnvelopesDropped    prometheus.Counter
	ConnectionErrors    prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of open relay connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Total number of accepted relay connections.",
		}),
		RejectedConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rejected_connections_total",
			Help:      "Connection attempts rejected before upgrade, by reason.",
		}, []string{"reason"}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Inbound messages accepted for broadcast.",
		}),
		MessagesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_discarded_total",
			Help:      "Inbound messages discarded because their connection was no longer open.",
		}),
		EnvelopesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "envelopes_sent_total",
			Help:      "Envelopes written to recipient connections.",
		}),
		EnvelopesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "envelopes_dropped_total",
			Help:      "Envelopes dropped because a recipient's send buffer was full.",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connection_errors_total",
			Help:      "Connections closed because of a transport error.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.RejectedConnections,
		m.MessagesReceived,
		m.MessagesDiscarded,
		m.EnvelopesSent,
		m.EnvelopesDropped,
		m.ConnectionErrors,
	)
	return m
}
