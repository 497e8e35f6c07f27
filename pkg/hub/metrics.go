package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for one hub. All recording
// methods are safe on a nil receiver, so a hub without metrics carries
// no instrumentation cost beyond a nil check.
type Metrics struct {
	connects         prometheus.Counter
	disconnects      prometheus.Counter
	evictions        prometheus.Counter
	heartbeats       prometheus.Counter
	disconnectErrors prometheus.Counter
	connectedClients prometheus.Gauge
	aliveClients     prometheus.Gauge
	sweepDuration    prometheus.Histogram
}

// NewMetrics registers the hub's instruments with reg under namespace.
// Pass prometheus.DefaultRegisterer for the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "peerhub"
	}
	factory := promauto.With(reg)

	return &Metrics{
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of clients connected",
		}),
		disconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of clients disconnected",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of clients evicted from the alive set for missed heartbeats",
		}),
		heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeat signals received",
		}),
		disconnectErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnect_errors_total",
			Help:      "Total number of channel disconnect failures during Stop",
		}),
		connectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Number of currently connected clients",
		}),
		aliveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alive_clients",
			Help:      "Number of connected clients currently considered alive",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of heartbeat sweeps in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) recordConnect() {
	if m == nil {
		return
	}
	m.connects.Inc()
	m.connectedClients.Inc()
	m.aliveClients.Inc()
}

func (m *Metrics) recordDisconnect(wasAlive bool) {
	if m == nil {
		return
	}
	m.disconnects.Inc()
	m.connectedClients.Dec()
	if wasAlive {
		m.aliveClients.Dec()
	}
}

func (m *Metrics) recordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
	m.aliveClients.Dec()
}

func (m *Metrics) recordHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *Metrics) recordDisconnectError() {
	if m == nil {
		return
	}
	m.disconnectErrors.Inc()
}

func (m *Metrics) observeSweep(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}
