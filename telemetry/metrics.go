package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the miner's Prometheus instruments. It is additive
// instrumentation fed from the same counters the s/S keypress reads, not a
// replacement for Tracker's in-process averaging.
type Metrics struct {
	Hashrate1m  prometheus.Gauge
	Hashrate15m prometheus.Gauge
	Hashrate1h  prometheus.Gauge
	SharesTotal *prometheus.CounterVec
	PoolUp      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers the miner's Prometheus instruments
// under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rxminer"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Hashrate1m = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "hashrate_1m", Help: "1-minute moving average hashrate in H/s",
	})
	m.Hashrate15m = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "hashrate_15m", Help: "15-minute moving average hashrate in H/s",
	})
	m.Hashrate1h = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "hashrate_1h", Help: "1-hour moving average hashrate in H/s",
	})
	m.SharesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "shares_total", Help: "Total number of shares submitted",
	}, []string{"status"}) // status: accepted, rejected
	m.PoolUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pool_connected", Help: "Whether connected to the pool (1=connected, 0=disconnected)",
	})

	m.registry.MustRegister(m.Hashrate1m, m.Hashrate15m, m.Hashrate1h, m.SharesTotal, m.PoolUp)

	return m
}

// Handler returns the HTTP handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordAverages sets the three hashrate gauges from a Tracker snapshot.
func (m *Metrics) RecordAverages(avg1m, avg15m, avg1h float64) {
	m.Hashrate1m.Set(avg1m)
	m.Hashrate15m.Set(avg15m)
	m.Hashrate1h.Set(avg1h)
}

// RecordShare increments the share counter for the given status
// ("accepted" or "rejected").
func (m *Metrics) RecordShare(status string) {
	m.SharesTotal.WithLabelValues(status).Inc()
}

// SetPoolConnected reports the pool connection state.
func (m *Metrics) SetPoolConnected(connected bool) {
	if connected {
		m.PoolUp.Set(1)
	} else {
		m.PoolUp.Set(0)
	}
}

// Serve starts an HTTP server exposing /metrics on addr. It blocks until
// the server returns an error; it offers no way to stop the server.
func Serve(addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
