// Package metrics exposes beamfleet's Prometheus /metrics endpoint.
// Grounded on purpleidea-mgmt/prometheus/prometheus.go's Init/Start
// shape (a registry-backed struct with an http.ListenAndServe of its
// own), rebuilt against promauto for counter/gauge registration.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every gauge/counter/histogram beamfleet exports.
type Metrics struct {
	listen   string
	srv      *http.Server
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	RPCDuration       *prometheus.HistogramVec
	ManagedNodesGauge prometheus.Gauge
	ActiveTracesGauge prometheus.Gauge
}

// New registers beamfleet's metric collectors against a private
// registry (not prometheus.DefaultRegisterer, so multiple daemon
// instances — or test cases — can each build their own Metrics
// without colliding) and returns a Metrics handle, listening on
// listen once Start is called.
func New(listen string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		listen:   listen,
		registry: reg,

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beamfleet_operations_total",
			Help: "Number of operation-surface calls, by operation and result.",
		}, []string{"op", "result"}),

		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beamfleet_rpc_duration_seconds",
			Help:    "Latency of RPC-evaluator bootstrap round trips.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		ManagedNodesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beamfleet_managed_nodes",
			Help: "Current number of managed nodes, in any state.",
		}),

		ActiveTracesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beamfleet_active_traces",
			Help: "Current number of nodes with tracing turned on.",
		}),
	}
}

// ObserveOperation records one operation-surface invocation.
func (m *Metrics) ObserveOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "err"
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveRPC records the wall-clock duration of an RPC-evaluator round
// trip for op.
func (m *Metrics) ObserveRPC(op string, d time.Duration) {
	m.RPCDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Start runs the /metrics HTTP server in the background. A no-op if
// listen is empty (metrics disabled).
func (m *Metrics) Start() {
	if m.listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: m.listen, Handler: mux}
	go func() {
		_ = m.srv.ListenAndServe()
	}()
}

// Stop shuts the metrics server down, if running.
func (m *Metrics) Stop(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
