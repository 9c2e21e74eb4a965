package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetbridge"

// Metrics holds the collectors shared by the poller, reconciler and transports.
//
// Metrics:
//   - meetbridge_readiness_checks_total{result} - readiness calls by outcome
//   - meetbridge_readiness_wait_seconds{outcome} - time from Start to a terminal state
//   - meetbridge_analytics_writes_total{op} - store writes issued by reconcilers
//   - meetbridge_analytics_write_failures_total{op} - failed store writes
//   - meetbridge_sessions_total{outcome} - sessions created, adopted and ended
//   - meetbridge_page_states_total{state} - controller state transitions
//   - meetbridge_ws_connections - open websocket connections
//   - meetbridge_events_published_total{result} - lifecycle events sent to the broker
type Metrics struct {
	ReadinessChecks       *prometheus.CounterVec
	ReadinessWait         *prometheus.HistogramVec
	AnalyticsWrites       *prometheus.CounterVec
	AnalyticsWriteFailure *prometheus.CounterVec
	Sessions              *prometheus.CounterVec
	PageStates            *prometheus.CounterVec
	WSConnections         prometheus.Gauge
	EventsPublished       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass a fresh registry in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReadinessChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_checks_total",
			Help:      "Readiness endpoint calls by result.",
		}, []string{"result"}), // ready, starting, unknown, error

		ReadinessWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for the conferencing backend.",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),

		AnalyticsWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_writes_total",
			Help:      "Analytics store writes issued.",
		}, []string{"op"}),

		AnalyticsWriteFailure: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_write_failures_total",
			Help:      "Analytics store writes that failed.",
		}, []string{"op"}),

		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Meeting sessions by lifecycle outcome.",
		}, []string{"outcome"}), // created, adopted, ended

		PageStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_states_total",
			Help:      "Page controller state transitions.",
		}, []string{"state"}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events sent to the broker.",
		}, []string{"result"}),

		gatherer: reg,
	}
}

// NewWithRuntime also registers the Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Discard returns collectors bound to a private registry nobody scrapes.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
