// Package metrics exports Prometheus metrics for the control plane.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all control plane Prometheus metrics.
type Metrics struct {
	// Entry lifecycle
	EntriesDispatched *prometheus.CounterVec
	EntriesCompleted  *prometheus.CounterVec
	DispatchDuration  prometheus.Histogram

	// Sessions
	ActiveSessions prometheus.Gauge
	StaleSwept     prometheus.Counter
	Heartbeats     prometheus.Counter

	// Engine interaction
	EngineRequests *prometheus.CounterVec
	ControlActions *prometheus.CounterVec

	// Resource pools
	ProxyOutcomes   *prometheus.CounterVec
	CaptchaOutcomes *prometheus.CounterVec
}

// New registers the control plane metric set against the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metric set against a specific registerer. Tests use
// this with a private registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_entries_dispatched_total",
			Help: "Entries handed to the worker engine, per website",
		}, []string{"website"}),

		EntriesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_entries_completed_total",
			Help: "Entries reaching a terminal outcome",
		}, []string{"status"}),

		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "botctl_dispatch_duration_seconds",
			Help:    "Time spent in one dispatch cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "botctl_active_sessions",
			Help: "Sessions currently idle, running or paused",
		}),

		StaleSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "botctl_sessions_swept_total",
			Help: "Sessions errored out for missing heartbeats",
		}),

		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "botctl_heartbeats_total",
			Help: "Heartbeats received from workers",
		}),

		EngineRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_engine_requests_total",
			Help: "Requests to the worker engine by outcome",
		}, []string{"operation", "outcome"}),

		ControlActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_control_actions_total",
			Help: "Fleet-wide control actions issued",
		}, []string{"action"}),

		ProxyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_proxy_outcomes_total",
			Help: "Proxy use outcomes",
		}, []string{"outcome"}),

		CaptchaOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "botctl_captcha_outcomes_total",
			Help: "CAPTCHA solve outcomes",
		}, []string{"outcome"}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
