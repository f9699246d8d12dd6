// Package metrics exposes Prometheus metrics fed from the execution event
// bus, keeping the gateway itself free of any metrics coupling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewheel/toolgate/internal/events"
)

// Metrics holds the collectors for tool execution observability.
type Metrics struct {
	registry *prometheus.Registry

	started    *prometheus.CounterVec
	succeeded  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	sinkErrors prometheus.Counter
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_executions_started_total",
			Help: "Tool executions that passed policy and began running.",
		}, []string{"tool"}),
		succeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_executions_succeeded_total",
			Help: "Tool executions that completed successfully.",
		}, []string{"tool"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_executions_failed_total",
			Help: "Tool executions that were denied or failed, by reason.",
		}, []string{"tool", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolgate_execution_duration_ms",
			Help:    "Tool handler execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"tool"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_audit_sink_errors_total",
			Help: "Failures persisting audit entries.",
		}),
	}

	reg.MustRegister(m.started, m.succeeded, m.failed, m.duration, m.sinkErrors)
	return m
}

// Attach subscribes the collectors to the event bus.
func (m *Metrics) Attach(bus *events.Bus) {
	bus.Subscribe(events.TypeStarted, func(e events.Event) {
		m.started.WithLabelValues(e.ToolID).Inc()
	})
	bus.Subscribe(events.TypeSucceeded, func(e events.Event) {
		m.succeeded.WithLabelValues(e.ToolID).Inc()
		m.duration.WithLabelValues(e.ToolID).Observe(e.DurationMs)
	})
	bus.Subscribe(events.TypeFailed, func(e events.Event) {
		m.failed.WithLabelValues(e.ToolID, string(e.Reason)).Inc()
		if e.DurationMs > 0 {
			m.duration.WithLabelValues(e.ToolID).Observe(e.DurationMs)
		}
	})
	bus.Subscribe(events.TypeAuditSinkError, func(events.Event) {
		m.sinkErrors.Inc()
	})
}

// Handler returns the /metrics HTTP handler for the dedicated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
