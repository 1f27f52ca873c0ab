// Package metrics exposes Prometheus instrumentation for the research
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openprobe/deepsearch/pkg/models"
)

const namespace = "deepsearch"

// Metrics holds every instrument the service records. Instruments live
// in a private registry, so independent instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	searchesStarted  prometheus.Counter
	searchesFinished *prometheus.CounterVec
	replans          prometheus.Counter
	toolCalls        *prometheus.CounterVec
	searchDuration   prometheus.Histogram
}

// New builds a Metrics instance with its own registry, including the
// standard Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		searchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Searches accepted for execution.",
		}),
		searchesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_finished_total",
			Help:      "Searches that reached a terminal status.",
		}, []string{"status"}),
		replans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replans_total",
			Help:      "Replan rounds triggered by unsatisfactory step results.",
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Plan step executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of finished searches.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterRuntimeGauges adds scrape-time gauges backed by live counts
// owned elsewhere. Call once during startup, after the owners exist.
func (m *Metrics) RegisterRuntimeGauges(connections, activeSearches func() int) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(connections()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_searches",
			Help:      "Searches currently executing.",
		}, func() float64 { return float64(activeSearches()) }),
	)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SearchStarted counts an accepted search.
func (m *Metrics) SearchStarted() {
	m.searchesStarted.Inc()
}

// SearchFinished counts a terminal search and records its duration.
func (m *Metrics) SearchFinished(status models.SessionStatus, elapsed time.Duration) {
	m.searchesFinished.WithLabelValues(string(status)).Inc()
	m.searchDuration.Observe(elapsed.Seconds())
}

// ReplanTriggered counts one replan round.
func (m *Metrics) ReplanTriggered() {
	m.replans.Inc()
}

// ToolCall counts one plan step execution. Outcome is the result kind
// ("answer", "text", "replan") or "error" for failed invocations.
func (m *Metrics) ToolCall(tool models.Tool, outcome string) {
	m.toolCalls.WithLabelValues(string(tool), outcome).Inc()
}
