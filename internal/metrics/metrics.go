package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the execution engine
type Metrics struct {
	registry *prometheus.Registry

	// Call metrics
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec

	// Batch metrics
	BatchesTotal  *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// Isolated-lane pool metrics
	PoolBusyWorkers prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool call executions",
			},
			[]string{"tool", "lane", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool call executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "lane"},
		),

		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_batches_total",
				Help: "Total number of executed tool-call batches",
			},
			[]string{"status"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tool_batch_duration_seconds",
				Help:    "Duration of tool-call batches in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		PoolBusyWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "isolated_pool_busy_workers",
				Help: "Number of isolated-lane workers currently running a call",
			},
		),
	}

	registry.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.BatchesTotal,
		m.BatchDuration,
		m.PoolBusyWorkers,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics instance, creating it on first use
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
