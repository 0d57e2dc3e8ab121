package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Session lifecycle
	SessionsStartedTotal  prometheus.Counter
	SessionsActive        prometheus.Gauge
	SessionsArchivedTotal prometheus.Counter
	ArchiveEvictionsTotal prometheus.Counter
	SpawnFailuresTotal    prometheus.Counter

	// Operations
	ReadsTotal        *prometheus.CounterVec
	TerminationsTotal *prometheus.CounterVec

	// Output pipeline
	OutputBytesTotal    prometheus.Counter
	StartWindowDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_started_total",
				Help: "Total number of command sessions started",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently active command sessions",
			},
		),
		SessionsArchivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_archived_total",
				Help: "Total number of sessions moved to the archive",
			},
		),
		ArchiveEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_evictions_total",
				Help: "Total number of archive entries evicted",
			},
		),
		SpawnFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spawn_failures_total",
				Help: "Total number of commands that failed to spawn",
			},
		),

		ReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_reads_total",
				Help: "Total number of session reads by outcome",
			},
			[]string{"outcome"},
		),
		TerminationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_terminations_total",
				Help: "Total number of termination attempts by result",
			},
			[]string{"result"},
		),

		OutputBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "output_bytes_total",
				Help: "Total bytes of command output delivered to callers",
			},
		),
		StartWindowDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "start_window_duration_seconds",
				Help:    "Duration of the initial output collection window in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.SessionsStartedTotal,
		m.SessionsActive,
		m.SessionsArchivedTotal,
		m.ArchiveEvictionsTotal,
		m.SpawnFailuresTotal,
		m.ReadsTotal,
		m.TerminationsTotal,
		m.OutputBytesTotal,
		m.StartWindowDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
