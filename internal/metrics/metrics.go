// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline. Counters are registered once via promauto and shared by all
// pollers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tailing metrics
	LinesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_lines_read_total",
			Help: "Total number of log lines read from monitored files",
		},
		[]string{"source"},
	)

	ParseMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_parse_misses_total",
			Help: "Total number of lines that matched no known format",
		},
		[]string{"source"},
	)

	Rotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_rotations_total",
			Help: "Total number of detected file truncations/rotations",
		},
		[]string{"source"},
	)

	// Persistence metrics
	EventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_events_persisted_total",
			Help: "Total number of structured events written to storage",
		},
		[]string{"kind"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_storage_errors_total",
			Help: "Total number of failed persistence calls",
		},
		[]string{"source"},
	)

	// Detection metrics
	ThreatsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsentry_threats_detected_total",
			Help: "Total number of attack records produced",
		},
		[]string{"category", "severity"},
	)

	// Poller metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logsentry_poll_tick_duration_seconds",
			Help:    "Duration of one poll tick including parsing and persistence",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsentry_active_pollers",
			Help: "Number of running tail pollers",
		},
	)
)
