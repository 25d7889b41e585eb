package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors shared across the service. Auto-registered via
// promauto and exposed on /metrics by the API binary.

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	IngestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total number of ingestion cycles by outcome",
		},
		[]string{"outcome"},
	)

	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Duration of a full ingestion cycle in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	SymbolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_symbol_errors_total",
			Help: "Total number of per-symbol ingestion failures by reason",
		},
		[]string{"reason"},
	)

	SnapshotsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_snapshots_total",
			Help: "Total number of snapshots appended to the history store",
		},
	)

	AlertsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_emitted_total",
			Help: "Total number of live OI alerts pushed to the stream hub",
		},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_clients_connected",
			Help: "Number of currently connected WebSocket clients",
		},
	)
)
