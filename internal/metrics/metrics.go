package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion Metrics
var (
	// ItemsMergedTotal tracks merged items by kind (post/comment) and outcome (new/updated)
	ItemsMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_items_merged_total",
			Help: "Total items merged into the store by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// IngestionErrorsTotal tracks recorded ingestion errors by kind
	IngestionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_ingestion_errors_total",
			Help: "Total ingestion errors by kind",
		},
		[]string{"kind"},
	)

	// IngestionRunsTotal tracks completed passes by result (success/partial/failed)
	IngestionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_ingestion_runs_total",
			Help: "Total ingestion passes by result",
		},
		[]string{"result"},
	)

	// IngestionDuration tracks the wall time of a full pass in seconds
	IngestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_ingestion_duration_seconds",
			Help:    "Ingestion pass duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// IngestionRejectedTotal tracks triggers refused because a pass was in flight
	IngestionRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_ingestion_rejected_total",
			Help: "Total ingestion triggers rejected because a pass was already running",
		},
	)

	// IngestionRunning is 1 while a pass is in flight
	IngestionRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_ingestion_running",
			Help: "Whether an ingestion pass is currently running (0 or 1)",
		},
	)
)

// Source Metrics
var (
	// SourceRequestsTotal tracks upstream requests by endpoint (listing/comments) and status
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_source_requests_total",
			Help: "Total upstream requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// SourceRequestDuration tracks upstream request latency in seconds
	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_source_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
)

// Backup Metrics
var (
	// BackupsTotal tracks snapshot uploads by status
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_backups_total",
			Help: "Total snapshot backups by status",
		},
		[]string{"status"},
	)
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks API requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	// HTTPRequestDuration tracks API latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
