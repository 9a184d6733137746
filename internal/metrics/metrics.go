package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion / classification
	EventsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfault_events_classified_total",
			Help: "Fault events classified, labelled by resulting action",
		},
		[]string{"action"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfault_events_rejected_total",
			Help: "Fault events rejected before classification",
		},
		[]string{"reason"}, // validation, unknown_turbine, storage
	)

	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "windfault_classify_duration_seconds",
			Help:    "Latency of a full classify invocation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// Reconciliation loop
	ReconcileRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "windfault_reconcile_runs_total",
			Help: "Reconciliation sweeps executed",
		},
	)

	ReconcileProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "windfault_reconcile_processed_total",
			Help: "Deferred recommendations successfully re-evaluated",
		},
	)

	ReconcileFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "windfault_reconcile_failures_total",
			Help: "Deferred recommendations that failed re-evaluation and stayed due",
		},
	)

	// HTTP layer
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windfault_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)
)
