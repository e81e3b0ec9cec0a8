// Package metrics declares the Prometheus collectors shared by the sync
// coordinator, the background worker and its tile cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultDegraded = "degraded"
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultBypass   = "bypass"
)

var (
	// SyncOperations counts coordinator operations by collection, operation and outcome.
	SyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclescene_sync_operations_total",
			Help: "Total number of sync coordinator operations",
		},
		[]string{"collection", "operation", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cyclescene_sync_duration_seconds",
			Help:    "Duration of sync coordinator operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collection", "operation"},
	)

	// SyncCoalesced counts callers that joined an operation already in flight.
	SyncCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclescene_sync_coalesced_total",
			Help: "Total number of sync requests coalesced onto an in-flight operation",
		},
		[]string{"collection"},
	)

	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclescene_fetch_retries_total",
			Help: "Total number of retried remote fetches",
		},
		[]string{"collection"},
	)

	WorkerNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cyclescene_worker_notifications_total",
			Help: "Total number of rides-updated notifications published by the worker",
		},
	)

	WorkerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclescene_worker_messages_total",
			Help: "Total number of messages received by the worker",
		},
		[]string{"type"},
	)

	// TileCacheRequests counts intercepted requests by cache outcome.
	TileCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclescene_tile_cache_requests_total",
			Help: "Total number of requests seen by the worker transport",
		},
		[]string{"result"},
	)

	TileCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclescene_tile_cache_entries",
			Help: "Current number of cached tile responses",
		},
	)

	Sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclescene_sessions",
			Help: "Current number of open document sessions",
		},
	)
)
