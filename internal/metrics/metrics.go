// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Worklog upload outcomes
// - Issue validation cache efficiency
// - Background sync runs
// - WebSocket progress streaming
// - Circuit breaker state for the Jira/Tempo connection

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Worklog Upload Metrics
	WorklogUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worklog_uploads_total",
			Help: "Total number of worklog entries uploaded",
		},
		[]string{"result"}, // "success", "failure", "dry_run"
	)

	WorklogUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worklog_upload_duration_seconds",
			Help:    "Duration of a single worklog upload in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorklogBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worklog_batch_size",
			Help:    "Number of entries per sync batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// Issue Validation Cache Metrics
	IssueCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issue_cache_hits_total",
			Help: "Total number of issue validation cache hits",
		},
	)

	IssueCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issue_cache_misses_total",
			Help: "Total number of issue validation cache misses",
		},
	)

	IssueSearchesDebounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issue_searches_debounced_total",
			Help: "Total number of issue searches coalesced by the debouncer",
		},
	)

	IssueSearchesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issue_searches_dispatched_total",
			Help: "Total number of issue searches sent to the remote API",
		},
	)

	// Background Sync Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "background_sync_duration_seconds",
			Help:    "Duration of background sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncItemsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "background_sync_items_imported_total",
			Help: "Total number of work items imported during background sync",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_sync_errors_total",
			Help: "Total number of background sync errors",
		},
		[]string{"phase"}, // "sources", "snapshots", "compaction"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "background_sync_last_success_timestamp",
			Help: "Unix timestamp of last successful background sync",
		},
	)

	SyncRunsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "background_sync_runs_rejected_total",
			Help: "Total number of sync triggers rejected because a run was in flight",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Aggregation Metrics
	AggregationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregation_runs_total",
			Help: "Total number of aggregation runs",
		},
	)

	AggregationGroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregation_groups_created_total",
			Help: "Total number of aggregate groups created or refreshed",
		},
	)
)

// RecordDBQuery records the outcome of a database query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an HTTP request outcome.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncRun records a completed background sync run.
func RecordSyncRun(duration time.Duration, itemsImported int, err error, phase string) {
	SyncDuration.Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues(phase).Inc()
		return
	}
	SyncItemsImported.Add(float64(itemsImported))
	SyncLastSuccess.SetToCurrentTime()
}

// RecordWorklogUpload records one worklog entry outcome.
func RecordWorklogUpload(result string, duration time.Duration) {
	WorklogUploads.WithLabelValues(result).Inc()
	if result != "dry_run" {
		WorklogUploadDuration.Observe(duration.Seconds())
	}
}
