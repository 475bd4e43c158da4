// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package middleware provides HTTP middleware shared by the API router.

This package implements infrastructure middleware for request ID
tracking, Prometheus metrics instrumentation, and gzip compression.
Chi-native concerns (CORS, rate limiting, security headers) live in the
api package; the middleware here uses the plain http.HandlerFunc form so
it can also wrap handlers outside the router.

Key Components:

  - RequestID: UUID-based request tracking threaded through the logging
    context, echoed in the X-Request-ID response header
  - PrometheusMetrics: per-request method/path/status/duration
    instrumentation plus an active-request gauge
  - Compression: gzip response compression for clients that accept it

Usage:

	http.HandleFunc("/api/v1/work-items",
	    middleware.PrometheusMetrics(
	        middleware.Compression(
	            middleware.RequestID(handler),
	        ),
	    ),
	)

All middleware components are safe for concurrent use.
*/
package middleware
