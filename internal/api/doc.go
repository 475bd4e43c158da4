// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package api provides the HTTP surface of Worklogd.

Routing uses Chi with production middleware from its ecosystem: go-chi/cors
for CORS, go-chi/httprate for per-IP rate limiting. Every response uses the
standardized APIResponse envelope with a machine-readable error code and the
request ID for tracing.

Route groups:

  - /api/v1/health            liveness, readiness, and overall health
  - /api/v1/work-items        work item listing, manual entry, aggregation
  - /api/v1/worklog           batch preview and sync execution
  - /api/v1/tempo             remote issue validation, search, connectivity
  - /api/v1/mappings          project-to-issue mapping management
  - /api/v1/sync-records      durable upload history
  - /api/v1/background-sync   pipeline trigger and status
  - /api/v1/ws                websocket progress stream
  - /metrics                  Prometheus exposition
*/
package api
