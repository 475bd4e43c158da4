// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package models defines the core data structures shared across Worklogd.
//
// The package contains two families of types:
//
//   - Domain records persisted in DuckDB: WorkItem, ProjectIssueMapping,
//     WorklogSyncRecord, BackgroundSyncStatus. These carry the durable state
//     of the reconciliation engine.
//
//   - Wire shapes exchanged with callers and with the remote Jira/Tempo API:
//     SyncWorklogsRequest/Response, ValidateIssueResponse, AggregateRequest/
//     Response, BatchSyncRow, SyncProgress. Their JSON field names are part
//     of the external contract and must not change.
//
// All types are plain data with no behavior beyond small convenience
// methods; persistence and business logic live in internal/database and the
// service packages.
package models
