// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package database provides the DuckDB-backed store for work items, project
issue mappings, worklog sync records, and background sync status.

The package wraps a single *sql.DB connection to an embedded DuckDB file
and exposes typed data access methods. All methods accept a
context.Context and return wrapped errors.

Tables:

  - work_items: raw and aggregated work entries. Raw items are deduplicated
    on (user_id, source, source_id); aggregated parents reference their
    children through parent_id.
  - project_issue_mappings: one Jira issue key per (project_path, user_id).
  - worklog_sync_records: the reconciliation ledger. At most one record per
    (user_id, project_path, date) regardless of how many times a slice is
    re-synced.
  - background_sync_status: a single row per user describing the last
    background sync run.

Prepared statements are cached per SQL string and reused across calls.
The cache is flushed on Close.
*/
package database
