// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package database

import (
	"context"
	"fmt"
)

// Schema DDL. DuckDB creates tables transactionally, so each statement
// either fully applies or leaves the file untouched.
//
// Dates are stored as TEXT in YYYY-MM-DD form. The engine never does date
// arithmetic in SQL, and lexicographic order on that form equals
// chronological order, so TEXT keeps the schema portable.
const (
	createWorkItemsTable = `
CREATE TABLE IF NOT EXISTS work_items (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    source          TEXT NOT NULL,
    source_id       TEXT NOT NULL,
    title           TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    hours           DOUBLE NOT NULL DEFAULT 0,
    date            TEXT NOT NULL,
    project_path    TEXT NOT NULL DEFAULT '',
    jira_issue_key  TEXT NOT NULL DEFAULT '',
    synced_to_tempo BOOLEAN NOT NULL DEFAULT FALSE,
    tempo_worklog_id TEXT NOT NULL DEFAULT '',
    parent_id       TEXT NOT NULL DEFAULT '',
    child_count     INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, source, source_id)
)`

	createMappingsTable = `
CREATE TABLE IF NOT EXISTS project_issue_mappings (
    project_path TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    issue_key    TEXT NOT NULL,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_path, user_id)
)`

	createSyncRecordsTable = `
CREATE TABLE IF NOT EXISTS worklog_sync_records (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    project_path     TEXT NOT NULL,
    date             TEXT NOT NULL,
    issue_key        TEXT NOT NULL,
    hours            DOUBLE NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    tempo_worklog_id TEXT NOT NULL DEFAULT '',
    synced_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, project_path, date)
)`

	createSyncStatusTable = `
CREATE TABLE IF NOT EXISTS background_sync_status (
    user_id      TEXT PRIMARY KEY,
    last_sync_at TIMESTAMP,
    running      BOOLEAN NOT NULL DEFAULT FALSE,
    phase        TEXT NOT NULL DEFAULT '',
    last_result  TEXT NOT NULL DEFAULT '',
    last_error   TEXT NOT NULL DEFAULT '',
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	createWorkItemsDateIndex = `
CREATE INDEX IF NOT EXISTS idx_work_items_user_date ON work_items (user_id, date)`

	createWorkItemsParentIndex = `
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items (parent_id)`

	createSyncRecordsDateIndex = `
CREATE INDEX IF NOT EXISTS idx_sync_records_user_date ON worklog_sync_records (user_id, date)`
)

// initSchema creates all tables and indexes if they do not exist.
func (db *DB) initSchema(ctx context.Context) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"work_items", createWorkItemsTable},
		{"project_issue_mappings", createMappingsTable},
		{"worklog_sync_records", createSyncRecordsTable},
		{"background_sync_status", createSyncStatusTable},
		{"idx_work_items_user_date", createWorkItemsDateIndex},
		{"idx_work_items_parent", createWorkItemsParentIndex},
		{"idx_sync_records_user_date", createSyncRecordsDateIndex},
	}

	for _, s := range stmts {
		if _, err := db.conn.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
