// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mhuang-dev/worklogd/internal/models"
)

const syncRecordColumns = `id, user_id, project_path, date, issue_key, hours, description,
	tempo_worklog_id, synced_at`

// UpsertSyncRecord writes the reconciliation marker for a (project, date)
// slice, replacing any existing record for the same slice. It returns the
// tempo worklog id of the replaced record, or "" when the slice had never
// been synced. Callers use the returned id to warn about the orphaned
// remote entry; the remote side is not reconciled here.
func (db *DB) UpsertSyncRecord(ctx context.Context, rec *models.WorklogSyncRecord) (string, error) {
	var previous string
	err := db.conn.QueryRowContext(ctx,
		`SELECT tempo_worklog_id FROM worklog_sync_records
		 WHERE user_id = ? AND project_path = ? AND date = ?`,
		rec.UserID, rec.ProjectPath, rec.Date,
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up existing sync record: %w", err)
	}

	query := `
INSERT INTO worklog_sync_records (id, user_id, project_path, date, issue_key, hours,
	description, tempo_worklog_id, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, project_path, date) DO UPDATE SET
	issue_key = excluded.issue_key,
	hours = excluded.hours,
	description = excluded.description,
	tempo_worklog_id = excluded.tempo_worklog_id,
	synced_at = excluded.synced_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return "", err
	}

	syncedAt := rec.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	_, err = stmt.ExecContext(ctx,
		rec.ID, rec.UserID, rec.ProjectPath, rec.Date, rec.JiraIssueKey,
		rec.Hours, rec.Description, rec.TempoWorklogID, syncedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return previous, nil
}

// GetSyncRecord returns the record for a (project, date) slice, or
// ErrNotFound when the slice has never been synced.
func (db *DB) GetSyncRecord(ctx context.Context, userID, projectPath, date string) (*models.WorklogSyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + `
FROM worklog_sync_records
WHERE user_id = ? AND project_path = ? AND date = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanSyncRecord(stmt.QueryRowContext(ctx, userID, projectPath, date))
}

// ListSyncRecords returns a user's sync records in the inclusive date range
// [from, to], newest first.
func (db *DB) ListSyncRecords(ctx context.Context, userID, from, to string) ([]*models.WorklogSyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + `
FROM worklog_sync_records
WHERE user_id = ? AND date >= ? AND date <= ?
ORDER BY date DESC, project_path`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer closeQuietly(rows)

	var out []*models.WorklogSyncRecord
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync records: %w", err)
	}
	return out, nil
}

// SyncedSlices returns the set of (project_path, date) slices already
// recorded for a user on the given date. The batch builder uses this to
// exclude synced slices from new batches.
func (db *DB) SyncedSlices(ctx context.Context, userID, from, to string) (map[string]bool, error) {
	query := `
SELECT project_path, date FROM worklog_sync_records
WHERE user_id = ? AND date >= ? AND date <= ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced slices: %w", err)
	}
	defer closeQuietly(rows)

	synced := make(map[string]bool)
	for rows.Next() {
		var project, date string
		if err := rows.Scan(&project, &date); err != nil {
			return nil, fmt.Errorf("failed to scan synced slice: %w", err)
		}
		synced[project+"|"+date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate synced slices: %w", err)
	}
	return synced, nil
}

func scanSyncRecord(row rowScanner) (*models.WorklogSyncRecord, error) {
	var rec models.WorklogSyncRecord
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ProjectPath, &rec.Date, &rec.JiraIssueKey,
		&rec.Hours, &rec.Description, &rec.TempoWorklogID, &rec.SyncedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}
