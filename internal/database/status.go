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

// GetSyncStatus returns the background sync status row for a user. A user
// that has never synced gets a zero-value status, not an error, so status
// polling works from first start.
func (db *DB) GetSyncStatus(ctx context.Context, userID string) (*models.BackgroundSyncStatus, error) {
	query := `
SELECT user_id, last_sync_at, running, phase, last_result, last_error
FROM background_sync_status
WHERE user_id = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	var (
		status models.BackgroundSyncStatus
		lastAt sql.NullTime
	)
	err = stmt.QueryRowContext(ctx, userID).Scan(
		&status.UserID, &lastAt, &status.Running,
		&status.Phase, &status.LastResult, &status.LastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.BackgroundSyncStatus{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	if lastAt.Valid {
		t := lastAt.Time
		status.LastSyncAt = &t
	}
	return &status, nil
}

// SetSyncRunning marks a sync run as started and records the current phase.
// Called again on each phase transition to keep the stored phase current.
func (db *DB) SetSyncRunning(ctx context.Context, userID, phase string) error {
	query := `
INSERT INTO background_sync_status (user_id, running, phase, last_error, updated_at)
VALUES (?, TRUE, ?, '', ?)
ON CONFLICT (user_id) DO UPDATE SET
	running = TRUE,
	phase = excluded.phase,
	last_error = '',
	updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, userID, phase, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set sync running: %w", err)
	}
	return nil
}

// SetSyncComplete marks a run as finished and advances last_sync_at.
// notification carries non-fatal problems (a subset of sources failing);
// a run that imported anything at all still completes.
func (db *DB) SetSyncComplete(ctx context.Context, userID, result, notification string) error {
	query := `
INSERT INTO background_sync_status (user_id, last_sync_at, running, phase, last_result, last_error, updated_at)
VALUES (?, ?, FALSE, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	last_sync_at = excluded.last_sync_at,
	running = FALSE,
	phase = excluded.phase,
	last_result = excluded.last_result,
	last_error = excluded.last_error,
	updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := stmt.ExecContext(ctx, userID, now, models.PhaseComplete, result, notification, now); err != nil {
		return fmt.Errorf("failed to set sync complete: %w", err)
	}
	return nil
}

// SetSyncFailed marks an aborted run. last_sync_at keeps its previous
// value so "last successful sync" stays truthful.
func (db *DB) SetSyncFailed(ctx context.Context, userID, errMsg string) error {
	query := `
INSERT INTO background_sync_status (user_id, running, phase, last_result, last_error, updated_at)
VALUES (?, FALSE, '', '', ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	running = FALSE,
	phase = '',
	last_error = excluded.last_error,
	updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, userID, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set sync failed: %w", err)
	}
	return nil
}
