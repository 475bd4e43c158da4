// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mhuang-dev/worklogd/internal/models"
)

const workItemColumns = `id, user_id, source, source_id, title, description, hours, date,
	project_path, jira_issue_key, synced_to_tempo, tempo_worklog_id, parent_id, child_count,
	created_at, updated_at`

// childUpdateChunkSize bounds the IN clause when linking children to an
// aggregate parent. DuckDB handles large IN lists, but chunking keeps the
// prepared statement cache from filling with one-off SQL shapes.
const childUpdateChunkSize = 200

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (*models.WorkItem, error) {
	var item models.WorkItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.Source, &item.SourceID,
		&item.Title, &item.Description, &item.Hours, &item.Date,
		&item.ProjectPath, &item.JiraIssueKey, &item.SyncedToTempo,
		&item.TempoWorklogID, &item.ParentID, &item.ChildCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// UpsertWorkItem inserts a work item, or refreshes the mutable fields of an
// existing one. Identity is (user_id, source, source_id), so importers can
// re-scan the same sources without duplicating rows.
func (db *DB) UpsertWorkItem(ctx context.Context, item *models.WorkItem) error {
	query := `
INSERT INTO work_items (id, user_id, source, source_id, title, description, hours, date,
	project_path, jira_issue_key, parent_id, child_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, source, source_id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	hours = excluded.hours,
	date = excluded.date,
	project_path = excluded.project_path,
	updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = stmt.ExecContext(ctx,
		item.ID, item.UserID, item.Source, item.SourceID,
		item.Title, item.Description, item.Hours, item.Date,
		item.ProjectPath, item.JiraIssueKey, item.ParentID, item.ChildCount,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert work item: %w", err)
	}
	return nil
}

// GetWorkItem returns a single work item by id, or ErrNotFound.
func (db *DB) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = ?`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanWorkItem(stmt.QueryRowContext(ctx, id))
}

// ListWorkItems returns a user's work items in the inclusive date range
// [from, to], ordered by date then creation time.
func (db *DB) ListWorkItems(ctx context.Context, userID, from, to string) ([]*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM work_items
WHERE user_id = ? AND date >= ? AND date <= ?
ORDER BY date, created_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer closeQuietly(rows)

	return collectWorkItems(rows)
}

// ListAggregationCandidates returns raw items not yet absorbed by an
// aggregate parent, ordered so callers see stable group boundaries.
// Already-synced items are excluded so aggregation never rewrites history
// that has been uploaded.
func (db *DB) ListAggregationCandidates(ctx context.Context, userID string) ([]*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM work_items
WHERE user_id = ? AND parent_id = '' AND source != ? AND synced_to_tempo = FALSE
ORDER BY project_path, date, created_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userID, models.SourceAggregated)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregation candidates: %w", err)
	}
	defer closeQuietly(rows)

	return collectWorkItems(rows)
}

// GetAggregateParent returns the existing aggregate item for a group, or
// ErrNotFound when the group has never been aggregated.
func (db *DB) GetAggregateParent(ctx context.Context, userID, projectPath, date string) (*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM work_items
WHERE user_id = ? AND source = ? AND project_path = ? AND date = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanWorkItem(stmt.QueryRowContext(ctx, userID, models.SourceAggregated, projectPath, date))
}

// AggregateGroup atomically absorbs childIDs into the given parent. When
// the parent already exists (same user, aggregated source, same source_id)
// its hours, title, and child_count are refreshed; otherwise it is
// inserted. Children gain parent_id in the same transaction, so a crash
// mid-aggregation never leaves a parent without its children or vice versa.
func (db *DB) AggregateGroup(ctx context.Context, parent *models.WorkItem, childIDs []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin aggregation transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	now := time.Now().UTC()
	upsertParent := `
INSERT INTO work_items (id, user_id, source, source_id, title, description, hours, date,
	project_path, jira_issue_key, parent_id, child_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)
ON CONFLICT (user_id, source, source_id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	hours = excluded.hours,
	child_count = excluded.child_count,
	updated_at = excluded.updated_at`

	_, err = tx.ExecContext(ctx, upsertParent,
		parent.ID, parent.UserID, parent.Source, parent.SourceID,
		parent.Title, parent.Description, parent.Hours, parent.Date,
		parent.ProjectPath, parent.JiraIssueKey, parent.ChildCount,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate parent: %w", err)
	}

	// The parent id used by children must be the stored one, not the
	// candidate id, when an earlier run already created the parent.
	var parentID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM work_items WHERE user_id = ? AND source = ? AND source_id = ?`,
		parent.UserID, parent.Source, parent.SourceID,
	).Scan(&parentID)
	if err != nil {
		return fmt.Errorf("failed to resolve aggregate parent id: %w", err)
	}

	for start := 0; start < len(childIDs); start += childUpdateChunkSize {
		end := start + childUpdateChunkSize
		if end > len(childIDs) {
			end = len(childIDs)
		}
		chunk := childIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, 0, len(chunk)+2)
		args = append(args, parentID, now)
		for _, id := range chunk {
			args = append(args, id)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE work_items SET parent_id = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("failed to link children to aggregate parent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregation: %w", err)
	}
	return nil
}

// ListChildren returns the items absorbed by an aggregate parent, in
// creation order.
func (db *DB) ListChildren(ctx context.Context, parentID string) ([]*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + `
FROM work_items
WHERE parent_id = ?
ORDER BY created_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer closeQuietly(rows)

	return collectWorkItems(rows)
}

// MarkGroupSynced marks every unsynced item of a (project, date) slice as
// uploaded and stamps the remote worklog id. Already-synced rows keep their
// original worklog id. Returns the number of rows updated.
func (db *DB) MarkGroupSynced(ctx context.Context, userID, projectPath, date, worklogID string) (int64, error) {
	query := `
UPDATE work_items
SET synced_to_tempo = TRUE, tempo_worklog_id = ?, updated_at = ?
WHERE user_id = ? AND project_path = ? AND date = ? AND synced_to_tempo = FALSE`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, worklogID, time.Now().UTC(), userID, projectPath, date)
	if err != nil {
		return 0, fmt.Errorf("failed to mark group synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// MarkItemSynced marks a single work item as uploaded. Used for manual
// items, which have no project slice for MarkGroupSynced to match.
func (db *DB) MarkItemSynced(ctx context.Context, id, worklogID string) error {
	query := `
UPDATE work_items
SET synced_to_tempo = TRUE, tempo_worklog_id = ?, updated_at = ?
WHERE id = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, worklogID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark item synced: %w", err)
	}
	return nil
}

// DeleteWorkItem removes a work item. Children of a deleted aggregate
// parent revert to unaggregated.
func (db *DB) DeleteWorkItem(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`UPDATE work_items SET parent_id = '' WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach children: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete work item: %w", err)
	}
	return tx.Commit()
}

// CountWorkItems returns the number of work items for a user.
func (db *DB) CountWorkItems(ctx context.Context, userID string) (int64, error) {
	stmt, err := db.getStmt(ctx, `SELECT COUNT(*) FROM work_items WHERE user_id = ?`)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := stmt.QueryRowContext(ctx, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count work items: %w", err)
	}
	return n, nil
}

func collectWorkItems(rows *sql.Rows) ([]*models.WorkItem, error) {
	var items []*models.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work items: %w", err)
	}
	return items, nil
}

// rollbackQuietly rolls back a transaction, ignoring the error returned
// after a successful commit.
func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}
