// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mhuang-dev/worklogd/internal/models"
)

// UpsertMapping saves or replaces the Jira issue key for a project. The
// (project_path, user_id) pair is the identity; saving a different key for
// the same project overwrites the old one.
func (db *DB) UpsertMapping(ctx context.Context, m *models.ProjectIssueMapping) error {
	query := `
INSERT INTO project_issue_mappings (project_path, user_id, issue_key, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (project_path, user_id) DO UPDATE SET
	issue_key = excluded.issue_key,
	updated_at = excluded.updated_at`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, m.ProjectPath, m.UserID, m.JiraIssueKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return nil
}

// GetMapping returns the mapping for a project, or ErrNotFound.
func (db *DB) GetMapping(ctx context.Context, projectPath, userID string) (*models.ProjectIssueMapping, error) {
	query := `
SELECT project_path, user_id, issue_key, updated_at
FROM project_issue_mappings
WHERE project_path = ? AND user_id = ?`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}

	var m models.ProjectIssueMapping
	err = stmt.QueryRowContext(ctx, projectPath, userID).Scan(
		&m.ProjectPath, &m.UserID, &m.JiraIssueKey, &m.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMappings returns all mappings for a user, ordered by project path.
func (db *DB) ListMappings(ctx context.Context, userID string) ([]*models.ProjectIssueMapping, error) {
	query := `
SELECT project_path, user_id, issue_key, updated_at
FROM project_issue_mappings
WHERE user_id = ?
ORDER BY project_path`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer closeQuietly(rows)

	var out []*models.ProjectIssueMapping
	for rows.Next() {
		var m models.ProjectIssueMapping
		if err := rows.Scan(&m.ProjectPath, &m.UserID, &m.JiraIssueKey, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}
	return out, nil
}

// DeleteMapping removes a project's mapping. Deleting a missing mapping is
// not an error.
func (db *DB) DeleteMapping(ctx context.Context, projectPath, userID string) error {
	stmt, err := db.getStmt(ctx,
		`DELETE FROM project_issue_mappings WHERE project_path = ? AND user_id = ?`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, projectPath, userID); err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}
