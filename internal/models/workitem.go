// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package models

import "time"

// Work item sources. Every importer stamps the items it produces so the
// aggregator and batch builder can filter by origin.
const (
	SourceSession    = "session"    // agent session importer
	SourceCommit     = "commit"     // git commit importer
	SourceManual     = "manual"     // user-entered items
	SourceAggregated = "aggregated" // parent rows produced by the aggregator
)

// DateFormat is the canonical calendar-day format used for work item dates,
// sync record keys, and the remote worklog API.
const DateFormat = "2006-01-02"

// WorkItem is a canonical record of time spent on a project on a given date.
//
// Invariants:
//   - Every item belongs to exactly one (ProjectPath, Date) pair.
//   - If ParentID is non-empty the item is a child absorbed by an aggregated
//     parent and is excluded from top-level totals and batch candidates.
//   - SyncedToTempo and TempoWorklogID are set only by the sync executor
//     after a successful real (non dry-run) upload.
type WorkItem struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Source         string    `json:"source"`
	SourceID       string    `json:"source_id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Hours          float64   `json:"hours"`
	Date           string    `json:"date"` // YYYY-MM-DD
	ProjectPath    string    `json:"project_path"`
	JiraIssueKey   string    `json:"jira_issue_key,omitempty"`
	SyncedToTempo  bool      `json:"synced_to_tempo"`
	TempoWorklogID string    `json:"tempo_worklog_id,omitempty"`
	ParentID       string    `json:"parent_id,omitempty"`
	ChildCount     int       `json:"child_count,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsChild reports whether the item has been absorbed by an aggregated parent.
func (w *WorkItem) IsChild() bool {
	return w.ParentID != ""
}

// GroupKey returns the aggregation key for the item. Items sharing a group
// key are merged into one parent by the aggregator.
func (w *WorkItem) GroupKey() string {
	return w.ProjectPath + "|" + w.Date
}

// ProjectIssueMapping associates a local project path with a remote issue
// key. At most one active mapping exists per (UserID, ProjectPath); saves
// are last-write-wins.
type ProjectIssueMapping struct {
	ProjectPath  string    `json:"project_path"`
	UserID       string    `json:"user_id"`
	JiraIssueKey string    `json:"jira_issue_key"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorklogSyncRecord is the durable marker that a given (project, date) pair
// has already been uploaded to the remote worklog system. Exactly one record
// exists per (UserID, ProjectPath, Date); a re-sync replaces it. The old
// remote worklog reference is not reconciled when replaced, so the previous
// remote entry may be orphaned. The executor logs a warning naming it.
type WorklogSyncRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ProjectPath    string    `json:"project_path"`
	Date           string    `json:"date"` // YYYY-MM-DD
	JiraIssueKey   string    `json:"jira_issue_key"`
	Hours          float64   `json:"hours"`
	Description    string    `json:"description,omitempty"`
	TempoWorklogID string    `json:"tempo_worklog_id,omitempty"`
	SyncedAt       time.Time `json:"synced_at"`
}

// Background sync phases, in execution order.
const (
	PhaseSources    = "sources"
	PhaseSnapshots  = "snapshots"
	PhaseCompaction = "compaction"
	PhaseComplete   = "complete"
)

// BackgroundSyncStatus is the single source-of-truth status record for the
// background sync pipeline. One logical row exists per user; every reader
// (HTTP status endpoint, websocket observers, the periodic poller) resolves
// through the store rather than caching its own copy.
type BackgroundSyncStatus struct {
	UserID     string     `json:"user_id"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	Running    bool       `json:"running"`
	Phase      string     `json:"phase,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// SyncProgress is a progress event published on each phase transition of a
// background sync run. Delivered to all subscribers of the progress bus.
type SyncProgress struct {
	Phase  string `json:"phase"` // sources | snapshots | compaction | complete
	Detail string `json:"detail,omitempty"`
}
