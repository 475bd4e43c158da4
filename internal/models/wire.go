// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package models

// Per-entry result statuses returned by the worklog sync executor.
const (
	EntryStatusSuccess = "success"
	EntryStatusError   = "error"
	EntryStatusPending = "pending" // dry-run preview, nothing sent
)

// WorklogEntryRequest is a single worklog row to upload. Minutes is the
// integer wire unit; callers convert hours with round(hours*60).
type WorklogEntryRequest struct {
	IssueKey    string `json:"issue_key" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Minutes     int64  `json:"minutes" validate:"gt=0"`
	Description string `json:"description"`
	// ProjectPath keys the writeback to the mapping and sync record stores.
	// For manual items it carries the work item id instead of a project path.
	ProjectPath string `json:"project_path,omitempty"`
	// Manual marks an entry derived from a manual work item. Manual entries
	// skip the mapping writeback and are marked synced by item id.
	Manual bool `json:"manual,omitempty"`
}

// WorklogEntryResult is the per-entry outcome of a sync call.
type WorklogEntryResult struct {
	ID           string  `json:"id,omitempty"` // remote worklog id on success
	IssueKey     string  `json:"issue_key"`
	Date         string  `json:"date"`
	Minutes      int64   `json:"minutes"`
	Hours        float64 `json:"hours"`
	Description  string  `json:"description"`
	Status       string  `json:"status"` // success | error | pending
	ErrorMessage string  `json:"error_message,omitempty"`
	ProjectPath  string  `json:"project_path,omitempty"`
}

// SyncWorklogsRequest is the batched upload request.
type SyncWorklogsRequest struct {
	Entries []WorklogEntryRequest `json:"entries" validate:"required,dive"`
	DryRun  bool                  `json:"dry_run"`
}

// SyncWorklogsResponse mirrors the request shape for both dry-run and real
// invocations so callers can preview a batch before committing it.
type SyncWorklogsResponse struct {
	Success      bool                 `json:"success"`
	TotalEntries int                  `json:"total_entries"`
	Successful   int                  `json:"successful"`
	Failed       int                  `json:"failed"`
	Results      []WorklogEntryResult `json:"results"`
	DryRun       bool                 `json:"dry_run"`
}

// ValidateIssueResponse is the result of validating a remote issue key.
type ValidateIssueResponse struct {
	Valid       bool   `json:"valid"`
	IssueKey    string `json:"issue_key"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	IssueType   string `json:"issue_type,omitempty"`
	Message     string `json:"message"`
}

// IssueSearchResult is one row of a type-ahead issue search.
type IssueSearchResult struct {
	IssueKey  string `json:"issue_key"`
	Summary   string `json:"summary"`
	IssueType string `json:"issue_type,omitempty"`
}

// AggregateRequest scopes an aggregation run. All fields optional; zero
// values mean "no filter".
type AggregateRequest struct {
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Source    string `json:"source,omitempty"`
}

// AggregateResponse reports the outcome of an aggregation run.
// OriginalCount is the pre-aggregation item count in scope, AggregatedCount
// the resulting number of top-level groups, and DeletedCount the number of
// raw rows absorbed into parents (the rows remain addressable via ParentID;
// aggregation is referential, not destructive).
type AggregateResponse struct {
	OriginalCount   int `json:"original_count"`
	AggregatedCount int `json:"aggregated_count"`
	DeletedCount    int `json:"deleted_count"`
}

// SaveMappingRequest upserts a project-to-issue mapping.
type SaveMappingRequest struct {
	ProjectPath  string `json:"project_path" validate:"required"`
	JiraIssueKey string `json:"jira_issue_key" validate:"required"`
}

// SaveSyncRecordRequest upserts a worklog sync record. Exposed for manual
// repair flows; the sync executor writes records directly on success.
type SaveSyncRecordRequest struct {
	ProjectPath    string  `json:"project_path" validate:"required"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	JiraIssueKey   string  `json:"jira_issue_key" validate:"required"`
	Hours          float64 `json:"hours" validate:"gt=0"`
	Description    string  `json:"description,omitempty"`
	TempoWorklogID string  `json:"tempo_worklog_id,omitempty"`
}

// BatchSyncRow is a transient candidate row produced by the batch builder.
// It is never persisted; the executor converts accepted rows to wire
// entries. The same shape serves single-item, day, and week scopes.
type BatchSyncRow struct {
	ProjectPath string  `json:"project_path"` // project path or manual item id
	DisplayName string  `json:"display_name"`
	IssueKey    string  `json:"issue_key"` // prefilled from mapping, "" if unmapped
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
	Manual      bool    `json:"manual"`
	Date        string  `json:"date"` // YYYY-MM-DD
}
