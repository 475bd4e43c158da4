// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package syncer uploads worklog batches to the remote tracker and records
// the outcome locally.
//
// Failure handling is per entry: a rejected entry is reported in its result
// row and leaves no local trace, so the next batch offers it again. Only a
// transport-level failure (remote unreachable, auth dead) fails the whole
// call, and then nothing at all is persisted. There is no automatic retry;
// re-running the batch is the retry.
//
// A dry run previews the batch without uploading or persisting anything.
// Each row's issue key is checked read-only against the validator, so the
// preview flags rows that a real run would reject.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/issues"
	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// ErrTransport marks a whole-batch failure where the remote was never
// usable. No entry was uploaded and nothing was persisted.
var ErrTransport = errors.New("worklog sync transport failure")

// Executor uploads worklog entries for one user.
type Executor struct {
	db        *database.DB
	api       jira.API
	validator *issues.Validator
	userID    string
}

// New creates an executor. The validator backs the dry-run preview; its
// cache keeps repeated previews of the same keys off the remote.
func New(db *database.DB, api jira.API, validator *issues.Validator, userID string) *Executor {
	return &Executor{db: db, api: api, validator: validator, userID: userID}
}

// RowsToEntries converts batch candidate rows to wire entries. Hours become
// integer minutes via round(hours * 60).
func RowsToEntries(rows []models.BatchSyncRow) []models.WorklogEntryRequest {
	entries := make([]models.WorklogEntryRequest, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.WorklogEntryRequest{
			IssueKey:    row.IssueKey,
			Date:        row.Date,
			Minutes:     int64(math.Round(row.Hours * 60)),
			Description: row.Description,
			ProjectPath: row.ProjectPath,
			Manual:      row.Manual,
		})
	}
	return entries
}

// Sync processes a batch. A dry run returns the same response shape as a
// real run, with rows whose issue key fails validation marked error, the
// rest pending, and nothing sent or persisted.
func (e *Executor) Sync(ctx context.Context, req *models.SyncWorklogsRequest) (*models.SyncWorklogsResponse, error) {
	entries := filterSyncable(req.Entries)
	metrics.WorklogBatchSize.Observe(float64(len(entries)))

	resp := &models.SyncWorklogsResponse{
		TotalEntries: len(req.Entries),
		DryRun:       req.DryRun,
		Results:      make([]models.WorklogEntryResult, 0, len(entries)),
	}

	if req.DryRun {
		for _, entry := range entries {
			status, message := e.previewStatus(ctx, entry)
			resp.Results = append(resp.Results, resultFor(entry, status, "", message))
			if status == models.EntryStatusError {
				resp.Failed++
			}
			metrics.RecordWorklogUpload("dry_run", 0)
		}
		resp.Success = resp.Failed == 0
		return resp, nil
	}

	// A dead remote fails the batch before any entry is attempted, keeping
	// the no-partial-persistence contract for transport errors.
	user, err := e.api.TestConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	for _, entry := range entries {
		start := time.Now()
		result, err := e.api.CreateWorklog(ctx, &jira.WorklogEntry{
			IssueKey:         entry.IssueKey,
			Date:             entry.Date,
			TimeSpentSeconds: entry.Minutes * 60,
			Description:      entry.Description,
			AccountID:        user.AccountID,
		})
		if err != nil {
			logging.Warn().Err(err).
				Str("issue_key", entry.IssueKey).
				Str("date", entry.Date).
				Msg("Worklog upload rejected")
			resp.Results = append(resp.Results, resultFor(entry, models.EntryStatusError, "", err.Error()))
			resp.Failed++
			metrics.RecordWorklogUpload("failure", time.Since(start))
			continue
		}

		worklogID := result.WorklogID()
		e.recordSuccess(ctx, entry, worklogID)
		resp.Results = append(resp.Results, resultFor(entry, models.EntryStatusSuccess, worklogID, ""))
		resp.Successful++
		metrics.RecordWorklogUpload("success", time.Since(start))
	}

	resp.Success = resp.Failed == 0
	return resp, nil
}

// previewStatus checks one dry-run row's issue key read-only. Only a
// definitive negative marks the row as an error; when the remote is not
// configured or unreachable the row stays pending, since flagging keys
// that may well be valid would make the preview cry wolf offline.
func (e *Executor) previewStatus(ctx context.Context, entry models.WorklogEntryRequest) (string, string) {
	check, err := e.validator.Validate(ctx, entry.IssueKey)
	if err != nil {
		logging.Debug().Err(err).Str("issue_key", entry.IssueKey).
			Msg("Dry-run issue validation unavailable")
		return models.EntryStatusPending, ""
	}
	if !check.Valid {
		return models.EntryStatusError, check.Message
	}
	return models.EntryStatusPending, ""
}

// recordSuccess writes the local markers for an uploaded entry. The upload
// already happened, so writeback failures are logged rather than reported
// as entry failures; retrying the entry would duplicate the remote worklog.
func (e *Executor) recordSuccess(ctx context.Context, entry models.WorklogEntryRequest, worklogID string) {
	if entry.Manual {
		if err := e.db.MarkItemSynced(ctx, entry.ProjectPath, worklogID); err != nil {
			logging.Error().Err(err).Str("item", entry.ProjectPath).Msg("Failed to mark manual item synced")
		}
	} else {
		if err := e.db.UpsertMapping(ctx, &models.ProjectIssueMapping{
			ProjectPath:  entry.ProjectPath,
			UserID:       e.userID,
			JiraIssueKey: entry.IssueKey,
		}); err != nil {
			logging.Error().Err(err).Str("project", entry.ProjectPath).Msg("Failed to save mapping")
		}
		if _, err := e.db.MarkGroupSynced(ctx, e.userID, entry.ProjectPath, entry.Date, worklogID); err != nil {
			logging.Error().Err(err).Str("project", entry.ProjectPath).Msg("Failed to mark group synced")
		}
	}

	previous, err := e.db.UpsertSyncRecord(ctx, &models.WorklogSyncRecord{
		ID:             uuid.New().String(),
		UserID:         e.userID,
		ProjectPath:    entry.ProjectPath,
		Date:           entry.Date,
		JiraIssueKey:   entry.IssueKey,
		Hours:          hoursFromMinutes(entry.Minutes),
		Description:    entry.Description,
		TempoWorklogID: worklogID,
	})
	if err != nil {
		logging.Error().Err(err).Str("project", entry.ProjectPath).Msg("Failed to save sync record")
		return
	}
	if previous != "" && previous != worklogID {
		logging.Warn().
			Str("project", entry.ProjectPath).
			Str("date", entry.Date).
			Str("orphaned_worklog_id", previous).
			Str("new_worklog_id", worklogID).
			Msg("Re-sync replaced an existing sync record; the previous remote worklog was not deleted")
	}
}

// filterSyncable drops entries that cannot be uploaded: missing issue key
// or non-positive duration.
func filterSyncable(entries []models.WorklogEntryRequest) []models.WorklogEntryRequest {
	out := make([]models.WorklogEntryRequest, 0, len(entries))
	for _, entry := range entries {
		if entry.IssueKey == "" {
			logging.Debug().Str("project", entry.ProjectPath).Str("date", entry.Date).
				Msg("Skipping entry without issue key")
			continue
		}
		if entry.Minutes <= 0 {
			logging.Debug().Str("issue_key", entry.IssueKey).Str("date", entry.Date).
				Msg("Skipping entry with non-positive duration")
			continue
		}
		out = append(out, entry)
	}
	return out
}

func resultFor(entry models.WorklogEntryRequest, status, worklogID, errMsg string) models.WorklogEntryResult {
	return models.WorklogEntryResult{
		ID:           worklogID,
		IssueKey:     entry.IssueKey,
		Date:         entry.Date,
		Minutes:      entry.Minutes,
		Hours:        hoursFromMinutes(entry.Minutes),
		Description:  entry.Description,
		Status:       status,
		ErrorMessage: errMsg,
		ProjectPath:  entry.ProjectPath,
	}
}

func hoursFromMinutes(minutes int64) float64 {
	return float64(minutes) / 60.0
}
