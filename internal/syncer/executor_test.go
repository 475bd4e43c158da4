// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/issues"
	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/models"
)

var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	type result struct {
		db  *database.DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout creating test database")
		return nil
	}
}

// fakeAPI stubs the remote tracker. failKeys entries are rejected with a
// per-entry error on upload; missingKeys do not resolve on lookup; connErr
// fails TestConnection; issueErr fails every lookup at the transport level.
type fakeAPI struct {
	connErr      error
	issueErr     error
	failKeys     map[string]error
	missingKeys  map[string]bool
	createCalls  int
	testCalls    int
	lastEntry    *jira.WorklogEntry
	nextWorklogN int
}

func (f *fakeAPI) TestConnection(ctx context.Context) (*jira.UserInfo, error) {
	f.testCalls++
	if f.connErr != nil {
		return nil, f.connErr
	}
	return &jira.UserInfo{AccountID: "acct-1", DisplayName: "Test User"}, nil
}

func (f *fakeAPI) GetIssue(ctx context.Context, issueKey string) (*jira.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	if f.missingKeys[issueKey] {
		return nil, jira.ErrIssueNotFound
	}
	return &jira.Issue{Key: issueKey, Summary: "summary for " + issueKey}, nil
}

func (f *fakeAPI) SearchIssues(ctx context.Context, query string, limit int) ([]jira.Issue, error) {
	return nil, nil
}

func (f *fakeAPI) CreateWorklog(ctx context.Context, entry *jira.WorklogEntry) (*jira.WorklogResult, error) {
	f.createCalls++
	f.lastEntry = entry
	if err, ok := f.failKeys[entry.IssueKey]; ok {
		return nil, err
	}
	f.nextWorklogN++
	return &jira.WorklogResult{ID: fmt.Sprintf("wl-%d", f.nextWorklogN)}, nil
}

// newExecutor builds an executor whose dry-run validator runs against an
// in-memory issue cache.
func newExecutor(t *testing.T, db *database.DB, api jira.API) *Executor {
	t.Helper()

	cache, err := issues.OpenCache("")
	if err != nil {
		t.Fatalf("Failed to open issue cache: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return New(db, api, issues.NewValidator(api, cache), "u1")
}

func entry(issueKey, project, date string, minutes int64) models.WorklogEntryRequest {
	return models.WorklogEntryRequest{
		IssueKey:    issueKey,
		Date:        date,
		Minutes:     minutes,
		Description: "work on " + issueKey,
		ProjectPath: project,
	}
}

func TestSyncDryRunPersistsNothing(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{}
	ctx := context.Background()

	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{
			entry("PROJ-1", "proj/a", "2026-08-20", 90),
			entry("PROJ-2", "proj/b", "2026-08-20", 30),
		},
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if !resp.Success || !resp.DryRun {
		t.Errorf("resp = %+v, want successful dry run", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.Status != models.EntryStatusPending {
			t.Errorf("result status = %q, want pending", r.Status)
		}
		if r.ID != "" {
			t.Errorf("dry-run result carries worklog id %q", r.ID)
		}
	}
	if resp.Results[0].Hours != 1.5 {
		t.Errorf("hours = %v, want 1.5", resp.Results[0].Hours)
	}

	if api.createCalls != 0 || api.testCalls != 0 {
		t.Errorf("dry run reached the remote: create=%d test=%d", api.createCalls, api.testCalls)
	}
	if _, err := db.GetSyncRecord(ctx, "u1", "proj/a", "2026-08-20"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("dry run persisted a sync record: %v", err)
	}
}

func TestSyncDryRunFlagsInvalidIssueKey(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{missingKeys: map[string]bool{"BAD-1": true}}
	ctx := context.Background()

	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{
			entry("BAD-1", "proj/b", "2026-08-20", 60),
			entry("PROJ-1", "proj/a", "2026-08-20", 90),
		},
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if resp.Success || resp.Failed != 1 {
		t.Errorf("resp = %+v, want 1 flagged row", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}

	byKey := map[string]models.WorklogEntryResult{}
	for _, r := range resp.Results {
		byKey[r.IssueKey] = r
	}
	if bad := byKey["BAD-1"]; bad.Status != models.EntryStatusError || bad.ErrorMessage == "" {
		t.Errorf("invalid key row = %+v, want error status with message", bad)
	}
	if good := byKey["PROJ-1"]; good.Status != models.EntryStatusPending {
		t.Errorf("valid key row = %+v, want pending", good)
	}

	// Read-only preview: no uploads, no persisted state for either row.
	if api.createCalls != 0 || api.testCalls != 0 {
		t.Errorf("dry run wrote to the remote: create=%d test=%d", api.createCalls, api.testCalls)
	}
	for _, project := range []string{"proj/a", "proj/b"} {
		if _, err := db.GetSyncRecord(ctx, "u1", project, "2026-08-20"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("dry run persisted a sync record for %s: %v", project, err)
		}
	}
}

func TestSyncDryRunUnreachableValidationStaysPending(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{issueErr: errors.New("connection refused")}

	resp, err := newExecutor(t, db, api).Sync(context.Background(), &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{entry("PROJ-1", "proj/a", "2026-08-20", 60)},
		DryRun:  true,
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	// An unreachable remote is not evidence the key is bad; the preview
	// keeps working offline.
	if !resp.Success || resp.Failed != 0 {
		t.Errorf("resp = %+v, want no flagged rows", resp)
	}
	if resp.Results[0].Status != models.EntryStatusPending {
		t.Errorf("result status = %q, want pending", resp.Results[0].Status)
	}
}

func TestSyncUploadsAndRecords(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{}
	ctx := context.Background()

	item := &models.WorkItem{
		ID: uuid.New().String(), UserID: "u1", Source: models.SourceSession,
		SourceID: "s1", Title: "Fix login", Hours: 1.5,
		Date: "2026-08-20", ProjectPath: "proj/a",
	}
	if err := db.UpsertWorkItem(ctx, item); err != nil {
		t.Fatalf("UpsertWorkItem() error: %v", err)
	}

	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{entry("PROJ-1", "proj/a", "2026-08-20", 90)},
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if !resp.Success || resp.Successful != 1 || resp.Failed != 0 {
		t.Fatalf("resp = %+v, want 1 success", resp)
	}
	if resp.Results[0].ID != "wl-1" {
		t.Errorf("result id = %q, want wl-1", resp.Results[0].ID)
	}
	if api.lastEntry.TimeSpentSeconds != 5400 {
		t.Errorf("timeSpentSeconds = %d, want 5400", api.lastEntry.TimeSpentSeconds)
	}
	if api.lastEntry.AccountID != "acct-1" {
		t.Errorf("accountID = %q, want acct-1", api.lastEntry.AccountID)
	}

	mapping, err := db.GetMapping(ctx, "proj/a", "u1")
	if err != nil {
		t.Fatalf("GetMapping() error: %v", err)
	}
	if mapping.JiraIssueKey != "PROJ-1" {
		t.Errorf("mapping issue key = %q, want PROJ-1", mapping.JiraIssueKey)
	}

	rec, err := db.GetSyncRecord(ctx, "u1", "proj/a", "2026-08-20")
	if err != nil {
		t.Fatalf("GetSyncRecord() error: %v", err)
	}
	if rec.TempoWorklogID != "wl-1" || rec.Hours != 1.5 {
		t.Errorf("record = %+v, want wl-1 / 1.5h", rec)
	}

	got, err := db.GetWorkItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetWorkItem() error: %v", err)
	}
	if !got.SyncedToTempo || got.TempoWorklogID != "wl-1" {
		t.Errorf("work item not marked synced: %+v", got)
	}
}

func TestSyncPartialFailureIsolatesRows(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{failKeys: map[string]error{
		"BAD-1": fmt.Errorf("%w: no such issue", jira.ErrIssueNotFound),
	}}
	ctx := context.Background()

	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{
			entry("PROJ-1", "proj/a", "2026-08-20", 60),
			entry("BAD-1", "proj/b", "2026-08-20", 60),
		},
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if resp.Success {
		t.Error("batch with failures reported Success")
	}
	if resp.Successful != 1 || resp.Failed != 1 {
		t.Fatalf("successful=%d failed=%d, want 1/1", resp.Successful, resp.Failed)
	}

	var failedRow *models.WorklogEntryResult
	for i := range resp.Results {
		if resp.Results[i].Status == models.EntryStatusError {
			failedRow = &resp.Results[i]
		}
	}
	if failedRow == nil || failedRow.IssueKey != "BAD-1" || failedRow.ErrorMessage == "" {
		t.Fatalf("failed row = %+v", failedRow)
	}

	// The failed slice left no trace, so a rebuilt batch offers it again.
	if _, err := db.GetSyncRecord(ctx, "u1", "proj/b", "2026-08-20"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("failed row persisted a sync record: %v", err)
	}
	if _, err := db.GetSyncRecord(ctx, "u1", "proj/a", "2026-08-20"); err != nil {
		t.Errorf("successful row missing its sync record: %v", err)
	}
}

func TestSyncTransportFailurePersistsNothing(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{connErr: errors.New("connection refused")}
	ctx := context.Background()

	_, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{entry("PROJ-1", "proj/a", "2026-08-20", 60)},
	})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if api.createCalls != 0 {
		t.Errorf("entries attempted despite transport failure: %d", api.createCalls)
	}
	if _, err := db.GetSyncRecord(ctx, "u1", "proj/a", "2026-08-20"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("transport failure persisted a sync record: %v", err)
	}
}

func TestSyncFiltersUnsyncableEntries(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{}

	resp, err := newExecutor(t, db, api).Sync(context.Background(), &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{
			entry("", "proj/a", "2026-08-20", 60),     // unmapped
			entry("PROJ-1", "proj/b", "2026-08-20", 0), // zero duration
			entry("PROJ-2", "proj/c", "2026-08-20", 30),
		},
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	// The total reflects the submitted set so counts read against what the
	// caller sent; only syncable entries get result rows.
	if resp.TotalEntries != 3 || len(resp.Results) != 1 {
		t.Fatalf("total=%d results=%d, want 3/1", resp.TotalEntries, len(resp.Results))
	}
	if resp.Results[0].IssueKey != "PROJ-2" {
		t.Errorf("kept entry = %q, want PROJ-2", resp.Results[0].IssueKey)
	}
}

func TestSyncManualEntryMarkedByID(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{}
	ctx := context.Background()

	item := &models.WorkItem{
		ID: uuid.New().String(), UserID: "u1", Source: models.SourceManual,
		SourceID: "m1", Title: "Sprint planning", Hours: 1.0, Date: "2026-08-20",
	}
	if err := db.UpsertWorkItem(ctx, item); err != nil {
		t.Fatalf("UpsertWorkItem() error: %v", err)
	}

	req := entry("OPS-9", item.ID, "2026-08-20", 60)
	req.Manual = true
	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{req},
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if resp.Successful != 1 {
		t.Fatalf("resp = %+v, want 1 success", resp)
	}

	got, err := db.GetWorkItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetWorkItem() error: %v", err)
	}
	if !got.SyncedToTempo || got.TempoWorklogID != "wl-1" {
		t.Errorf("manual item not marked synced: %+v", got)
	}
	// No project mapping is written for manual entries.
	if _, err := db.GetMapping(ctx, item.ID, "u1"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("manual entry wrote a mapping: %v", err)
	}
}

func TestSyncReSyncReplacesRecord(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeAPI{}
	ctx := context.Background()

	if _, err := db.UpsertSyncRecord(ctx, &models.WorklogSyncRecord{
		ID: uuid.New().String(), UserID: "u1", ProjectPath: "proj/a",
		Date: "2026-08-20", JiraIssueKey: "PROJ-1", Hours: 1.0,
		TempoWorklogID: "wl-old",
	}); err != nil {
		t.Fatalf("UpsertSyncRecord() error: %v", err)
	}

	resp, err := newExecutor(t, db, api).Sync(ctx, &models.SyncWorklogsRequest{
		Entries: []models.WorklogEntryRequest{entry("PROJ-1", "proj/a", "2026-08-20", 120)},
	})
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if resp.Successful != 1 {
		t.Fatalf("resp = %+v, want 1 success", resp)
	}

	rec, err := db.GetSyncRecord(ctx, "u1", "proj/a", "2026-08-20")
	if err != nil {
		t.Fatalf("GetSyncRecord() error: %v", err)
	}
	if rec.TempoWorklogID != "wl-1" || rec.Hours != 2.0 {
		t.Errorf("record = %+v, want replaced with wl-1 / 2h", rec)
	}
}

func TestRowsToEntriesRounding(t *testing.T) {
	rows := []models.BatchSyncRow{
		{IssueKey: "PROJ-1", Date: "2026-08-20", Hours: 1.5, ProjectPath: "proj/a"},
		{IssueKey: "PROJ-2", Date: "2026-08-20", Hours: 0.333, ProjectPath: "proj/b"},
		{IssueKey: "OPS-9", Date: "2026-08-20", Hours: 1.0, ProjectPath: "item-id", Manual: true},
	}
	entries := RowsToEntries(rows)
	if entries[0].Minutes != 90 {
		t.Errorf("1.5h = %d minutes, want 90", entries[0].Minutes)
	}
	if entries[1].Minutes != 20 {
		t.Errorf("0.333h = %d minutes, want 20", entries[1].Minutes)
	}
	if !entries[2].Manual || entries[2].ProjectPath != "item-id" {
		t.Errorf("manual row not carried through: %+v", entries[2])
	}
}
