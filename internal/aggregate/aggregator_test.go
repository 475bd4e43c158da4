// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package aggregate

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
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

func insertItem(t *testing.T, db *database.DB, project, date string, hours float64, title string) *models.WorkItem {
	t.Helper()
	item := &models.WorkItem{
		ID:          uuid.New().String(),
		UserID:      "u1",
		Source:      models.SourceSession,
		SourceID:    uuid.New().String(),
		Title:       title,
		Hours:       hours,
		Date:        date,
		ProjectPath: project,
	}
	if err := db.UpsertWorkItem(context.Background(), item); err != nil {
		t.Fatalf("UpsertWorkItem() error: %v", err)
	}
	return item
}

func TestRunMergesGroups(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertItem(t, db, "proj/a", "2026-08-20", 1.5, "Fix login")
	insertItem(t, db, "proj/a", "2026-08-20", 2.0, "Add tests")
	insertItem(t, db, "proj/a", "2026-08-21", 0.5, "Review")
	insertItem(t, db, "proj/b", "2026-08-20", 3.0, "Refactor")

	resp, err := New(db, "u1").Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if resp.OriginalCount != 4 {
		t.Errorf("original_count = %d, want 4", resp.OriginalCount)
	}
	// proj/a|20 merges into one parent; proj/a|21 and proj/b|20 stay as
	// singleton groups.
	if resp.AggregatedCount != 3 {
		t.Errorf("aggregated_count = %d, want 3", resp.AggregatedCount)
	}
	if resp.DeletedCount != 2 {
		t.Errorf("deleted_count = %d, want 2", resp.DeletedCount)
	}

	parent, err := db.GetAggregateParent(ctx, "u1", "proj/a", "2026-08-20")
	if err != nil {
		t.Fatalf("GetAggregateParent() error: %v", err)
	}
	if math.Abs(parent.Hours-3.5) > 0.01 {
		t.Errorf("parent hours = %v, want 3.5", parent.Hours)
	}
	if parent.Title != "[proj/a] 2 tasks" {
		t.Errorf("parent title = %q", parent.Title)
	}
	if parent.ChildCount != 2 {
		t.Errorf("child_count = %d, want 2", parent.ChildCount)
	}
	if !strings.Contains(parent.Description, "1. Fix login") ||
		!strings.Contains(parent.Description, "2. Add tests") {
		t.Errorf("description missing task list: %q", parent.Description)
	}
	if !strings.Contains(parent.Description, "Total: 3.5h") {
		t.Errorf("description missing hours trailer: %q", parent.Description)
	}
}

func TestRunIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertItem(t, db, "proj/a", "2026-08-20", 1.0, "One")
	insertItem(t, db, "proj/a", "2026-08-20", 2.0, "Two")

	agg := New(db, "u1")
	if _, err := agg.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	resp, err := agg.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run() second pass error: %v", err)
	}
	if resp.DeletedCount != 0 {
		t.Errorf("second run deleted_count = %d, want 0", resp.DeletedCount)
	}
	if resp.OriginalCount != 0 {
		t.Errorf("second run original_count = %d, want 0 (all items absorbed)", resp.OriginalCount)
	}

	parent, err := db.GetAggregateParent(ctx, "u1", "proj/a", "2026-08-20")
	if err != nil {
		t.Fatalf("GetAggregateParent() error: %v", err)
	}
	if parent.ChildCount != 2 || math.Abs(parent.Hours-3.0) > 0.01 {
		t.Errorf("parent mutated on idempotent rerun: count=%d hours=%v", parent.ChildCount, parent.Hours)
	}
}

func TestRunAbsorbsLateArrivalsIntoExistingParent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertItem(t, db, "proj/a", "2026-08-20", 1.0, "One")
	insertItem(t, db, "proj/a", "2026-08-20", 2.0, "Two")

	agg := New(db, "u1")
	if _, err := agg.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// A later import discovers one more item for the same slice.
	insertItem(t, db, "proj/a", "2026-08-20", 0.5, "Three")

	resp, err := agg.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run() after late arrival error: %v", err)
	}
	if resp.DeletedCount != 1 {
		t.Errorf("deleted_count = %d, want 1 (only the new item absorbed)", resp.DeletedCount)
	}

	parent, err := db.GetAggregateParent(ctx, "u1", "proj/a", "2026-08-20")
	if err != nil {
		t.Fatalf("GetAggregateParent() error: %v", err)
	}
	if parent.ChildCount != 3 {
		t.Errorf("child_count = %d, want 3", parent.ChildCount)
	}
	if math.Abs(parent.Hours-3.5) > 0.01 {
		t.Errorf("parent hours = %v, want 3.5", parent.Hours)
	}
	if parent.Title != "[proj/a] 3 tasks" {
		t.Errorf("parent title = %q", parent.Title)
	}
}

func TestRunScopeFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insertItem(t, db, "proj/a", "2026-08-19", 1.0, "Old one")
	insertItem(t, db, "proj/a", "2026-08-19", 1.0, "Old two")
	insertItem(t, db, "proj/a", "2026-08-20", 1.0, "New one")
	insertItem(t, db, "proj/a", "2026-08-20", 1.0, "New two")

	resp, err := New(db, "u1").Run(ctx, &models.AggregateRequest{
		StartDate: "2026-08-20",
		EndDate:   "2026-08-20",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if resp.OriginalCount != 2 || resp.DeletedCount != 2 {
		t.Errorf("scoped run: original=%d deleted=%d, want 2/2", resp.OriginalCount, resp.DeletedCount)
	}

	// Out-of-scope slice untouched.
	if _, err := db.GetAggregateParent(ctx, "u1", "proj/a", "2026-08-19"); err == nil {
		t.Error("out-of-scope group was aggregated")
	}
}

func TestRunLeavesManualItemsStandalone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := insertItem(t, db, "", "2026-08-20", 1.0, "Manual entry")
	b := insertItem(t, db, "", "2026-08-20", 2.0, "Another manual")

	resp, err := New(db, "u1").Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if resp.DeletedCount != 0 {
		t.Errorf("manual items absorbed: deleted_count = %d", resp.DeletedCount)
	}
	if resp.AggregatedCount != 2 {
		t.Errorf("aggregated_count = %d, want 2 standalone items", resp.AggregatedCount)
	}
	for _, id := range []string{a.ID, b.ID} {
		item, err := db.GetWorkItem(ctx, id)
		if err != nil {
			t.Fatalf("GetWorkItem() error: %v", err)
		}
		if item.ParentID != "" {
			t.Errorf("manual item %s gained a parent", id)
		}
	}
}
