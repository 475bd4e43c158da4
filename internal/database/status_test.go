// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package database

import (
	"context"
	"testing"

	"github.com/mhuang-dev/worklogd/internal/models"
)

func TestGetSyncStatusNeverSynced(t *testing.T) {
	db := setupTestDB(t)

	status, err := db.GetSyncStatus(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetSyncStatus() error: %v", err)
	}
	if status.Running {
		t.Error("fresh status should not be running")
	}
	if status.LastSyncAt != nil {
		t.Errorf("fresh status should have nil LastSyncAt, got %v", status.LastSyncAt)
	}
}

func TestSyncStatusLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, phase := range []string{models.PhaseSources, models.PhaseSnapshots, models.PhaseCompaction} {
		if err := db.SetSyncRunning(ctx, "u1", phase); err != nil {
			t.Fatalf("SetSyncRunning(%s) error: %v", phase, err)
		}
		status, err := db.GetSyncStatus(ctx, "u1")
		if err != nil {
			t.Fatalf("GetSyncStatus() error: %v", err)
		}
		if !status.Running || status.Phase != phase {
			t.Errorf("status = running=%v phase=%q, want running=true phase=%q",
				status.Running, status.Phase, phase)
		}
	}

	if err := db.SetSyncComplete(ctx, "u1", "imported 12 items", ""); err != nil {
		t.Fatalf("SetSyncComplete() error: %v", err)
	}
	status, err := db.GetSyncStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncStatus() error: %v", err)
	}
	if status.Running {
		t.Error("status should not be running after completion")
	}
	if status.Phase != models.PhaseComplete {
		t.Errorf("phase = %q, want %q", status.Phase, models.PhaseComplete)
	}
	if status.LastSyncAt == nil {
		t.Error("LastSyncAt should be set after a successful run")
	}
	if status.LastResult != "imported 12 items" {
		t.Errorf("last_result = %q", status.LastResult)
	}
}

func TestSyncStatusFailureKeepsLastSyncAt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SetSyncComplete(ctx, "u1", "ok", ""); err != nil {
		t.Fatalf("SetSyncComplete() error: %v", err)
	}
	before, err := db.GetSyncStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncStatus() error: %v", err)
	}
	if before.LastSyncAt == nil {
		t.Fatal("expected LastSyncAt after success")
	}

	if err := db.SetSyncRunning(ctx, "u1", models.PhaseSources); err != nil {
		t.Fatalf("SetSyncRunning() error: %v", err)
	}
	if err := db.SetSyncFailed(ctx, "u1", "jira unreachable"); err != nil {
		t.Fatalf("SetSyncFailed() error: %v", err)
	}

	after, err := db.GetSyncStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncStatus() error: %v", err)
	}
	if after.Running {
		t.Error("status should not be running after failure")
	}
	if after.LastError != "jira unreachable" {
		t.Errorf("last_error = %q", after.LastError)
	}
	if after.LastSyncAt == nil || !after.LastSyncAt.Equal(*before.LastSyncAt) {
		t.Errorf("LastSyncAt changed on failure: %v -> %v", before.LastSyncAt, after.LastSyncAt)
	}
}

func TestSyncStatusCompleteWithNotification(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SetSyncRunning(ctx, "u1", models.PhaseSources); err != nil {
		t.Fatalf("SetSyncRunning() error: %v", err)
	}
	if err := db.SetSyncComplete(ctx, "u1", "imported 4 items", "sessions: dir unreadable"); err != nil {
		t.Fatalf("SetSyncComplete() error: %v", err)
	}

	status, err := db.GetSyncStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncStatus() error: %v", err)
	}
	// A partially failed run still completes.
	if status.LastSyncAt == nil || status.Phase != models.PhaseComplete {
		t.Errorf("status = %+v, want completed run", status)
	}
	if status.LastError != "sessions: dir unreadable" {
		t.Errorf("last_error = %q, want the source notification", status.LastError)
	}
}
