// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
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

const sessionFixture = `{"cwd":"/home/dev/proj/a","timestamp":"2026-08-20T09:00:00Z","type":"user","message":{"role":"user","content":"Fix the login redirect loop on expired tokens"}}
{"timestamp":"2026-08-20T09:05:00Z","type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Looking."},{"type":"tool_use","name":"Read","input":{"file_path":"/home/dev/proj/a/auth.go"}}]}}
{"timestamp":"2026-08-20T10:00:00Z","type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Edit","input":{"file_path":"/home/dev/proj/a/auth.go"}},{"type":"tool_use","name":"Edit","input":{"file_path":"/home/dev/proj/a/auth_test.go"}}]}}
{"timestamp":"2026-08-20T10:30:00Z","type":"user","message":{"role":"user","content":"looks good, thanks"}}
`

func writeSession(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write session fixture: %v", err)
	}
	return path
}

func TestSessionImport(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	writeSession(t, dir, "9f2a1c3e.jsonl", sessionFixture)

	imp := NewSessionImporter(db, &config.SourcesConfig{SessionDirs: []string{dir}}, "u1")
	imp.now = func() time.Time { return time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC) }

	n, err := imp.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported %d items, want 1", n)
	}

	items, err := db.ListWorkItems(context.Background(), "u1", "2026-08-20", "2026-08-20")
	if err != nil {
		t.Fatalf("ListWorkItems() error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	item := items[0]
	if item.SourceID != "9f2a1c3e" {
		t.Errorf("source id = %q, want session file stem", item.SourceID)
	}
	if item.ProjectPath != "/home/dev/proj/a" {
		t.Errorf("project path = %q", item.ProjectPath)
	}
	if item.Title != "[a] Fix the login redirect loop on expired tokens" {
		t.Errorf("title = %q", item.Title)
	}
	// 09:00 to 10:30 is 1.5h.
	if item.Hours != 1.5 {
		t.Errorf("hours = %v, want 1.5", item.Hours)
	}
	if !strings.Contains(item.Description, "Edit: 2") {
		t.Errorf("description missing tool counts: %q", item.Description)
	}
	if !strings.Contains(item.Description, "auth_test.go") {
		t.Errorf("description missing modified files: %q", item.Description)
	}
}

func TestSessionImportIdempotent(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	writeSession(t, dir, "9f2a1c3e.jsonl", sessionFixture)

	imp := NewSessionImporter(db, &config.SourcesConfig{SessionDirs: []string{dir}}, "u1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := imp.Import(ctx); err != nil {
			t.Fatalf("Import() pass %d error: %v", i+1, err)
		}
	}

	count, err := db.CountWorkItems(ctx, "u1")
	if err != nil {
		t.Fatalf("CountWorkItems() error: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d items after re-import, want 1", count)
	}
}

func TestSessionImportLookbackCutoff(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	writeSession(t, dir, "old.jsonl", sessionFixture)

	imp := NewSessionImporter(db, &config.SourcesConfig{
		SessionDirs:  []string{dir},
		LookbackDays: 7,
	}, "u1")
	imp.now = func() time.Time { return time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC) }

	n, err := imp.Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if n != 0 {
		t.Errorf("imported %d items outside lookback window, want 0", n)
	}
}

func TestSessionImportSkipsEmptyAndBadFiles(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	writeSession(t, dir, "empty.jsonl", "")
	writeSession(t, dir, "garbage.jsonl", "not json at all\n")
	writeSession(t, dir, "good.jsonl", sessionFixture)

	n, err := NewSessionImporter(db, &config.SourcesConfig{SessionDirs: []string{dir}}, "u1").
		Import(context.Background())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d items, want 1", n)
	}
}

func TestSessionImportMissingDirFails(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewSessionImporter(db, &config.SourcesConfig{
		SessionDirs: []string{"/nonexistent/sessions"},
	}, "u1").Import(context.Background())
	if err == nil {
		t.Error("Import() with missing dir did not error")
	}
}

func TestIsMeaningfulMessage(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Fix the login redirect loop", true},
		{"warmup", false},
		{"Warmup run please ignore", false},
		{"<command-name>/clear</command-name>", false},
		{"<system-reminder>x</system-reminder>", false},
		{"short", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := isMeaningfulMessage(tt.content); got != tt.want {
			t.Errorf("isMeaningfulMessage(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
