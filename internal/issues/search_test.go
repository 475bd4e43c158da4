// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package issues

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/models"
)

func TestSearchDispatchesAfterQuietPeriod(t *testing.T) {
	api := &fakeAPI{searchFn: func(query string, limit int) ([]jira.Issue, error) {
		return []jira.Issue{{Key: "PROJ-1", Summary: "match for " + query}}, nil
	}}
	s := NewDebouncedSearcher(api, 10*time.Millisecond, 10)

	results, err := s.Search(context.Background(), "widget")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 || results[0].IssueKey != "PROJ-1" {
		t.Errorf("unexpected results: %+v", results)
	}
	if got := api.searchNum.Load(); got != 1 {
		t.Errorf("dispatched searches = %d, want 1", got)
	}
}

func TestSearchLastRequestWins(t *testing.T) {
	api := &fakeAPI{searchFn: func(query string, limit int) ([]jira.Issue, error) {
		return []jira.Issue{{Key: "PROJ-1", Summary: query}}, nil
	}}
	s := NewDebouncedSearcher(api, 30*time.Millisecond, 10)
	ctx := context.Background()

	type outcome struct {
		query   string
		results []models.IssueSearchResult
		err     error
	}
	queries := []string{"w", "wi", "wid", "widget"}
	outcomes := make([]outcome, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			res, err := s.Search(ctx, q)
			outcomes[i] = outcome{query: q, results: res, err: err}
		}(i, q)
		time.Sleep(5 * time.Millisecond) // keystrokes inside the quiet period
	}
	wg.Wait()

	var delivered int
	for _, o := range outcomes {
		switch {
		case o.err == nil:
			delivered++
			if o.query != "widget" {
				t.Errorf("stale query %q delivered a result", o.query)
			}
		case !errors.Is(o.err, ErrSuperseded):
			t.Errorf("query %q: unexpected error %v", o.query, o.err)
		}
	}
	if delivered != 1 {
		t.Errorf("delivered results = %d, want exactly 1 (the newest query)", delivered)
	}
	if got := api.searchNum.Load(); got != 1 {
		t.Errorf("dispatched searches = %d, want 1 (earlier queries coalesced)", got)
	}
}

func TestSearchEmptyQueryClearsImmediately(t *testing.T) {
	api := &fakeAPI{searchFn: func(query string, limit int) ([]jira.Issue, error) {
		return []jira.Issue{{Key: "PROJ-1"}}, nil
	}}
	s := NewDebouncedSearcher(api, 50*time.Millisecond, 10)
	ctx := context.Background()

	// A pending search followed by a cleared input: the pending search must
	// be superseded and the clear must return at once.
	var pendingErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, pendingErr = s.Search(ctx, "widget")
	}()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	results, err := s.Search(ctx, "")
	if err != nil {
		t.Fatalf("Search(\"\") error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results for cleared input, got %+v", results)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("clear took %v, should not wait out the debounce", elapsed)
	}

	wg.Wait()
	if !errors.Is(pendingErr, ErrSuperseded) {
		t.Errorf("pending search error = %v, want ErrSuperseded", pendingErr)
	}
	if got := api.searchNum.Load(); got != 0 {
		t.Errorf("dispatched searches = %d, want 0", got)
	}
}

func TestSearchContextCancellation(t *testing.T) {
	s := NewDebouncedSearcher(&fakeAPI{}, time.Second, 10)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.Search(ctx, "widget")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSearchRemoteError(t *testing.T) {
	api := &fakeAPI{searchFn: func(query string, limit int) ([]jira.Issue, error) {
		return nil, errors.New("remote down")
	}}
	s := NewDebouncedSearcher(api, time.Millisecond, 10)

	if _, err := s.Search(context.Background(), "widget"); err == nil {
		t.Error("expected remote error to propagate")
	}
}

func TestSearchNOverridesLimit(t *testing.T) {
	var seen int
	api := &fakeAPI{searchFn: func(query string, limit int) ([]jira.Issue, error) {
		seen = limit
		return nil, nil
	}}
	s := NewDebouncedSearcher(api, time.Millisecond, 10)

	if _, err := s.SearchN(context.Background(), "widget", 3); err != nil {
		t.Fatalf("SearchN() error: %v", err)
	}
	if seen != 3 {
		t.Errorf("remote limit = %d, want 3", seen)
	}

	// Non-positive falls back to the configured limit.
	if _, err := s.SearchN(context.Background(), "widget", 0); err != nil {
		t.Fatalf("SearchN() error: %v", err)
	}
	if seen != 10 {
		t.Errorf("remote limit = %d, want 10", seen)
	}
}
