// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package issues

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// ErrSuperseded is returned to a search call that was replaced by a newer
// query before or during its remote dispatch. Callers drop it silently;
// the newest call carries the result the user is waiting for.
var ErrSuperseded = errors.New("search superseded by newer query")

// DefaultSearchDebounce is the quiet period before a query dispatches.
const DefaultSearchDebounce = 300 * time.Millisecond

// DebouncedSearcher coalesces keystroke-speed queries into at most one
// remote search per quiet period, with last-request-wins delivery.
type DebouncedSearcher struct {
	api   jira.API
	delay time.Duration
	limit int

	mu  sync.Mutex
	gen uint64
}

// NewDebouncedSearcher creates a searcher. delay <= 0 selects the default
// 300ms debounce.
func NewDebouncedSearcher(api jira.API, delay time.Duration, limit int) *DebouncedSearcher {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	if limit <= 0 {
		limit = 10
	}
	return &DebouncedSearcher{api: api, delay: delay, limit: limit}
}

// Search runs a debounced type-ahead search. Each call supersedes every
// earlier in-flight call. The call waits out the debounce window, checks
// it is still the newest, dispatches, and checks again before returning so
// a slow remote response never overwrites a newer query's result.
//
// An empty query returns an empty result immediately and still supersedes
// pending searches, which is how a cleared input cancels its type-ahead.
func (s *DebouncedSearcher) Search(ctx context.Context, query string) ([]models.IssueSearchResult, error) {
	return s.SearchN(ctx, query, 0)
}

// SearchN is Search with a per-call result cap. limit <= 0 uses the
// searcher's configured limit.
func (s *DebouncedSearcher) SearchN(ctx context.Context, query string, limit int) ([]models.IssueSearchResult, error) {
	if limit <= 0 {
		limit = s.limit
	}

	s.mu.Lock()
	s.gen++
	myGen := s.gen
	s.mu.Unlock()

	if query == "" {
		return []models.IssueSearchResult{}, nil
	}

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if s.superseded(myGen) {
		metrics.IssueSearchesDebounced.Inc()
		return nil, ErrSuperseded
	}

	metrics.IssueSearchesDispatched.Inc()
	found, err := s.api.SearchIssues(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	// A newer query may have arrived while the remote call ran.
	if s.superseded(myGen) {
		metrics.IssueSearchesDebounced.Inc()
		return nil, ErrSuperseded
	}

	results := make([]models.IssueSearchResult, 0, len(found))
	for _, issue := range found {
		results = append(results, models.IssueSearchResult{
			IssueKey:  issue.Key,
			Summary:   issue.Summary,
			IssueType: issue.IssueType,
		})
	}
	return results, nil
}

func (s *DebouncedSearcher) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}
