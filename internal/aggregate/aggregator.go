// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package aggregate merges raw work items into daily per-project parents.
//
// Grouping key is (project_path, date). A group with more than one member
// gets a single aggregate parent whose hours equal the sum of its
// children; children keep their rows and gain parent_id. Aggregation is
// referential, not destructive, and idempotent: a second run over the
// same data links nothing new.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// Aggregator groups raw work items into per-project daily parents.
type Aggregator struct {
	db     *database.DB
	userID string
}

// New creates an aggregator for one user's items.
func New(db *database.DB, userID string) *Aggregator {
	return &Aggregator{db: db, userID: userID}
}

// Run aggregates all unabsorbed raw items matching the request scope.
// Each group's merge is one atomic unit: a failed group rolls back alone
// and does not block the remaining groups.
func (a *Aggregator) Run(ctx context.Context, req *models.AggregateRequest) (*models.AggregateResponse, error) {
	metrics.AggregationRuns.Inc()

	candidates, err := a.db.ListAggregationCandidates(ctx, a.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregation candidates: %w", err)
	}
	candidates = filterScope(candidates, req)

	groups := make(map[string][]*models.WorkItem)
	var keys []string
	for _, item := range candidates {
		key := item.GroupKey()
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], item)
	}
	sort.Strings(keys)

	resp := &models.AggregateResponse{OriginalCount: len(candidates)}
	var failed []string

	for _, key := range keys {
		members := groups[key]
		project := members[0].ProjectPath
		date := members[0].Date

		// Manual items without a project stay standalone, as do singleton
		// groups with no existing parent to join.
		if project == "" {
			resp.AggregatedCount += len(members)
			continue
		}

		existing, err := a.db.GetAggregateParent(ctx, a.userID, project, date)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up parent for %s: %w", key, err)
		}
		if existing == nil && len(members) < 2 {
			resp.AggregatedCount++
			continue
		}

		absorbed, err := a.mergeGroup(ctx, existing, project, date, members)
		if err != nil {
			logging.Error().Err(err).Str("group", key).Msg("Aggregation failed for group")
			failed = append(failed, key)
			continue
		}
		resp.AggregatedCount++
		resp.DeletedCount += absorbed
		metrics.AggregationGroupsCreated.Inc()
	}

	if len(failed) > 0 {
		return resp, fmt.Errorf("aggregation failed for %d group(s): %s",
			len(failed), strings.Join(failed, ", "))
	}
	return resp, nil
}

// mergeGroup absorbs members into the group's parent, creating the parent
// when the group is new. Returns the number of newly absorbed rows.
func (a *Aggregator) mergeGroup(ctx context.Context, existing *models.WorkItem, project, date string, members []*models.WorkItem) (int, error) {
	titles := make([]string, 0, len(members))
	hours := 0.0
	childIDs := make([]string, 0, len(members))
	for _, m := range members {
		titles = append(titles, m.Title)
		hours += m.Hours
		childIDs = append(childIDs, m.ID)
	}
	childCount := len(members)

	parentID := uuid.New().String()
	if existing != nil {
		// Joining an existing parent: fold in the prior children so the
		// parent reflects the whole group, not just this run's members.
		parentID = existing.ID
		prior, err := a.db.ListChildren(ctx, existing.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load existing children: %w", err)
		}
		priorTitles := make([]string, 0, len(prior))
		for _, c := range prior {
			priorTitles = append(priorTitles, c.Title)
			hours += c.Hours
		}
		titles = append(priorTitles, titles...)
		childCount += len(prior)
	}

	parent := &models.WorkItem{
		ID:          parentID,
		UserID:      a.userID,
		Source:      models.SourceAggregated,
		SourceID:    project + "|" + date,
		Title:       fmt.Sprintf("[%s] %d tasks", project, childCount),
		Description: buildParentDescription(titles, hours),
		Hours:       hours,
		Date:        date,
		ProjectPath: project,
		ChildCount:  childCount,
	}

	if err := a.db.AggregateGroup(ctx, parent, childIDs); err != nil {
		return 0, err
	}
	return len(childIDs), nil
}

// buildParentDescription renders the numbered task list with a total-hours
// trailer.
func buildParentDescription(titles []string, hours float64) string {
	var sb strings.Builder
	for i, title := range titles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, truncateTitle(title))
	}
	fmt.Fprintf(&sb, "Total: %.1fh", hours)
	return sb.String()
}

const maxTitleLen = 80

func truncateTitle(s string) string {
	if len(s) <= maxTitleLen {
		return s
	}
	return s[:maxTitleLen-3] + "..."
}

// filterScope applies the optional date range and source filters.
func filterScope(items []*models.WorkItem, req *models.AggregateRequest) []*models.WorkItem {
	if req == nil || (req.StartDate == "" && req.EndDate == "" && req.Source == "") {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if req.StartDate != "" && item.Date < req.StartDate {
			continue
		}
		if req.EndDate != "" && item.Date > req.EndDate {
			continue
		}
		if req.Source != "" && item.Source != req.Source {
			continue
		}
		out = append(out, item)
	}
	return out
}
