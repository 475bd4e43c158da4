// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package batch builds candidate sync rows for the worklog executor.
//
// A candidate is one top-level work item: an aggregate parent, an
// unaggregated project item, or a manual entry. Slices that already have
// a sync record are excluded; re-syncing them is an explicit user action,
// never an automatic batch inclusion. All three granularities (single
// item, one day, one week) return the same row shape so the executor has
// one contract regardless of scope.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/llm"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// Builder assembles batch rows from the stores.
type Builder struct {
	db         *database.DB
	summarizer llm.Summarizer
	userID     string
}

// New creates a builder for one user.
func New(db *database.DB, summarizer llm.Summarizer, userID string) *Builder {
	return &Builder{db: db, summarizer: summarizer, userID: userID}
}

// BuildForItem returns the candidate row for a single work item, or an
// empty slice when the item is already synced or recorded.
func (b *Builder) BuildForItem(ctx context.Context, itemID string) ([]models.BatchSyncRow, error) {
	item, err := b.db.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load work item: %w", err)
	}
	return b.assemble(ctx, []*models.WorkItem{item}, item.Date, item.Date)
}

// BuildForDay returns candidate rows for every unsynced slice on a date.
func (b *Builder) BuildForDay(ctx context.Context, date string) ([]models.BatchSyncRow, error) {
	items, err := b.db.ListWorkItems(ctx, b.userID, date, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	return b.assemble(ctx, items, date, date)
}

// BuildForWeek returns candidate rows for the Monday-to-Sunday week
// containing the date.
func (b *Builder) BuildForWeek(ctx context.Context, date string) ([]models.BatchSyncRow, error) {
	from, to, err := weekBounds(date)
	if err != nil {
		return nil, err
	}
	items, err := b.db.ListWorkItems(ctx, b.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	return b.assemble(ctx, items, from, to)
}

// assemble filters top-level unsynced items, drops slices with existing
// sync records, and prefills issue keys and descriptions.
func (b *Builder) assemble(ctx context.Context, items []*models.WorkItem, from, to string) ([]models.BatchSyncRow, error) {
	synced, err := b.db.SyncedSlices(ctx, b.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load synced slices: %w", err)
	}

	rows := make([]models.BatchSyncRow, 0, len(items))
	for _, item := range items {
		if item.IsChild() || item.SyncedToTempo {
			continue
		}

		sliceKey := item.ProjectPath
		manual := item.ProjectPath == ""
		if manual {
			sliceKey = item.ID
		}
		if synced[sliceKey+"|"+item.Date] {
			continue
		}

		row := models.BatchSyncRow{
			ProjectPath: sliceKey,
			DisplayName: item.Title,
			IssueKey:    item.JiraIssueKey,
			Hours:       item.Hours,
			Description: b.describe(ctx, item),
			Manual:      manual,
			Date:        item.Date,
		}
		if row.IssueKey == "" && !manual {
			row.IssueKey = b.mappedIssueKey(ctx, item.ProjectPath)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mappedIssueKey prefills the issue key from the mapping store. An
// unmapped project yields "", which the executor filters out.
func (b *Builder) mappedIssueKey(ctx context.Context, projectPath string) string {
	mapping, err := b.db.GetMapping(ctx, projectPath, b.userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn().Err(err).Str("project", projectPath).Msg("Mapping lookup failed")
		}
		return ""
	}
	return mapping.JiraIssueKey
}

// describe returns the item's description, or a summarized one when the
// item carries none. Summarizer failure degrades to the title.
func (b *Builder) describe(ctx context.Context, item *models.WorkItem) string {
	if item.Description != "" {
		return item.Description
	}
	desc, err := b.summarizer.Summarize(ctx, item.ProjectPath, []string{item.Title})
	if err != nil {
		logging.Warn().Err(err).Str("item", item.ID).Msg("Summarization failed, using title")
		return item.Title
	}
	return desc
}

// weekBounds returns the Monday and Sunday of the week containing date.
func weekBounds(date string) (string, string, error) {
	day, err := time.Parse(models.DateFormat, date)
	if err != nil {
		return "", "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	monday := day.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format(models.DateFormat), sunday.Format(models.DateFormat), nil
}
