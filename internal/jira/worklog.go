// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package jira

import (
	"context"
	"fmt"
	"net/url"
)

// CreateWorklog uploads one worklog entry. When a Tempo token is
// configured the Tempo Timesheets API is used; otherwise the Jira native
// worklog endpoint. The returned result carries whichever remote id the
// chosen path produced.
func (c *Client) CreateWorklog(ctx context.Context, entry *WorklogEntry) (*WorklogResult, error) {
	if c.UseTempo() {
		return c.createTempoWorklog(ctx, entry)
	}
	return c.createJiraWorklog(ctx, entry)
}

func (c *Client) createTempoWorklog(ctx context.Context, entry *WorklogEntry) (*WorklogResult, error) {
	payload := map[string]any{
		"issueKey":         entry.IssueKey,
		"timeSpentSeconds": entry.TimeSpentSeconds,
		"startDate":        entry.Date,
		"startTime":        c.startTime,
		"description":      entry.Description,
	}
	if entry.AccountID != "" {
		payload["authorAccountId"] = entry.AccountID
	}

	var raw struct {
		ID             string `json:"id"`
		TempoWorklogID int64  `json:"tempoWorklogId"`
	}
	err := c.postJSON(ctx, c.baseURL+"/rest/tempo-timesheets/4/worklogs", payload, &raw)
	if err != nil {
		return nil, fmt.Errorf("tempo worklog upload failed: %w", err)
	}
	return &WorklogResult{ID: raw.ID, TempoWorklogID: raw.TempoWorklogID}, nil
}

func (c *Client) createJiraWorklog(ctx context.Context, entry *WorklogEntry) (*WorklogResult, error) {
	// Jira wants a full timestamp; the worklog is pinned to the configured
	// start-of-day time in server-local form.
	started := fmt.Sprintf("%sT%s.000+0000", entry.Date, c.startTime)

	payload := map[string]any{
		"timeSpentSeconds": entry.TimeSpentSeconds,
		"comment":          entry.Description,
		"started":          started,
	}

	reqURL := fmt.Sprintf("%s/rest/api/2/issue/%s/worklog",
		c.baseURL, url.PathEscape(entry.IssueKey))

	var raw struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, reqURL, payload, &raw); err != nil {
		return nil, fmt.Errorf("jira worklog upload failed: %w", err)
	}
	return &WorklogResult{ID: raw.ID}, nil
}
