// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package issues

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// Validator checks issue keys against the remote API through the cache.
type Validator struct {
	api   jira.API
	cache *Cache
}

// NewValidator creates a validator backed by the given API and cache.
func NewValidator(api jira.API, cache *Cache) *Validator {
	return &Validator{api: api, cache: cache}
}

// Validate checks whether an issue key exists remotely. A cached result,
// positive or negative, is returned without a remote call. A missing issue
// is a negative result, not an error; only transport and auth failures
// propagate as errors.
func (v *Validator) Validate(ctx context.Context, issueKey string) (*models.ValidateIssueResponse, error) {
	issueKey = strings.ToUpper(strings.TrimSpace(issueKey))
	if issueKey == "" {
		return &models.ValidateIssueResponse{
			Valid:   false,
			Message: "Issue key is empty",
		}, nil
	}

	if cached, ok := v.cache.Get(issueKey); ok {
		return cached, nil
	}

	issue, err := v.api.GetIssue(ctx, issueKey)
	if err != nil {
		if errors.Is(err, jira.ErrIssueNotFound) {
			resp := &models.ValidateIssueResponse{
				Valid:    false,
				IssueKey: issueKey,
				Message:  "Issue not found",
			}
			v.cacheResult(issueKey, resp)
			return resp, nil
		}
		return nil, fmt.Errorf("issue validation failed: %w", err)
	}

	resp := &models.ValidateIssueResponse{
		Valid:       true,
		IssueKey:    issue.Key,
		Summary:     issue.Summary,
		Description: issue.Description,
		Assignee:    issue.Assignee,
		IssueType:   issue.IssueType,
		Message:     "Issue found",
	}
	v.cacheResult(issueKey, resp)
	return resp, nil
}

// Invalidate drops the cached result for an issue key. Called when a
// mapping is saved pointing a project at a different key, so the next
// validation reflects the remote state rather than a stale entry.
func (v *Validator) Invalidate(issueKey string) {
	issueKey = strings.ToUpper(strings.TrimSpace(issueKey))
	if issueKey == "" {
		return
	}
	if err := v.cache.Invalidate(issueKey); err != nil {
		logging.Warn().Str("issue_key", issueKey).Err(err).Msg("Failed to invalidate issue cache entry")
	}
}

func (v *Validator) cacheResult(issueKey string, resp *models.ValidateIssueResponse) {
	if err := v.cache.Set(issueKey, resp); err != nil {
		logging.Warn().Str("issue_key", issueKey).Err(err).Msg("Failed to cache validation result")
	}
}
