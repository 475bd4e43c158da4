// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package jira

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote failures. Callers branch on these with
// errors.Is; everything else is a generic remote failure.
var (
	// ErrIssueNotFound means the issue key does not exist or is not
	// visible to the authenticated user. Cacheable as a negative result.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrUnauthorized means the token is invalid or expired. Never
	// retried; the user must fix credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited means the server rejected the request with HTTP 429
	// after all backoff retries were exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotConfigured means no remote base URL or token is configured.
	// Local features keep working; remote operations fail fast with this.
	ErrNotConfigured = errors.New("remote issue tracker not configured")
)

// APIError carries the HTTP status and response body of a failed call.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote API error %d: %s", e.StatusCode, e.Body)
}

// statusError maps an HTTP status code to the matching sentinel, wrapping
// the full APIError for diagnostics.
func statusError(statusCode int, body string) error {
	apiErr := &APIError{StatusCode: statusCode, Body: body}
	switch statusCode {
	case 404:
		return fmt.Errorf("%w: %s", ErrIssueNotFound, body)
	case 401, 403:
		return fmt.Errorf("%w: %s", ErrUnauthorized, body)
	case 429:
		return fmt.Errorf("%w: %s", ErrRateLimited, body)
	default:
		return apiErr
	}
}
