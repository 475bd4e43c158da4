// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mhuang-dev/worklogd/internal/issues"
	"github.com/mhuang-dev/worklogd/internal/jira"
)

// TestConnection handles GET /api/v1/tempo/test. Verifies remote
// credentials and returns the authenticated user.
func (h *Handlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	user, err := h.api.TestConnection(r.Context())
	if err != nil {
		rw.ExternalServiceError("jira", err)
		return
	}
	rw.Success(user)
}

// ValidateIssue handles GET /api/v1/tempo/validate/{issueKey}. A key that
// does not exist remotely is a successful response with valid=false, not
// an error; only transport failures produce error responses.
func (h *Handlers) ValidateIssue(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	issueKey := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "issueKey")))
	if issueKey == "" {
		rw.BadRequest("issue key is required")
		return
	}

	resp, err := h.validator.Validate(r.Context(), issueKey)
	if errors.Is(err, jira.ErrNotConfigured) {
		rw.ServiceUnavailable("remote issue tracker is not configured")
		return
	}
	if err != nil {
		rw.ExternalServiceError("jira", err)
		return
	}
	rw.Success(resp)
}

// SearchIssues handles GET /api/v1/tempo/search?q=&max=. Queries are
// debounced server-side; a stale request returns 204 and the client keeps
// its current result set.
func (h *Handlers) SearchIssues(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		rw.BadRequest("q is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			rw.BadRequest("max must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.searcher.SearchN(r.Context(), query, limit)
	if errors.Is(err, jira.ErrNotConfigured) {
		rw.ServiceUnavailable("remote issue tracker is not configured")
		return
	}
	if errors.Is(err, issues.ErrSuperseded) {
		rw.NoContent()
		return
	}
	if err != nil {
		rw.ExternalServiceError("jira", err)
		return
	}
	rw.Success(results)
}
