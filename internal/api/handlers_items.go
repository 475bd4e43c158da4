// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// ManualItemRequest creates or updates a user-entered work item.
type ManualItemRequest struct {
	Title        string  `json:"title" validate:"required,max=500"`
	Description  string  `json:"description" validate:"max=4000"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Hours        float64 `json:"hours" validate:"gt=0,lte=24"`
	ProjectPath  string  `json:"project_path" validate:"max=500"`
	JiraIssueKey string  `json:"jira_issue_key" validate:"omitempty,issuekey"`
}

// ListWorkItems handles GET /api/v1/work-items?from=&to=.
// Omitted bounds default to the last 30 days.
func (h *Handlers) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = time.Now().Format(models.DateFormat)
	}
	if from == "" {
		from = time.Now().AddDate(0, 0, -30).Format(models.DateFormat)
	}
	if !validDate(from) || !validDate(to) {
		rw.BadRequest("from and to must be YYYY-MM-DD dates")
		return
	}

	items, err := h.db.ListWorkItems(r.Context(), h.userID, from, to)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(items)
}

// GetWorkItem handles GET /api/v1/work-items/{id}.
func (h *Handlers) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	item, err := h.db.GetWorkItem(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("work item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(item)
}

// CreateWorkItem handles POST /api/v1/work-items. Creates a manual item.
func (h *Handlers) CreateWorkItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ManualItemRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	now := time.Now()
	item := &models.WorkItem{
		ID:           uuid.New().String(),
		UserID:       h.userID,
		Source:       models.SourceManual,
		Title:        req.Title,
		Description:  req.Description,
		Hours:        req.Hours,
		Date:         req.Date,
		ProjectPath:  req.ProjectPath,
		JiraIssueKey: req.JiraIssueKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.db.UpsertWorkItem(r.Context(), item); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(item)
}

// UpdateWorkItem handles PUT /api/v1/work-items/{id}. Source, sync state,
// and aggregation links are immutable through this endpoint.
func (h *Handlers) UpdateWorkItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	item, err := h.db.GetWorkItem(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("work item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if item.UserID != h.userID {
		rw.NotFound("work item not found")
		return
	}

	var req ManualItemRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	item.Title = req.Title
	item.Description = req.Description
	item.Date = req.Date
	item.Hours = req.Hours
	item.ProjectPath = req.ProjectPath
	item.JiraIssueKey = req.JiraIssueKey
	item.UpdatedAt = time.Now()

	if err := h.db.UpsertWorkItem(r.Context(), item); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(item)
}

// DeleteWorkItem handles DELETE /api/v1/work-items/{id}.
func (h *Handlers) DeleteWorkItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	item, err := h.db.GetWorkItem(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("work item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if item.UserID != h.userID {
		rw.NotFound("work item not found")
		return
	}

	if err := h.db.DeleteWorkItem(r.Context(), id); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.NoContent()
}

// AggregateWorkItems handles POST /api/v1/work-items/aggregate. Groups
// same-project same-day items under aggregated parents.
func (h *Handlers) AggregateWorkItems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.AggregateRequest
	if r.ContentLength > 0 {
		if !decodeAndValidate(rw, r, &req) {
			return
		}
	}

	resp, err := h.aggregator.Run(r.Context(), &req)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(resp)
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateFormat, s)
	return err == nil
}
