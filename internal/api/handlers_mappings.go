// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// ListMappings handles GET /api/v1/mappings.
func (h *Handlers) ListMappings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	mappings, err := h.db.ListMappings(r.Context(), h.userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(mappings)
}

// SaveMapping handles POST /api/v1/mappings. Last write wins per project
// path. The validator cache entry for the new key is invalidated so the
// next validation reflects the remote state, not a stale cache hit.
func (h *Handlers) SaveMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.SaveMappingRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	mapping := &models.ProjectIssueMapping{
		ProjectPath:  req.ProjectPath,
		UserID:       h.userID,
		JiraIssueKey: req.JiraIssueKey,
		UpdatedAt:    time.Now(),
	}
	if err := h.db.UpsertMapping(r.Context(), mapping); err != nil {
		rw.DatabaseError(err)
		return
	}
	h.validator.Invalidate(req.JiraIssueKey)

	rw.Created(mapping)
}

// DeleteMapping handles DELETE /api/v1/mappings?project_path=.
func (h *Handlers) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	projectPath := r.URL.Query().Get("project_path")
	if projectPath == "" {
		rw.BadRequest("project_path is required")
		return
	}

	err := h.db.DeleteMapping(r.Context(), projectPath, h.userID)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("mapping not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.NoContent()
}

// ListSyncRecords handles GET /api/v1/sync-records?from=&to=.
func (h *Handlers) ListSyncRecords(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.db.ListSyncRecords(r.Context(), h.userID, from, to)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(records)
}

// SaveSyncRecord handles POST /api/v1/sync-records. Manual repair path:
// marks a (project, date) slice as already uploaded without calling the
// remote API.
func (h *Handlers) SaveSyncRecord(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.SaveSyncRecordRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	rec := &models.WorklogSyncRecord{
		ID:             uuid.New().String(),
		UserID:         h.userID,
		ProjectPath:    req.ProjectPath,
		Date:           req.Date,
		JiraIssueKey:   req.JiraIssueKey,
		Hours:          req.Hours,
		Description:    req.Description,
		TempoWorklogID: req.TempoWorklogID,
		SyncedAt:       time.Now(),
	}
	if _, err := h.db.UpsertSyncRecord(r.Context(), rec); err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(rec)
}
