// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"errors"
	"net/http"

	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/models"
	"github.com/mhuang-dev/worklogd/internal/syncer"
)

// BatchResponse is the payload of the batch preview endpoint. Rows are
// the editable candidates; Entries is the same set pre-converted to the
// sync request shape so a client can submit it unchanged.
type BatchResponse struct {
	Scope   string                       `json:"scope"`
	Date    string                       `json:"date,omitempty"`
	Rows    []models.BatchSyncRow        `json:"rows"`
	Entries []models.WorklogEntryRequest `json:"entries"`
}

// WorklogBatch handles GET /api/v1/worklog/batch?scope=&date=&item_id=.
// Scope is one of item, day, week. Day and week need date; item needs
// item_id.
func (h *Handlers) WorklogBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scope := r.URL.Query().Get("scope")
	date := r.URL.Query().Get("date")
	itemID := r.URL.Query().Get("item_id")

	var (
		rows []models.BatchSyncRow
		err  error
	)
	switch scope {
	case "item":
		if itemID == "" {
			rw.BadRequest("item_id is required for scope=item")
			return
		}
		rows, err = h.builder.BuildForItem(r.Context(), itemID)
	case "day":
		if !validDate(date) {
			rw.BadRequest("date must be a YYYY-MM-DD date")
			return
		}
		rows, err = h.builder.BuildForDay(r.Context(), date)
	case "week":
		if !validDate(date) {
			rw.BadRequest("date must be a YYYY-MM-DD date")
			return
		}
		rows, err = h.builder.BuildForWeek(r.Context(), date)
	default:
		rw.BadRequest("scope must be one of item, day, week")
		return
	}

	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("work item not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(BatchResponse{
		Scope:   scope,
		Date:    date,
		Rows:    rows,
		Entries: syncer.RowsToEntries(rows),
	})
}

// SyncWorklogs handles POST /api/v1/worklog/sync. With dry_run set the
// response has the same shape, each row's issue key is checked read-only
// and reported per row, and nothing is uploaded or persisted.
func (h *Handlers) SyncWorklogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.SyncWorklogsRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if len(req.Entries) == 0 {
		rw.BadRequest("entries must not be empty")
		return
	}

	resp, err := h.executor.Sync(r.Context(), &req)
	if errors.Is(err, syncer.ErrTransport) {
		rw.ExternalServiceError("worklog", err)
		return
	}
	if err != nil {
		rw.InternalError("worklog sync failed")
		return
	}
	rw.Success(resp)
}
