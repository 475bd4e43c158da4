// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"net/http"
)

// triggerResponse is the payload of the background sync trigger endpoint.
type triggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// TriggerBackgroundSync handles POST /api/v1/background-sync/trigger.
// Single-flight: a trigger while a run is in progress is rejected with
// 409 and the running pipeline is unaffected.
func (h *Handlers) TriggerBackgroundSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !h.orchestrator.Trigger(r.Context()) {
		rw.Conflict("a background sync run is already in progress")
		return
	}
	rw.Success(triggerResponse{
		Started: true,
		Message: "background sync started",
	})
}

// BackgroundSyncStatus handles GET /api/v1/background-sync/status. Reads
// the durable status store, so all observers see the same state.
func (h *Handlers) BackgroundSyncStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status, err := h.orchestrator.Status(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(status)
}
