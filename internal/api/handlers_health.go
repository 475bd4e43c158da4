// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"net/http"
	"time"
)

// healthResponse is the payload of the health endpoints.
type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthLive handles GET /api/v1/health/live. Process-level liveness:
// answering at all means alive.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the database
// answers a ping; remote connectivity is deliberately excluded so a Jira
// outage does not take the service out of rotation.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.db.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("database not reachable")
		return
	}
	rw.Success(healthResponse{
		Status:    "ready",
		Database:  "ok",
		Timestamp: time.Now(),
	})
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbStatus := "ok"
	status := "healthy"
	if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
	}

	rw.Success(healthResponse{
		Status:    status,
		Database:  dbStatus,
		Timestamp: time.Now(),
	})
}
