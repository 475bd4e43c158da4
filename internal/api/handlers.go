// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mhuang-dev/worklogd/internal/aggregate"
	"github.com/mhuang-dev/worklogd/internal/batch"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/issues"
	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/orchestrator"
	"github.com/mhuang-dev/worklogd/internal/syncer"
	"github.com/mhuang-dev/worklogd/internal/validation"
)

// maxRequestBody bounds request payloads. The largest legitimate payload
// is a week-scope sync batch, far below this.
const maxRequestBody = 1 << 20 // 1 MiB

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	db           *database.DB
	builder      *batch.Builder
	executor     *syncer.Executor
	aggregator   *aggregate.Aggregator
	validator    *issues.Validator
	searcher     *issues.DebouncedSearcher
	api          jira.API
	orchestrator *orchestrator.Orchestrator
	userID       string
}

// HandlersConfig collects the handler dependencies.
type HandlersConfig struct {
	DB           *database.DB
	Builder      *batch.Builder
	Executor     *syncer.Executor
	Aggregator   *aggregate.Aggregator
	Validator    *issues.Validator
	Searcher     *issues.DebouncedSearcher
	JiraAPI      jira.API
	Orchestrator *orchestrator.Orchestrator
	UserID       string
}

// NewHandlers creates the handler set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	return &Handlers{
		db:           cfg.DB,
		builder:      cfg.Builder,
		executor:     cfg.Executor,
		aggregator:   cfg.Aggregator,
		validator:    cfg.Validator,
		searcher:     cfg.Searcher,
		api:          cfg.JiraAPI,
		orchestrator: cfg.Orchestrator,
		userID:       cfg.UserID,
	}
}

// decodeAndValidate decodes a JSON request body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return false
	}
	return true
}
