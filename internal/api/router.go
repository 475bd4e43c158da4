// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhuang-dev/worklogd/internal/middleware"
)

// Router assembles the HTTP surface from handlers and middleware.
type Router struct {
	handlers      *Handlers
	chiMiddleware *ChiMiddleware
	wsHandler     http.Handler
}

// NewRouter creates a router. wsHandler serves the websocket progress
// stream and may be nil when the hub is not running (tests).
func NewRouter(handlers *Handlers, mw *ChiMiddleware, wsHandler http.Handler) *Router {
	return &Router{
		handlers:      handlers,
		chiMiddleware: mw,
		wsHandler:     wsHandler,
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order. CORS must be
	// global so OPTIONS preflight is answered everywhere.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handlers.Health)
		r.Get("/live", router.handlers.HealthLive)
		r.Get("/ready", router.handlers.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Route("/work-items", func(r chi.Router) {
			r.Get("/", router.handlers.ListWorkItems)
			r.Get("/{id}", router.handlers.GetWorkItem)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/", router.handlers.CreateWorkItem)
			r.With(router.chiMiddleware.RateLimitWrite()).Put("/{id}", router.handlers.UpdateWorkItem)
			r.With(router.chiMiddleware.RateLimitWrite()).Delete("/{id}", router.handlers.DeleteWorkItem)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/aggregate", router.handlers.AggregateWorkItems)
		})

		r.Route("/worklog", func(r chi.Router) {
			r.Get("/batch", router.handlers.WorklogBatch)
			// Sync fans out into remote writes, so it gets the strictest limit.
			r.With(router.chiMiddleware.RateLimitSync()).Post("/sync", router.handlers.SyncWorklogs)
		})

		r.Route("/tempo", func(r chi.Router) {
			r.Get("/test", router.handlers.TestConnection)
			r.Get("/validate/{issueKey}", router.handlers.ValidateIssue)
			r.Get("/search", router.handlers.SearchIssues)
		})

		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", router.handlers.ListMappings)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/", router.handlers.SaveMapping)
			r.With(router.chiMiddleware.RateLimitWrite()).Delete("/", router.handlers.DeleteMapping)
		})

		r.Route("/sync-records", func(r chi.Router) {
			r.Get("/", router.handlers.ListSyncRecords)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/", router.handlers.SaveSyncRecord)
		})

		r.Route("/background-sync", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitSync()).Post("/trigger", router.handlers.TriggerBackgroundSync)
			r.Get("/status", router.handlers.BackgroundSyncStatus)
		})

		if router.wsHandler != nil {
			r.Handle("/ws", router.wsHandler)
		}
	})

	return r
}
