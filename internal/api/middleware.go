// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddleware provides Chi-compatible middleware factories built on the
// production-hardened Chi ecosystem (go-chi/cors, go-chi/httprate).
type ChiMiddleware struct {
	cors             func(http.Handler) http.Handler
	rateLimitReqs    int
	rateLimitWindow  time.Duration
	rateLimitEnabled bool
}

// NewChiMiddleware creates the middleware factory. An empty origin list
// means no cross-origin access; pass "*" to allow any origin.
func NewChiMiddleware(corsOrigins []string, rateLimitReqs int, rateLimitWindow time.Duration) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	})

	return &ChiMiddleware{
		cors:             corsHandler,
		rateLimitReqs:    rateLimitReqs,
		rateLimitWindow:  rateLimitWindow,
		rateLimitEnabled: rateLimitReqs > 0 && rateLimitWindow > 0,
	}
}

// CORS returns the shared CORS middleware. Must be applied globally so
// OPTIONS preflight requests are handled on every route.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.custom(m.rateLimitReqs, m.rateLimitWindow)
}

// RateLimitSync returns a strict rate limiter for sync execution. Each
// request may fan out into many remote worklog writes.
func (m *ChiMiddleware) RateLimitSync() func(http.Handler) http.Handler {
	return m.custom(10, time.Minute)
}

// RateLimitWrite returns a moderate rate limiter for write operations.
func (m *ChiMiddleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.custom(30, time.Minute)
}

// RateLimitHealth returns a permissive rate limiter for health endpoints
// so monitoring probes are never starved.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.custom(1000, time.Minute)
}

func (m *ChiMiddleware) custom(requests int, window time.Duration) func(http.Handler) http.Handler {
	if !m.rateLimitEnabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// APISecurityHeaders adds baseline security headers to API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler form.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
