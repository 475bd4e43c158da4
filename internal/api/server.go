// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server runs the HTTP server as a supervised service.
type Server struct {
	httpServer *http.Server
}

// NewServer creates the server from config and a root handler.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			// No WriteTimeout: the websocket progress stream holds its
			// connection open for the lifetime of the client.
			IdleTimeout: 2 * timeout,
		},
	}
}

// Serve implements suture.Service. Blocks until ctx is cancelled or the
// listener fails, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
			_ = s.httpServer.Close()
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "http-server"
}
