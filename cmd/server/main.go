// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package main is the entry point for the Worklogd server.
//
// Worklogd tracks developer work from local evidence (git commits, agent
// session logs, manual entries), aggregates it into per-project daily
// slices, and reconciles those slices against Jira/Tempo worklogs.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML, env vars)
//  2. Logging: zerolog, optionally to a rotating file
//  3. Database: DuckDB work item store
//  4. Issue cache: BadgerDB-backed remote issue validation cache
//  5. Remote client: Jira/Tempo client behind a circuit breaker
//  6. Pipeline: source importers, aggregator, summarizer, orchestrator
//  7. Supervisor tree: orchestrator, websocket hub, HTTP server
//
// # Configuration
//
// Highest priority wins:
//   - Environment variables (WORKLOGD_ prefix)
//   - Config file (config.yaml, or WORKLOGD_CONFIG)
//   - Built-in defaults
//
// The remote connection is optional. Without jira.url the local features
// (import, aggregation, batch preview, dry-run) all work; remote
// operations fail fast with a clear error.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the orchestrator finishes or abandons its run, and
// the database closes last.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhuang-dev/worklogd/internal/aggregate"
	"github.com/mhuang-dev/worklogd/internal/api"
	"github.com/mhuang-dev/worklogd/internal/batch"
	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/issues"
	"github.com/mhuang-dev/worklogd/internal/jira"
	"github.com/mhuang-dev/worklogd/internal/llm"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/orchestrator"
	"github.com/mhuang-dev/worklogd/internal/sources"
	"github.com/mhuang-dev/worklogd/internal/supervisor"
	"github.com/mhuang-dev/worklogd/internal/syncer"
	ws "github.com/mhuang-dev/worklogd/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		Timestamp:  true,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("jira_configured", cfg.Jira.URL != "").
		Bool("tempo_enabled", cfg.Tempo.Token != "").
		Int("session_dirs", len(cfg.Sources.SessionDirs)).
		Int("git_repos", len(cfg.Sources.GitRepos)).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	cache, err := issues.OpenCache(cfg.Cache.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open issue cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing issue cache")
		}
	}()

	// Remote client behind a circuit breaker so a Jira outage degrades to
	// fast failures instead of piled-up timeouts.
	var remote jira.API = jira.NewCircuitBreakerClient(jira.NewClient(&cfg.Jira, &cfg.Tempo))

	var summarizer llm.Summarizer = llm.RuleBased{}
	if cfg.LLM.APIKey != "" {
		summarizer = llm.NewAnthropicSummarizer(&cfg.LLM)
		logging.Info().Str("model", cfg.LLM.Model).Msg("LLM summarizer enabled")
	}

	userID := cfg.Sync.UserID
	importers := sources.ForConfig(db, &cfg.Sources, userID)
	aggregator := aggregate.New(db, userID)

	bus := orchestrator.NewProgressBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing progress bus")
		}
	}()

	orch := orchestrator.New(db, importers, aggregator, summarizer, bus, &cfg.Sync, cfg.Sources.LookbackDays)

	hub := ws.NewHub(bus)

	// The executor shares the handlers' validator so dry-run previews hit
	// the same issue cache as the validate endpoint.
	validator := issues.NewValidator(remote, cache)

	handlers := api.NewHandlers(api.HandlersConfig{
		DB:           db,
		Builder:      batch.New(db, summarizer, userID),
		Executor:     syncer.New(db, remote, validator, userID),
		Aggregator:   aggregator,
		Validator:    validator,
		Searcher:     issues.NewDebouncedSearcher(remote, 0, 0),
		JiraAPI:      remote,
		Orchestrator: orch,
		UserID:       userID,
	})
	router := api.NewRouter(
		handlers,
		api.NewChiMiddleware(cfg.Server.CORSOrigins, cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow),
		ws.NewHandler(hub, cfg.Server.CORSOrigins),
	)
	server := api.NewServer(&cfg.Server, router.Setup())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(orch)
	tree.AddMessagingService(hub)
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
