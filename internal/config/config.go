// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package config provides centralized configuration for all Worklogd
// components: the Jira/Tempo connection, the local DuckDB store, source
// importers, the background sync pipeline, the HTTP server, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file for persistent settings
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Jira     JiraConfig     `koanf:"jira"`
	Tempo    TempoConfig    `koanf:"tempo"`
	LLM      LLMConfig      `koanf:"llm"`
	Sources  SourcesConfig  `koanf:"sources"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// JiraConfig holds the Jira REST connection settings. The engine reads
// issues (validate, search) and writes worklogs through the Jira native
// worklog endpoint when Tempo is not configured.
type JiraConfig struct {
	// URL is the Jira base URL, e.g. https://jira.example.com.
	URL string `koanf:"url"`

	// Token is the Personal Access Token (Server/DC) or API token (Cloud).
	Token string `koanf:"token"`

	// Email enables basic auth for Jira Cloud; leave empty for PAT auth.
	Email string `koanf:"email"`

	// AuthType selects the authorization scheme: pat or basic.
	AuthType string `koanf:"auth_type"`

	// Timeout bounds every remote call. The sync executor treats a timeout
	// as a transport failure for the whole batch.
	Timeout time.Duration `koanf:"timeout"`
}

// TempoConfig holds the Tempo Timesheets settings. Optional: when Token is
// empty, worklogs go through the Jira native API instead.
type TempoConfig struct {
	Token string `koanf:"token"`

	// StartTime is the wall-clock time stamped on uploaded worklogs.
	StartTime string `koanf:"start_time"`
}

// LLMConfig holds the summarizer settings. Optional: when APIKey is empty
// the rule-based fallback builds descriptions from item titles.
type LLMConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

// SourcesConfig controls the raw work item importers.
type SourcesConfig struct {
	// SessionDirs are directories scanned for agent session logs
	// (one JSONL file per session).
	SessionDirs []string `koanf:"session_dirs"`

	// GitRepos are local repository paths scanned for commits.
	GitRepos []string `koanf:"git_repos"`

	// GitAuthor filters commits to this author; empty means all.
	GitAuthor string `koanf:"git_author"`

	// LookbackDays bounds how far back importers scan.
	LookbackDays int `koanf:"lookback_days"`
}

// DatabaseConfig holds the DuckDB store settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SyncConfig holds background sync pipeline settings.
type SyncConfig struct {
	// Interval between automatic background sync runs.
	Interval time.Duration `koanf:"interval"`

	// StatusPollInterval is how often the status store is re-read so all
	// observers converge on the same last-known state.
	StatusPollInterval time.Duration `koanf:"status_poll_interval"`

	// UserID identifies the local user owning items, mappings, and records.
	UserID string `koanf:"user_id"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`

	// RateLimitReqs/-Window bound request rates per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// CacheConfig holds the issue validation cache settings.
type CacheConfig struct {
	// Path is the badger directory for cached issue lookups. Empty selects
	// an in-memory cache (nothing survives restart).
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// Validate checks the configuration for fatal misconfiguration. Called by
// Load(); returns the first problem found.
func (c *Config) Validate() error {
	if c.Jira.URL != "" {
		u, err := url.Parse(c.Jira.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("jira.url %q is not a valid URL", c.Jira.URL)
		}
		if c.Jira.Token == "" {
			return fmt.Errorf("jira.token is required when jira.url is set")
		}
	}
	if c.Jira.AuthType != "" && c.Jira.AuthType != "pat" && c.Jira.AuthType != "basic" {
		return fmt.Errorf("jira.auth_type must be pat or basic, got %q", c.Jira.AuthType)
	}
	if c.Jira.AuthType == "basic" && c.Jira.Email == "" {
		return fmt.Errorf("jira.email is required for basic auth")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval %s too short, minimum 1m", c.Sync.Interval)
	}
	if c.Sync.StatusPollInterval <= 0 {
		return fmt.Errorf("sync.status_poll_interval must be positive")
	}
	if c.Sync.UserID == "" {
		return fmt.Errorf("sync.user_id must not be empty")
	}
	if c.Sources.LookbackDays < 0 {
		return fmt.Errorf("sources.lookback_days must not be negative")
	}
	return nil
}
