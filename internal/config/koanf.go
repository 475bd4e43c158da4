// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// ConfigPathEnvVar overrides the config file search path.
	ConfigPathEnvVar = "WORKLOGD_CONFIG"

	// delim is the koanf key path delimiter.
	delim = "."
)

// DefaultConfigPaths are checked in order when WORKLOGD_CONFIG is unset.
var DefaultConfigPaths = []string{
	"worklogd.yaml",
	"config/worklogd.yaml",
	"/etc/worklogd/worklogd.yaml",
}

// Default returns the built-in configuration defaults. Every optional
// setting has a value here so a bare environment still starts.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			AuthType: "pat",
			Timeout:  30 * time.Second,
		},
		Tempo: TempoConfig{
			StartTime: "09:00:00",
		},
		LLM: LLMConfig{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 256,
		},
		Sources: SourcesConfig{
			LookbackDays: 14,
		},
		Database: DatabaseConfig{
			Path:      "worklogd.db",
			MaxMemory: "512MB",
		},
		Sync: SyncConfig{
			Interval:           time.Hour,
			StatusPollInterval: 30 * time.Second,
			UserID:             "default",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8970,
			Timeout:         60 * time.Second,
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// Load builds the effective configuration by layering, in order: built-in
// defaults, an optional YAML config file, and environment variables. The
// result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(delim)

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", delim, envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, honoring the
// WORKLOGD_CONFIG override. Empty means no file layer.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps recognized environment variables to config key paths.
// Only listed variables participate, so unrelated environment noise (PATH,
// HOME) never lands in the config tree.
var envMappings = map[string]string{
	"JIRA_URL":            "jira.url",
	"JIRA_TOKEN":          "jira.token",
	"JIRA_EMAIL":          "jira.email",
	"JIRA_AUTH_TYPE":      "jira.auth_type",
	"JIRA_TIMEOUT":        "jira.timeout",
	"TEMPO_TOKEN":         "tempo.token",
	"TEMPO_START_TIME":    "tempo.start_time",
	"LLM_API_KEY":         "llm.api_key",
	"ANTHROPIC_API_KEY":   "llm.api_key",
	"LLM_MODEL":           "llm.model",
	"DATABASE_PATH":       "database.path",
	"DATABASE_MAX_MEMORY": "database.max_memory",
	"DATABASE_THREADS":    "database.threads",
	"SYNC_INTERVAL":       "sync.interval",
	"SYNC_USER_ID":        "sync.user_id",
	"SERVER_HOST":         "server.host",
	"SERVER_PORT":         "server.port",
	"CACHE_PATH":          "cache.path",
	"LOG_LEVEL":           "logging.level",
	"LOG_FORMAT":          "logging.format",
	"LOG_FILE":            "logging.file",
	"SESSION_DIRS":        "sources.session_dirs",
	"GIT_REPOS":           "sources.git_repos",
	"GIT_AUTHOR":          "sources.git_author",
	"LOOKBACK_DAYS":       "sources.lookback_days",
	"CORS_ORIGINS":        "server.cors_origins",
}

// envTransform maps an environment variable name to its config key path.
// Returning "" drops the variable.
func envTransform(s string) string {
	return envMappings[strings.ToUpper(s)]
}
