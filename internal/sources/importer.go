// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package sources

import (
	"context"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
)

// Importer is one raw work item producer. Import returns the number of
// items upserted; partial progress with an error is valid.
type Importer interface {
	Name() string
	Import(ctx context.Context) (int, error)
}

// ForConfig builds the importers enabled by the configuration. An
// importer with nothing to scan is omitted entirely.
func ForConfig(db *database.DB, cfg *config.SourcesConfig, userID string) []Importer {
	var importers []Importer
	if len(cfg.SessionDirs) > 0 {
		importers = append(importers, NewSessionImporter(db, cfg, userID))
	}
	if len(cfg.GitRepos) > 0 {
		importers = append(importers, NewCommitImporter(db, cfg, userID))
	}
	return importers
}
