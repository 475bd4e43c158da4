// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// CommitImporter scans local git repositories and produces one work item
// per commit in the lookback window. The commit hash is the source id.
type CommitImporter struct {
	db     *database.DB
	cfg    *config.SourcesConfig
	userID string
	now    func() time.Time

	// runGit is swapped in tests to avoid requiring real repositories.
	runGit func(ctx context.Context, repo string, args ...string) (string, error)
}

// NewCommitImporter creates a commit importer.
func NewCommitImporter(db *database.DB, cfg *config.SourcesConfig, userID string) *CommitImporter {
	return &CommitImporter{db: db, cfg: cfg, userID: userID, now: time.Now, runGit: runGit}
}

// Name identifies the importer in status records and error summaries.
func (c *CommitImporter) Name() string { return "commits" }

// commitInfo is one parsed git log line plus its diff stats.
type commitInfo struct {
	hash      string
	shortHash string
	author    string
	time      time.Time
	subject   string
	additions int
	deletions int
	files     int
}

// Import scans every configured repository. A repository that cannot be
// read counts as an importer failure; the others still import. Returns
// the number of items upserted.
func (c *CommitImporter) Import(ctx context.Context) (int, error) {
	imported := 0
	var repoErrs []error

	for _, repo := range c.cfg.GitRepos {
		if _, err := os.Stat(filepath.Join(repo, ".git")); err != nil {
			repoErrs = append(repoErrs, fmt.Errorf("repo %s: not a git repository", repo))
			continue
		}
		commits, err := c.listCommits(ctx, repo)
		if err != nil {
			repoErrs = append(repoErrs, fmt.Errorf("repo %s: %w", repo, err))
			continue
		}

		// Oldest first so each commit can see its predecessor's time.
		var prevTime *time.Time
		for i := len(commits) - 1; i >= 0; i-- {
			commit := commits[i]
			if err := ctx.Err(); err != nil {
				return imported, err
			}
			item := c.buildItem(repo, commit, prevTime)
			t := commit.time
			prevTime = &t

			if err := c.db.UpsertWorkItem(ctx, item); err != nil {
				logging.Error().Err(err).Str("commit", commit.shortHash).Msg("Failed to upsert commit work item")
				continue
			}
			imported++
		}
	}
	return imported, errors.Join(repoErrs...)
}

func (c *CommitImporter) buildItem(repo string, commit commitInfo, prevTime *time.Time) *models.WorkItem {
	hours, hoursSource := EstimateCommitHours(commit.time, prevTime,
		commit.additions, commit.deletions, commit.files)

	description := fmt.Sprintf("%s (+%d/-%d, %d files, %s estimate)",
		commit.shortHash, commit.additions, commit.deletions, commit.files, hoursSource)

	return &models.WorkItem{
		ID:          uuid.New().String(),
		UserID:      c.userID,
		Source:      models.SourceCommit,
		SourceID:    commit.hash,
		Title:       fmt.Sprintf("[%s] %s", filepath.Base(repo), truncate(commit.subject, 60)),
		Description: description,
		Hours:       hours,
		Date:        commit.time.Format(models.DateFormat),
		ProjectPath: repo,
	}
}

// listCommits returns the window's commits, newest first as git emits
// them, with per-commit diff stats resolved.
func (c *CommitImporter) listCommits(ctx context.Context, repo string) ([]commitInfo, error) {
	args := []string{"log", "--all", "--no-merges", "--format=%H|%h|%an|%aI|%s"}
	if c.cfg.LookbackDays > 0 {
		since := c.now().AddDate(0, 0, -c.cfg.LookbackDays).Format(models.DateFormat)
		args = append(args, "--since", since+" 00:00:00")
	}
	if c.cfg.GitAuthor != "" {
		args = append(args, "--author", c.cfg.GitAuthor)
	}

	out, err := c.runGit(ctx, repo, args...)
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}

	var commits []commitInfo
	for _, line := range strings.Split(out, "\n") {
		commit, ok := parseLogLine(line)
		if !ok {
			continue
		}
		stats, err := c.runGit(ctx, repo, "show", "--numstat", "--format=", commit.hash)
		if err != nil {
			logging.Warn().Err(err).Str("commit", commit.shortHash).Msg("Failed to read commit stats")
		} else {
			commit.additions, commit.deletions, commit.files = parseNumstat(stats)
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

func parseLogLine(line string) (commitInfo, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), "|", 5)
	if len(parts) < 5 {
		return commitInfo{}, false
	}
	t, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return commitInfo{}, false
	}
	return commitInfo{
		hash:      parts[0],
		shortHash: parts[1],
		author:    parts[2],
		time:      t,
		subject:   parts[4],
	}, true
}

// parseNumstat sums a git numstat block. Binary files report "-" columns
// and count as a touched file with no line delta.
func parseNumstat(out string) (additions, deletions, files int) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		files++
		if add, err := strconv.Atoi(fields[0]); err == nil {
			additions += add
		}
		if del, err := strconv.Atoi(fields[1]); err == nil {
			deletions += del
		}
	}
	return additions, deletions, files
}

func runGit(ctx context.Context, repo string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repo}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
