// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package sources

import (
	"math"
	"time"
)

// Hours estimate provenance, stored so user edits survive re-imports.
const (
	HoursSourceSession  = "session"
	HoursSourceInterval = "commit_interval"
	HoursSourceDiff     = "heuristic"
)

const (
	minCommitHours = 0.25
	maxCommitHours = 4.0
	minSessionHrs  = 0.25
	maxSessionHrs  = 8.0

	// Commit gaps outside this window say nothing about effort: shorter
	// gaps are fixup noise, longer ones span breaks.
	minIntervalGap = 5 * time.Minute
	maxIntervalGap = 4 * time.Hour
)

// EstimateCommitHours estimates effort for one commit. The gap to the
// previous commit wins when it is plausible; otherwise the diff size
// decides. Returns the estimate and its provenance.
func EstimateCommitHours(commitTime time.Time, prevCommitTime *time.Time, additions, deletions, filesCount int) (float64, string) {
	if prevCommitTime != nil {
		gap := commitTime.Sub(*prevCommitTime)
		if gap > minIntervalGap && gap < maxIntervalGap {
			return roundQuarter(clamp(gap.Hours(), minCommitHours, maxCommitHours)), HoursSourceInterval
		}
	}
	return EstimateFromDiff(additions, deletions, filesCount), HoursSourceDiff
}

// EstimateFromDiff estimates effort from diff statistics. Line count
// scales logarithmically so large mechanical diffs do not dominate; each
// touched file adds a fixed overhead. Result is clamped to
// [0.25, 4.0] hours in quarter-hour steps.
func EstimateFromDiff(additions, deletions, filesCount int) float64 {
	totalLines := float64(additions + deletions)
	if totalLines == 0 {
		return minCommitHours
	}

	lineFactor := math.Log(totalLines+1) * 0.2
	fileFactor := float64(filesCount) * 0.15

	return roundQuarter(clamp(lineFactor+fileFactor, minCommitHours, maxCommitHours))
}

// SessionHours derives effort from a session's wall-clock span, clamped
// to [0.25, 8.0] hours in quarter-hour steps. Unparseable timestamps fall
// back to half an hour.
func SessionHours(start, end string) float64 {
	startT, err1 := time.Parse(time.RFC3339, start)
	endT, err2 := time.Parse(time.RFC3339, end)
	if err1 != nil || err2 != nil {
		return 0.5
	}
	hours := endT.Sub(startT).Hours()
	return roundQuarter(clamp(hours, minSessionHrs, maxSessionHrs))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func roundQuarter(hours float64) float64 {
	return math.Round(hours*4) / 4
}
