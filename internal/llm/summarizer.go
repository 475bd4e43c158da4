// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package llm

import (
	"context"
	"fmt"
	"strings"
)

// Summarizer condenses a group of work item titles into one worklog
// description.
type Summarizer interface {
	Summarize(ctx context.Context, projectPath string, titles []string) (string, error)
}

// maxRuleBasedTitles bounds how many titles the mechanical fallback joins.
const maxRuleBasedTitles = 3

// RuleBased builds descriptions by joining item titles. Deterministic and
// dependency-free; the fallback when no LLM is configured.
type RuleBased struct{}

// Summarize returns "N items: t1; t2; t3" with at most three titles, or
// the single title verbatim when the group has one item.
func (RuleBased) Summarize(_ context.Context, _ string, titles []string) (string, error) {
	titles = nonEmpty(titles)
	switch len(titles) {
	case 0:
		return "Development work", nil
	case 1:
		return titles[0], nil
	}

	shown := titles
	if len(shown) > maxRuleBasedTitles {
		shown = shown[:maxRuleBasedTitles]
	}
	return fmt.Sprintf("%d items: %s", len(titles), strings.Join(shown, "; ")), nil
}

func nonEmpty(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
