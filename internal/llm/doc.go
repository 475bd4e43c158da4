// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package llm generates worklog descriptions from work item titles.

Two implementations of Summarizer exist:

  - AnthropicSummarizer calls the Anthropic Messages API and condenses a
    day's item titles into one worklog-ready sentence.
  - RuleBased joins the first titles mechanically. It is the fallback when
    no API key is configured and when the remote call fails.

The sync path never blocks on the LLM: a failed or slow summarization
degrades to the rule-based text, and batch building proceeds.
*/
package llm
