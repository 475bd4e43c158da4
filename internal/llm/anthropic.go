// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/logging"
)

const summarySystemPrompt = `You write one-line worklog descriptions for time tracking.
Given a list of development task titles for a single project and day, respond with
a single concise sentence (max 120 characters) summarizing the work. No preamble,
no quotes, no trailing period.`

// AnthropicSummarizer generates descriptions through the Anthropic
// Messages API, degrading to the rule-based text on any failure.
type AnthropicSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	fallback  RuleBased
}

// NewAnthropicSummarizer creates a summarizer from the LLM configuration.
func NewAnthropicSummarizer(cfg *config.LLMConfig) *AnthropicSummarizer {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &AnthropicSummarizer{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Summarize asks the model for a one-line description of the day's work.
// On failure the rule-based text is returned with a nil error: a worklog
// with a mechanical description beats a failed sync.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, projectPath string, titles []string) (string, error) {
	titles = nonEmpty(titles)
	if len(titles) <= 1 {
		return s.fallback.Summarize(ctx, projectPath, titles)
	}

	prompt := fmt.Sprintf("Project: %s\nTasks:\n- %s",
		projectPath, strings.Join(titles, "\n- "))

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: summarySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		logging.Warn().Err(err).Str("project", projectPath).Msg("LLM summarization failed, using rule-based description")
		return s.fallback.Summarize(ctx, projectPath, titles)
	}

	text := extractText(msg)
	if text == "" {
		return s.fallback.Summarize(ctx, projectPath, titles)
	}
	return text, nil
}

func extractText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
