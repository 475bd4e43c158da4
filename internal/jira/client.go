// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package jira

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mhuang-dev/worklogd/internal/config"
)

// maxErrorBodySize limits how much of a failed response body is read for
// error reporting.
const maxErrorBodySize = 64 * 1024

// UserInfo describes the authenticated remote user.
type UserInfo struct {
	AccountID   string `json:"accountId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

// Issue is the subset of a remote issue the engine cares about.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Assignee    string
	IssueType   string
}

// WorklogEntry is one worklog to upload.
type WorklogEntry struct {
	IssueKey         string
	Date             string // YYYY-MM-DD
	TimeSpentSeconds int64
	Description      string
	AccountID        string
}

// WorklogResult is the remote identity of an uploaded worklog. ID carries
// the Jira native id; TempoWorklogID the Tempo id when the Tempo path was
// used. WorklogID() returns whichever is set.
type WorklogResult struct {
	ID             string
	TempoWorklogID int64
}

// WorklogID returns the canonical remote worklog reference.
func (r *WorklogResult) WorklogID() string {
	if r.ID != "" {
		return r.ID
	}
	if r.TempoWorklogID != 0 {
		return strconv.FormatInt(r.TempoWorklogID, 10)
	}
	return ""
}

// API is the remote surface consumed by the validator and the sync
// executor. Implemented by Client and CircuitBreakerClient.
type API interface {
	TestConnection(ctx context.Context) (*UserInfo, error)
	GetIssue(ctx context.Context, issueKey string) (*Issue, error)
	SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error)
	CreateWorklog(ctx context.Context, entry *WorklogEntry) (*WorklogResult, error)
}

// Client talks to Jira and, when configured, the Tempo Timesheets plugin.
//
// Thread safety: safe for concurrent use. Each request creates its own
// http.Request; retry state is per-call.
type Client struct {
	baseURL        string
	token          string
	email          string
	authType       string
	tempoToken     string
	startTime      string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a client from the Jira and Tempo configuration.
func NewClient(jiraCfg *config.JiraConfig, tempoCfg *config.TempoConfig) *Client {
	timeout := jiraCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	startTime := tempoCfg.StartTime
	if startTime == "" {
		startTime = "09:00:00"
	}
	return &Client{
		baseURL:        trimTrailingSlash(jiraCfg.URL),
		token:          jiraCfg.Token,
		email:          jiraCfg.Email,
		authType:       jiraCfg.AuthType,
		tempoToken:     tempoCfg.Token,
		startTime:      startTime,
		client:         &http.Client{Timeout: timeout},
		// Client-side ceiling below typical server quotas, so the 429
		// backoff path is the exception rather than the steady state.
		limiter:        rate.NewLimiter(rate.Limit(10), 20),
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// UseTempo reports whether uploads go through the Tempo plugin API.
func (c *Client) UseTempo() bool {
	return c.tempoToken != ""
}

// TestConnection verifies credentials by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if err := c.getJSON(ctx, c.baseURL+"/rest/api/2/myself", &user); err != nil {
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return &user, nil
}

// issueFields is the wire shape of GET /rest/api/2/issue/{key}.
type issueFields struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Assignee    *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		IssueType *struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

func (f *issueFields) toIssue() Issue {
	issue := Issue{
		Key:         f.Key,
		Summary:     f.Fields.Summary,
		Description: f.Fields.Description,
	}
	if f.Fields.Assignee != nil {
		issue.Assignee = f.Fields.Assignee.DisplayName
	}
	if f.Fields.IssueType != nil {
		issue.IssueType = f.Fields.IssueType.Name
	}
	return issue
}

// GetIssue fetches a remote issue. Returns ErrIssueNotFound for unknown or
// invisible keys.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	reqURL := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=summary,description,assignee,issuetype",
		c.baseURL, url.PathEscape(issueKey))

	var raw issueFields
	if err := c.getJSON(ctx, reqURL, &raw); err != nil {
		return nil, err
	}
	issue := raw.toIssue()
	return &issue, nil
}

// SearchIssues runs a type-ahead search across issue keys and summaries.
// The query is matched as a key prefix and as summary text.
func (c *Client) SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error) {
	if limit <= 0 {
		limit = 10
	}
	jql := fmt.Sprintf(`summary ~ "%s*" OR key = "%s" ORDER BY updated DESC`,
		escapeJQL(query), escapeJQL(query))

	reqURL := fmt.Sprintf("%s/rest/api/2/search?jql=%s&fields=summary,issuetype&maxResults=%d",
		c.baseURL, url.QueryEscape(jql), limit)

	var raw struct {
		Issues []issueFields `json:"issues"`
	}
	if err := c.getJSON(ctx, reqURL, &raw); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(raw.Issues))
	for i := range raw.Issues {
		issues = append(issues, raw.Issues[i].toIssue())
	}
	return issues, nil
}

// getJSON performs an authenticated GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	resp, err := c.doWithRateLimit(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, string(readBodyForError(resp.Body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// postJSON performs an authenticated POST with a JSON payload.
func (c *Client) postJSON(ctx context.Context, reqURL string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doWithRateLimit(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, string(readBodyForError(resp.Body)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// doWithRateLimit performs an HTTP request with automatic 429 handling.
// Backoff doubles each attempt (1s, 2s, 4s, 8s, 16s) and honors a
// Retry-After header when present. The context cancels backoff waits.
func (c *Client) doWithRateLimit(ctx context.Context, method, reqURL string, body []byte) (*http.Response, error) {
	if c.baseURL == "" || c.token == "" {
		return nil, ErrNotConfigured
	}
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setAuth(req, reqURL)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == c.maxRetries {
			return nil, fmt.Errorf("%w: gave up after %d retries", ErrRateLimited, c.maxRetries)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// setAuth attaches credentials. Tempo plugin endpoints take the Tempo
// token; everything else uses the Jira token with the configured scheme.
func (c *Client) setAuth(req *http.Request, reqURL string) {
	if c.tempoToken != "" && isTempoEndpoint(reqURL) {
		req.Header.Set("Authorization", "Bearer "+c.tempoToken)
		return
	}
	if c.authType == "basic" {
		req.SetBasicAuth(c.email, c.token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func isTempoEndpoint(reqURL string) bool {
	u, err := url.Parse(reqURL)
	if err != nil {
		return false
	}
	return len(u.Path) >= 11 && u.Path[:11] == "/rest/tempo"
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// escapeJQL escapes quotes and backslashes in user input embedded in JQL.
func escapeJQL(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
