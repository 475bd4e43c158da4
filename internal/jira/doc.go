// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

/*
Package jira provides the HTTP client for the Jira REST API and the Tempo
Timesheets plugin API.

Two upload paths exist for worklogs:

  - Tempo path: POST /rest/tempo-timesheets/4/worklogs, used when a Tempo
    token is configured. Returns a tempoWorklogId.
  - Jira native path: POST /rest/api/2/issue/{key}/worklog, the fallback
    when Tempo is absent. Returns a worklog id.

Both paths take timeSpentSeconds; callers convert minutes upstream.

Resilience:

  - Automatic HTTP 429 handling with exponential backoff (1s, 2s, 4s, 8s,
    16s) honoring Retry-After
  - CircuitBreakerClient wraps the raw client with sony/gobreaker so a
    down Jira server fails fast instead of queueing requests
  - All methods accept context.Context for cancellation

The Client type implements the API interface; consumers should depend on
the interface so tests can substitute fakes.
*/
package jira
