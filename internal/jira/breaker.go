// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package jira

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a down Jira
// server fails fast instead of stacking up timed-out requests.
//
// The breaker uses real time for its interval and timeout windows. Tests
// should exercise the wrapped client directly and reserve breaker tests
// for state transition behavior.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps a client with breaker protection.
// Configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window in closed state
//   - 2 minute open period before probing
//   - Opens at >= 60% failure rate over at least 10 requests
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	cbName := "jira-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit to remote API")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},

		// Client-side errors must not open the circuit: a bad issue key or
		// revoked token says nothing about server health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, ErrIssueNotFound) || errors.Is(err, ErrUnauthorized)
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute runs one call through the breaker and records the outcome.
func (cbc *CircuitBreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("Request rejected by open circuit")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// TestConnection verifies credentials through the breaker.
func (cbc *CircuitBreakerClient) TestConnection(ctx context.Context) (*UserInfo, error) {
	result, err := cbc.execute(func() (any, error) {
		return cbc.client.TestConnection(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*UserInfo), nil
}

// GetIssue fetches an issue through the breaker.
func (cbc *CircuitBreakerClient) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	result, err := cbc.execute(func() (any, error) {
		return cbc.client.GetIssue(ctx, issueKey)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Issue), nil
}

// SearchIssues searches issues through the breaker.
func (cbc *CircuitBreakerClient) SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error) {
	result, err := cbc.execute(func() (any, error) {
		return cbc.client.SearchIssues(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Issue), nil
}

// CreateWorklog uploads a worklog through the breaker.
func (cbc *CircuitBreakerClient) CreateWorklog(ctx context.Context, entry *WorklogEntry) (*WorklogResult, error) {
	result, err := cbc.execute(func() (any, error) {
		return cbc.client.CreateWorklog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return result.(*WorklogResult), nil
}

// UseTempo reports whether uploads go through the Tempo plugin API.
func (cbc *CircuitBreakerClient) UseTempo() bool {
	return cbc.client.UseTempo()
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
