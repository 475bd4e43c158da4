// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestCircuitBreakerOpensOnServerFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cbc := NewCircuitBreakerClient(newTestClient(srv.URL, ""))
	ctx := context.Background()

	// Drive enough failures to cross the 60% threshold over 10+ requests.
	var sawOpen bool
	for i := 0; i < 20; i++ {
		_, err := cbc.TestConnection(ctx)
		if err == nil {
			t.Fatal("expected error from failing server")
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			sawOpen = true
			break
		}
	}
	if !sawOpen {
		t.Error("circuit never opened after sustained server failures")
	}
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cbc := NewCircuitBreakerClient(newTestClient(srv.URL, ""))
	ctx := context.Background()

	// Bad issue keys say nothing about server health: the circuit must
	// stay closed no matter how many 404s come back.
	for i := 0; i < 20; i++ {
		_, err := cbc.GetIssue(ctx, "PROJ-404")
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("circuit opened on client errors at request %d", i)
		}
		if !errors.Is(err, ErrIssueNotFound) {
			t.Fatalf("expected ErrIssueNotFound, got %v", err)
		}
	}
}
