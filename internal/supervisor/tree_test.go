// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// mockService counts starts and optionally fails its first run.
type mockService struct {
	starts   atomic.Int64
	failOnce atomic.Bool
}

func (m *mockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	if m.failOnce.CompareAndSwap(true, false) {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string {
	return "mock-service"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStarts(t *testing.T, svc *mockService, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for svc.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("service starts = %d, want at least %d", svc.starts.Load(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTreeRunsAndStopsServices(t *testing.T) {
	tree := NewTree(discardLogger(), DefaultTreeConfig())

	svc := &mockService{}
	tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, svc, 1)

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want nil or context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("tree did not stop after cancel")
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	config := DefaultTreeConfig()
	config.FailureBackoff = 50 * time.Millisecond

	tree := NewTree(discardLogger(), config)

	svc := &mockService{}
	svc.failOnce.Store(true)
	tree.AddAPIService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	// First run fails, the supervisor must bring it back.
	waitForStarts(t, svc, 2)
}

func TestTreeLayerIsolation(t *testing.T) {
	config := DefaultTreeConfig()
	config.FailureBackoff = 50 * time.Millisecond

	tree := NewTree(discardLogger(), config)

	failing := &mockService{}
	failing.failOnce.Store(true)
	stable := &mockService{}

	tree.AddMessagingService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitForStarts(t, failing, 2)

	// The API layer service must not have been restarted by the
	// messaging layer failure.
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("stable service starts = %d, want 1", got)
	}
}
