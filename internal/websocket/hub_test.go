// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mhuang-dev/worklogd/internal/models"
)

type fakeSource struct {
	ch chan models.SyncProgress
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan models.SyncProgress, error) {
	return f.ch, nil
}

// startHub runs a hub over a fake progress source and returns a dialable
// test server URL.
func startHub(t *testing.T) (*Hub, *fakeSource, string) {
	t.Helper()

	source := &fakeSource{ch: make(chan models.SyncProgress, 16)}
	hub := NewHub(source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("hub did not stop")
		}
	})

	srv := httptest.NewServer(NewHandler(hub, []string{"*"}))
	t.Cleanup(srv.Close)

	return hub, source, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read websocket message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsProgressToAllClients(t *testing.T) {
	hub, source, url := startHub(t)

	connA := dial(t, url)
	connB := dial(t, url)
	waitForClients(t, hub, 2)

	source.ch <- models.SyncProgress{Phase: models.PhaseSources, Detail: "imported 3 items"}

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeSyncProgress {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeSyncProgress)
		}
		data, ok := msg.Data.(map[string]any)
		if !ok {
			t.Fatalf("data = %T, want object", msg.Data)
		}
		if data["phase"] != models.PhaseSources {
			t.Errorf("phase = %v, want %q", data["phase"], models.PhaseSources)
		}
	}
}

func TestHubPingPong(t *testing.T) {
	hub, _, url := startHub(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("Failed to write ping: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageTypePong {
		t.Errorf("message type = %q, want %q", msg.Type, MessageTypePong)
	}
}

func TestHubClientDisconnect(t *testing.T) {
	hub, _, url := startHub(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	if err := conn.Close(); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}
	waitForClients(t, hub, 0)
}

func TestHandlerRejectsBadOrigin(t *testing.T) {
	hub, _, _ := startHub(t)

	srv := httptest.NewServer(NewHandler(hub, []string{"https://allowed.example"}))
	t.Cleanup(srv.Close)

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err == nil {
		t.Fatal("dial with disallowed origin succeeded")
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

func TestBroadcastJSONReachesClient(t *testing.T) {
	hub, _, url := startHub(t)

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.BroadcastJSON(MessageTypeSyncProgress, models.SyncProgress{Phase: models.PhaseComplete})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncProgress {
		t.Errorf("message type = %q, want %q", msg.Type, MessageTypeSyncProgress)
	}
}
