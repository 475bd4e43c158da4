// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package websocket streams background sync progress to connected UI
// observers. The hub fans every event out to all clients; a client that
// cannot keep up is dropped rather than allowed to stall the others.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
)

// Message types sent over the socket.
const (
	MessageTypeSyncProgress = "sync_progress"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ProgressSource delivers decoded sync progress events. Satisfied by the
// orchestrator's progress bus.
type ProgressSource interface {
	Subscribe(ctx context.Context) (<-chan models.SyncProgress, error)
}

// Hub maintains the set of active clients and broadcasts to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	source     ProgressSource
	mu         sync.RWMutex
}

// NewHub creates a hub fed by the given progress source.
func NewHub(source ProgressSource) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		source:     source,
	}
}

// Serve implements suture.Service. It consumes the progress source and
// runs the client event loop until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context) error {
	events, err := h.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		// Lifecycle events take priority over broadcasts so client state is
		// settled before messages are delivered.
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case progress, ok := <-events:
			if !ok {
				h.closeAllClients()
				return ctx.Err()
			}
			h.broadcastToClients(Message{Type: MessageTypeSyncProgress, Data: progress})

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

// BroadcastJSON queues a message for all clients. Dropped with a warning
// when the hub is saturated.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", messageType).Msg("Broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Websocket client disconnected")
}

// broadcastToClients delivers one message to every client, in stable id
// order. A client with a full send buffer is disconnected.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
	logging.Info().Int("clients_closed", count).Msg("Websocket hub stopped")
}
