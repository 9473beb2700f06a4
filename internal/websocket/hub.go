// Fleetwatch - POS Terminal Fleet Health Monitoring
// Copyright 2026 Fleetwatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package websocket fans fleet state changes out to dashboard subscribers.
// Delivery is best-effort: a subscriber that cannot keep up is dropped
// rather than allowed to stall the ingest path.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Message types for WebSocket communication.
const (
	MessageTypeTerminalUpdate = "terminal_update"
	MessageTypeNewAlert       = "new_alert"
	MessageTypeAlertResolved  = "alert_resolved"
	MessageTypeConnected      = "connected"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ConnectedData is the hello frame sent to a subscriber on register.
type ConnectedData struct {
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Each Hub owns its own client map; there is no process-wide registry, so
// tests and multiple servers can run hubs independently.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub event loop until the context is canceled.
// Designed for suture supervision: on cancellation all clients are closed
// and ctx.Err() is returned.
//
// Uses priority-based selection for predictable behavior when multiple
// channels are ready:
//   - Priority 1: context cancellation (shutdown)
//   - Priority 2: client lifecycle events (Register/Unregister)
//   - Priority 3: broadcast messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: broadcast messages, or wait for any event
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// registerClient adds a client and queues its connected hello frame.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	hello := Message{
		Type: MessageTypeConnected,
		Data: ConnectedData{
			SessionID: client.SessionID(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	select {
	case client.send <- hello:
	default:
	}

	metrics.WebSocketClients.Set(float64(total))
	logging.Info().
		Str("session_id", client.SessionID()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(total))
	logging.Info().
		Str("session_id", client.SessionID()).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// shutdown closes all clients and logs the reason. Context cancellation is
// expected during graceful shutdown, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// broadcastToClients sends a message to all connected clients in session
// order. Clients whose send buffer is full are dropped: a stalled dashboard
// must never block the rest of the fleet's updates.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WebSocketMessagesSent.WithLabelValues(message.Type).Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketMessagesDropped.WithLabelValues("slow_client").Inc()
		logging.Warn().
			Str("session_id", client.SessionID()).
			Msg("dropping slow websocket client")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketClients.Set(float64(len(h.clients)))
	}
}

// closeAllClients closes all connected clients in session order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(0)
}

// enqueue hands a message to the hub loop without blocking the caller.
func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		metrics.WebSocketMessagesDropped.WithLabelValues("channel_full").Inc()
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastTerminalUpdate notifies subscribers of a terminal state change.
func (h *Hub) BroadcastTerminalUpdate(terminal *models.Terminal) {
	h.enqueue(Message{Type: MessageTypeTerminalUpdate, Data: terminal})
}

// BroadcastNewAlert notifies subscribers that an alert was raised.
func (h *Hub) BroadcastNewAlert(alert *models.Alert) {
	h.enqueue(Message{Type: MessageTypeNewAlert, Data: alert})
}

// BroadcastAlertResolved notifies subscribers that an alert was resolved.
func (h *Hub) BroadcastAlertResolved(alert *models.Alert) {
	h.enqueue(Message{Type: MessageTypeAlertResolved, Data: alert})
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
