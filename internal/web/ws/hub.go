// Package ws carries relay events over WebSocket connections
package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/protocol"
)

// deliverBufferSize bounds batches waiting for the hub loop
const deliverBufferSize = 1024

// Hub tracks every connected client and fans outbound batches out to them
type Hub struct {
	clients map[model.ConnectionID]*Client
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	deliver    chan protocol.Batch
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a Hub; call Run to start it
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[model.ConnectionID]*Client),
		logger:     logger.With(slog.String("component", "ws")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan protocol.Batch, deliverBufferSize),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("ws hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered",
				slog.String("connection_id", string(client.id)),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("ws client unregistered",
					slog.String("connection_id", string(client.id)),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case batch := <-h.deliver:
			h.fanOut(batch)

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("ws hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) fanOut(batch protocol.Batch) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, out := range batch {
		message, err := out.Encode()
		if err != nil {
			h.logger.Error("ws message encode failed",
				slog.String("event", out.Event),
				slog.String("error", err.Error()))
			continue
		}

		droppedCount := 0
		for id, client := range h.clients {
			if !out.Target.Includes(id) {
				continue
			}
			select {
			case client.send <- message:
			default:
				droppedCount++
				h.logger.Warn("ws message dropped - client buffer full",
					slog.String("connection_id", string(id)),
					slog.String("event", out.Event))
			}
		}
		if droppedCount > 0 {
			h.logger.Warn("ws delivery partial failure",
				slog.String("event", out.Event),
				slog.String("target", out.Target.String()),
				slog.Int("dropped", droppedCount))
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver queues a batch for fan-out without blocking the caller
func (h *Hub) Deliver(ctx context.Context, batch protocol.Batch) {
	select {
	case h.deliver <- batch:
	default:
		h.logger.Warn("ws batch dropped - hub buffer full", slog.Int("events", len(batch)))
	}
}

// Close shuts down the hub and every client's send channel
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
