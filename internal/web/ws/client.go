package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/islandrelay/internal/dependencies/random"
	"github.com/mcoot/islandrelay/internal/model"
)

// Config holds per-connection limits and keepalive timings
type Config struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong from the peer
	PongWait time.Duration

	// Time between pings; must be less than PongWait
	PingPeriod time.Duration

	// Largest inbound frame accepted, in bytes
	MaxMessageSize int64

	// Buffer size for outgoing messages
	SendBufferSize int

	// AllowedOrigins lists accepted Origin headers; empty accepts any
	AllowedOrigins []string
}

// DefaultConfig returns the keepalive and size defaults
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 8 * 1024,
		SendBufferSize: 256,
	}
}

// MessageHandler consumes inbound frames and connection lifecycle
type MessageHandler interface {
	HandleMessage(ctx context.Context, id model.ConnectionID, raw []byte)
	Disconnect(ctx context.Context, id model.ConnectionID)
}

// Client represents a connected WebSocket client
type Client struct {
	hub         *Hub
	id          model.ConnectionID
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a client for an established connection
func NewClient(hub *Hub, id model.ConnectionID, conn *websocket.Conn, bufferSize int) *Client {
	return &Client{
		hub:         hub,
		id:          id,
		conn:        conn,
		send:        make(chan []byte, bufferSize),
		connectedAt: time.Now(),
	}
}

// ID returns the connection id assigned to the client
func (c *Client) ID() model.ConnectionID {
	return c.id
}

// Handler upgrades HTTP requests to relay connections
type Handler struct {
	hub      *Hub
	messages MessageHandler
	random   random.Random
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the WebSocket endpoint handler
func NewHandler(hub *Hub, messages MessageHandler, random random.Random, cfg Config, logger *slog.Logger) *Handler {
	h := &Handler{
		hub:      hub,
		messages: messages,
		random:   random,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP handles the WebSocket connection for a client until it disconnects
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(h.hub, model.ConnectionID(h.random.NewID()), conn, h.cfg.SendBufferSize)
	h.hub.Register(client)

	go h.writePump(client)
	h.readPump(context.WithoutCancel(r.Context()), client)
}

// readPump forwards inbound frames until the connection fails or closes
func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.messages.Disconnect(ctx, c.id)
		h.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		h.logger.Error("ws set read deadline failed", slog.String("error", err.Error()))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("ws read failed",
					slog.String("connection_id", string(c.id)),
					slog.String("error", err.Error()))
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}
		h.messages.HandleMessage(ctx, c.id, message)
	}
}

// writePump drains the client's send channel and keeps the connection alive
func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush whatever queued up behind this message
			n := len(c.send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.send
				if !ok {
					break
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
