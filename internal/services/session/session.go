// Package session serializes every change to presence state into one ordered event stream
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/protocol"
	"github.com/mcoot/islandrelay/internal/services/reaper"
	"github.com/mcoot/islandrelay/internal/services/router"
)

// Sink receives every outbound batch in session order
// Deliver must not block on slow consumers
type Sink interface {
	Deliver(ctx context.Context, batch protocol.Batch)
}

// Session owns the lock that orders routing, sweeping and delivery
type Session struct {
	mu     sync.Mutex
	router *router.Router
	reaper *reaper.Reaper
	sinks  []Sink
	logger *slog.Logger
}

// Ensure Session can drive the reaper
var _ reaper.Sweeper = (*Session)(nil)

// New creates a Session delivering to the given sinks
func New(router *router.Router, reaper *reaper.Reaper, logger *slog.Logger, sinks ...Sink) *Session {
	return &Session{
		router: router,
		reaper: reaper,
		sinks:  sinks,
		logger: logger,
	}
}

// AddSink registers another sink; batches already delivered are not replayed
func (s *Session) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// HandleMessage decodes one raw frame from a connection and handles it
func (s *Session) HandleMessage(ctx context.Context, id model.ConnectionID, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		s.logger.Warn("malformed message",
			slog.String("connection_id", string(id)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.HandleEnvelope(ctx, id, env)
}

// HandleEnvelope routes a decoded event and delivers the result
func (s *Session) HandleEnvelope(ctx context.Context, id model.ConnectionID, env protocol.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.router.Handle(ctx, id, env)
	if err != nil {
		s.logRejected(id, env.Event, err)
		return
	}
	s.deliver(ctx, batch)
}

// Disconnect removes the connection's player, if any, and announces it
func (s *Session) Disconnect(ctx context.Context, id model.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.router.HandleDisconnect(ctx, id)
	if err != nil {
		s.logRejected(id, "disconnect", err)
		return
	}
	s.deliver(ctx, batch)
}

// Sweep runs one idle sweep and delivers the resulting disconnects
func (s *Session) Sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.reaper.Sweep(ctx)
	if err != nil {
		s.logger.Error("idle sweep failed", slog.String("error", err.Error()))
	}
	// Evictions made before a failure still need announcing
	s.deliver(ctx, batch)
}

// RunReaper sweeps on the reaper's interval until ctx is cancelled
func (s *Session) RunReaper(ctx context.Context) {
	s.reaper.Run(ctx, s)
}

func (s *Session) deliver(ctx context.Context, batch protocol.Batch) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range s.sinks {
		sink.Deliver(ctx, batch)
	}
}

func (s *Session) logRejected(id model.ConnectionID, event string, err error) {
	attrs := []any{
		slog.String("connection_id", string(id)),
		slog.String("event", event),
		slog.String("error", err.Error()),
	}
	switch {
	case errors.Is(err, protocol.ErrUnknownEvent):
		s.logger.Debug("unknown event dropped", attrs...)
	case errors.Is(err, protocol.ErrMalformedPayload):
		s.logger.Warn("malformed payload rejected", attrs...)
	case errors.Is(err, model.ErrDuplicateConnection):
		s.logger.Warn("duplicate login rejected", attrs...)
	default:
		s.logger.Error("event handling failed", attrs...)
	}
}
