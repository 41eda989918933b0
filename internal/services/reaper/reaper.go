// Package reaper evicts players that have been idle for too long
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/islandrelay/internal/dependencies/clock"
	"github.com/mcoot/islandrelay/internal/protocol"
	"github.com/mcoot/islandrelay/internal/services/registry"
)

const (
	// DefaultTimeout is how long a player may go without moving before eviction
	DefaultTimeout = 5 * time.Minute
	// DefaultInterval is how often the registry is swept
	DefaultInterval = 5 * time.Minute
)

// Sweeper runs one sweep; the session implements this so sweeps share its lock
type Sweeper interface {
	Sweep(ctx context.Context)
}

// Reaper removes idle players from the registry
type Reaper struct {
	registry *registry.Registry
	clock    clock.Clock
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Reaper
func New(
	registry *registry.Registry,
	clock clock.Clock,
	timeout time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		registry: registry,
		clock:    clock,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Sweep evicts every player idle for longer than the timeout
// Each eviction yields a playerDisconnected broadcast
func (r *Reaper) Sweep(ctx context.Context) (protocol.Batch, error) {
	players, err := r.registry.All(ctx)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	var batch protocol.Batch
	for _, p := range players {
		idle := p.IdleFor(now)
		if idle <= r.timeout {
			continue
		}

		// Already removed by a disconnect racing the snapshot
		if _, ok, err := r.registry.Remove(ctx, p.ID); err != nil {
			return batch, err
		} else if !ok {
			continue
		}

		r.logger.Info("evicted idle player",
			slog.String("connection_id", string(p.ID)),
			slog.String("username", p.Username),
			slog.Duration("idle", idle),
		)
		batch = append(batch, protocol.Outbound{
			Target:  protocol.All(),
			Event:   protocol.EventPlayerDisconnected,
			Payload: string(p.ID),
		})
	}
	return batch, nil
}

// Run sweeps through s on every tick until ctx is cancelled
func (r *Reaper) Run(ctx context.Context, s Sweeper) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("idle reaper started",
		slog.Duration("interval", r.interval),
		slog.Duration("timeout", r.timeout),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("idle reaper stopped")
			return
		case <-ticker.C():
			s.Sweep(ctx)
		}
	}
}
