// Package registry tracks which player record belongs to each live connection
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/islandrelay/internal/dependencies/clock"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/storage"
)

// DefaultStorageTimeout bounds the storage work of a single registry call
const DefaultStorageTimeout = 2 * time.Second

// Registry is the source of truth for who is online
type Registry struct {
	mu      sync.RWMutex
	storage storage.Storage
	clock   clock.Clock
	spawn   model.Position
	seq     uint64
	timeout time.Duration
}

// New creates a Registry over the given storage; new players appear at spawn
func New(storage storage.Storage, clock clock.Clock, spawn model.Position) *Registry {
	return &Registry{
		storage: storage,
		clock:   clock,
		spawn:   spawn,
		timeout: DefaultStorageTimeout,
	}
}

// SetStorageTimeout changes the per-call storage deadline; zero disables it
func (r *Registry) SetStorageTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// bounded derives the context for one registry call; callers hold r.mu
func (r *Registry) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Insert creates the record for a connection that has just logged in
func (r *Registry) Insert(ctx context.Context, id model.ConnectionID, username, emoji string) (model.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if _, err := r.storage.GetPlayer(ctx, id); err == nil {
		return model.Player{}, model.ErrDuplicateConnection
	} else if !errors.Is(err, model.ErrPlayerNotFound) {
		return model.Player{}, fmt.Errorf("checking connection %s: %w", id, err)
	}

	r.seq++
	player := model.Player{
		ID:         id,
		Username:   username,
		Emoji:      emoji,
		Position:   r.spawn,
		LastUpdate: r.clock.Now(),
		Seq:        r.seq,
	}
	if err := r.storage.SavePlayer(ctx, &player); err != nil {
		return model.Player{}, fmt.Errorf("saving player %s: %w", id, err)
	}
	return player, nil
}

// Get looks up a connection's record; absence is reported by ok, not err
func (r *Registry) Get(ctx context.Context, id model.ConnectionID) (player model.Player, ok bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	return r.get(ctx, id)
}

func (r *Registry) get(ctx context.Context, id model.ConnectionID) (model.Player, bool, error) {
	p, err := r.storage.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return model.Player{}, false, nil
	}
	if err != nil {
		return model.Player{}, false, fmt.Errorf("loading player %s: %w", id, err)
	}
	return *p, true, nil
}

// UpdatePosition moves a player and refreshes its activity time; false if absent
func (r *Registry) UpdatePosition(ctx context.Context, id model.ConnectionID, x, y float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	player, ok, err := r.get(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	player.Position = model.Position{X: x, Y: y}
	player.LastUpdate = r.clock.Now()
	if err := r.storage.SavePlayer(ctx, &player); err != nil {
		return false, fmt.Errorf("saving player %s: %w", id, err)
	}
	return true, nil
}

// Remove deletes a connection's record and returns it; ok is false if there was none
func (r *Registry) Remove(ctx context.Context, id model.ConnectionID) (player model.Player, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	player, ok, err = r.get(ctx, id)
	if err != nil || !ok {
		return model.Player{}, false, err
	}

	if err := r.storage.DeletePlayer(ctx, id); err != nil {
		return model.Player{}, false, fmt.Errorf("deleting player %s: %w", id, err)
	}
	return player, true, nil
}

// All returns a snapshot of every record in login order
func (r *Registry) All(ctx context.Context) ([]model.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	stored, err := r.storage.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	players := make([]model.Player, len(stored))
	for i, p := range stored {
		players[i] = *p
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Seq < players[j].Seq
	})
	return players, nil
}

// Count returns the number of logged-in connections
func (r *Registry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	n, err := r.storage.CountPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting players: %w", err)
	}
	return n, nil
}
