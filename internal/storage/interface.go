package storage

import (
	"context"

	"github.com/mcoot/islandrelay/internal/model"
)

// Storage defines the interface for presence record persistence
type Storage interface {
	SavePlayer(ctx context.Context, player *model.Player) error
	// GetPlayer returns model.ErrPlayerNotFound when no record exists
	GetPlayer(ctx context.Context, id model.ConnectionID) (*model.Player, error)
	// DeletePlayer is a no-op for an unknown id
	DeletePlayer(ctx context.Context, id model.ConnectionID) error
	// ListPlayers returns every record in no particular order
	ListPlayers(ctx context.Context) ([]*model.Player, error)
	CountPlayers(ctx context.Context) (int, error)

	// Clear drops every record; called on startup since presence does not outlive the process
	Clear(ctx context.Context) error
}
