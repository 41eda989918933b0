package model

import "time"

// ConnectionID identifies one live client channel for its lifetime
type ConnectionID string

// Position is a point on the shared map
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultSpawn is where every player appears on login
var DefaultSpawn = Position{X: 300, Y: 300}

// Player is the presence record for a logged-in connection
type Player struct {
	ID       ConnectionID `json:"id"`
	Username string       `json:"username"` // set at login, immutable
	Emoji    string       `json:"emoji"`    // avatar selector, set at login, immutable
	Position Position     `json:"position"`

	// LastUpdate is the time of the most recent login or movement
	LastUpdate time.Time `json:"last_update"`

	// Seq orders players by login
	Seq uint64 `json:"seq"`
}

// IdleFor returns how long the player has been inactive as of now
func (p *Player) IdleFor(now time.Time) time.Duration {
	return now.Sub(p.LastUpdate)
}
