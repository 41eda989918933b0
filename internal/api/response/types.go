package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/islandrelay/internal/model"
)

// Player represents a player in API responses
type Player struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Emoji      string    `json:"emoji"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	LastUpdate time.Time `json:"last_update"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p model.Player) Player {
	return Player{
		ID:         string(p.ID),
		Username:   p.Username,
		Emoji:      p.Emoji,
		X:          p.Position.X,
		Y:          p.Position.Y,
		LastUpdate: p.LastUpdate,
	}
}

// PlayerList is the roster snapshot response
type PlayerList struct {
	Players []Player `json:"players"`
}

// PlayerListFromModel converts a roster in login order
func PlayerListFromModel(players []model.Player) PlayerList {
	list := PlayerList{Players: make([]Player, len(players))}
	for i, p := range players {
		list.Players[i] = PlayerFromModel(p)
	}
	return list
}

// Character is the random avatar response
type Character struct {
	Emoji string `json:"emoji"`
}

// Count is the online player count response
type Count struct {
	Count int `json:"count"`
}

// Health is the health check response
type Health struct {
	Status string `json:"status"`
}

// JSON writes a JSON response; presence snapshots are never cacheable
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
