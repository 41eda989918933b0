package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/islandrelay/internal/api/response"
	"github.com/mcoot/islandrelay/internal/dependencies/random"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/services/registry"
)

// PresenceHandler serves read-only queries over the registry
type PresenceHandler struct {
	registry *registry.Registry
	random   random.Random
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(registry *registry.Registry, random random.Random) *PresenceHandler {
	return &PresenceHandler{
		registry: registry,
		random:   random,
	}
}

// RandomCharacter handles GET /api/random-character
func (h *PresenceHandler) RandomCharacter(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Character{
		Emoji: random.Pick(h.random, model.CharacterEmojis),
	})
}

// Count handles GET /api/players/count
func (h *PresenceHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.Count(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Count{Count: count})
}

// List handles GET /api/v1/players
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.registry.All(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerListFromModel(players))
}

// Get handles GET /api/v1/players/{id}
func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.ConnectionID(mux.Vars(r)["id"])
	if id == "" {
		WriteError(w, NewInvalidRequestError("player id is required"))
		return
	}

	player, ok, err := h.registry.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !ok {
		WriteError(w, model.ErrPlayerNotFound)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}
