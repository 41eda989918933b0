package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/islandrelay/internal/api/handler"
	"github.com/mcoot/islandrelay/internal/api/middleware"
	"github.com/mcoot/islandrelay/internal/api/response"
	"github.com/mcoot/islandrelay/internal/dependencies/random"
	"github.com/mcoot/islandrelay/internal/services/registry"
)

// SocketPath is where clients open their relay connection
const SocketPath = "/socket"

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Random   random.Random
	// Socket serves the WebSocket endpoint; omitted when nil
	Socket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handler.MethodNotAllowed)

	presenceHandler := handler.NewPresenceHandler(cfg.Registry, cfg.Random)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Routes the browser client already calls
	r.HandleFunc("/api/random-character", presenceHandler.RandomCharacter).Methods(http.MethodGet)
	r.HandleFunc("/api/players/count", presenceHandler.Count).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/players", presenceHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", presenceHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.Socket != nil {
		r.Handle(SocketPath, cfg.Socket).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
