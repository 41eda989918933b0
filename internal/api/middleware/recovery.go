package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/islandrelay/internal/api/apierr"
	"github.com/mcoot/islandrelay/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// REST callers get an INTERNAL_ERROR body; socket handshakes get a bare 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger.With(slog.String("component", "api")), relayPanicHandler)
}

func relayPanicHandler(w http.ResponseWriter, r *http.Request, err any) {
	if websocket.IsWebSocketUpgrade(r) {
		middleware.DefaultPanicHandler(w, r, err)
		return
	}
	apierr.WriteError(w, apierr.NewInternalError())
}
