package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/islandrelay/internal/api/apierr"
)

func panicking(logger *slog.Logger) http.Handler {
	return Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
}

func TestRecoveryWritesAPIError(t *testing.T) {
	var buf bytes.Buffer
	h := panicking(slog.New(slog.NewJSONHandler(&buf, nil)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/players", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, apierr.CodeInternalError, body.Error.Code)

	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"component":"api"`)
}

func TestRecoveryPlainForSocketHandshake(t *testing.T) {
	h := panicking(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	req := httptest.NewRequest(http.MethodGet, "/socket", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotContains(t, rr.Body.String(), apierr.CodeInternalError)
}
