package api_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/islandrelay/internal/api"
	"github.com/mcoot/islandrelay/internal/api/apierr"
	"github.com/mcoot/islandrelay/internal/api/response"
	"github.com/mcoot/islandrelay/internal/factory"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/storage"
	redisstorage "github.com/mcoot/islandrelay/internal/storage/redis"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStorage(t, nil)
}

func newTestServerWithStorage(t *testing.T, store storage.Storage) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	var app *factory.TestApp
	if store == nil {
		app = factory.NewTestApp()
	} else {
		app = factory.NewTestAppWithStorage(store)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:   logger,
		Registry: app.Registry,
		Random:   app.Random,
		Socket:   app.Socket,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(t *testing.T, id model.ConnectionID, username, emoji string) {
	t.Helper()
	_, err := ts.app.Registry.Insert(context.Background(), id, username, emoji)
	require.NoError(t, err)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestRandomCharacter(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueIntn(2)

	rr := ts.request(http.MethodGet, "/api/random-character")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var resp response.Character
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.CharacterEmojis[2], resp.Emoji)
}

func TestPlayerCount(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/players/count")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0}`, rr.Body.String())

	ts.login(t, "a", "Ann", "🧚‍♀️")
	ts.login(t, "b", "Ben", "🧙‍♂️")

	rr = ts.request(http.MethodGet, "/api/players/count")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":2}`, rr.Body.String())
}

func TestListPlayersInLoginOrder(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "z", "Zed", "🧜‍♀️")
	ts.login(t, "a", "Ann", "🧚‍♀️")

	rr := ts.request(http.MethodGet, "/api/v1/players")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.PlayerList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Players, 2)
	assert.Equal(t, "z", resp.Players[0].ID)
	assert.Equal(t, "a", resp.Players[1].ID)
	assert.Equal(t, model.DefaultSpawn.X, resp.Players[0].X)
	assert.Equal(t, model.DefaultSpawn.Y, resp.Players[0].Y)
}

func TestGetPlayer(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "a", "Ann", "🧚‍♀️")

	rr := ts.request(http.MethodGet, "/api/v1/players/a")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Ann", resp.Username)
	assert.Equal(t, "🧚‍♀️", resp.Emoji)
	assert.True(t, resp.LastUpdate.Equal(ts.app.MockClock.Now()))
}

func TestGetPlayerNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/ghost")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeError(t, rr).Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/lobbies")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, decodeError(t, rr).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/players/count")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, apierr.CodeMethodNotAllowed, decodeError(t, rr).Code)
}

func TestSocketRejectsPlainRequest(t *testing.T) {
	ts := newTestServer(t)

	// Without upgrade headers the handshake fails before a client is registered
	rr := ts.request(http.MethodGet, api.SocketPath)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, ts.app.Hub.ClientCount())
}

func TestStorageUnavailable(t *testing.T) {
	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ts := newTestServerWithStorage(t, redisstorage.NewWithClient(client, redisstorage.DefaultConfig()))
	mini.Close()

	for _, path := range []string{"/api/players/count", "/api/v1/players", "/api/v1/players/a"} {
		rr := ts.request(http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
		assert.Equal(t, apierr.CodeStorageUnavailable, decodeError(t, rr).Code, path)
	}
}
