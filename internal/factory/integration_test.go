package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/islandrelay/internal/config"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/protocol"
	redisstorage "github.com/mcoot/islandrelay/internal/storage/redis"
)

// collector stands in for the hub: it resolves each batch against the
// connections open at delivery time, the way fan-out does
type collector struct {
	mu        sync.Mutex
	connected map[model.ConnectionID]bool
	received  map[model.ConnectionID][]string
}

func newCollector() *collector {
	return &collector{
		connected: map[model.ConnectionID]bool{},
		received:  map[model.ConnectionID][]string{},
	}
}

// connect opens a connection; it receives only batches delivered afterwards
func (c *collector) connect(ids ...model.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.connected[id] = true
	}
}

func (c *collector) Deliver(ctx context.Context, batch protocol.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, out := range batch {
		for id := range c.connected {
			if out.Target.Includes(id) {
				c.received[id] = append(c.received[id], out.Event)
			}
		}
	}
}

func (c *collector) eventsFor(id model.ConnectionID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.received[id]...)
}

type IntegrationSuite struct {
	suite.Suite
	app  *TestApp
	sink *collector
	ctx  context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.sink = newCollector()
	s.app.Session.AddSink(s.sink)
	s.ctx = context.Background()
}

func (s *IntegrationSuite) send(id model.ConnectionID, event string, data any) {
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	s.Require().NoError(err)
	s.app.Session.HandleMessage(s.ctx, id, raw)
}

func (s *IntegrationSuite) get(path string, into any) int {
	rec := httptest.NewRecorder()
	s.app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if into != nil && rec.Code == http.StatusOK {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), into))
	}
	return rec.Code
}

func (s *IntegrationSuite) count() int {
	var body struct {
		Count int `json:"count"`
	}
	s.Require().Equal(http.StatusOK, s.get("/api/players/count", &body))
	return body.Count
}

// Test: Players log in, move, chat, idle out and are reported gone
func (s *IntegrationSuite) TestPresenceLifecycle() {
	// Step 1: Two players connect and log in one after the other
	s.sink.connect("a")
	s.send("a", "login", map[string]string{"username": "Ann", "emoji": "🧚‍♀️"})
	s.sink.connect("b")
	s.send("b", "login", map[string]string{"username": "Ben", "emoji": "🧙‍♂️"})
	s.Equal(2, s.count())

	// Step 2: Ann moves and chats a minute later
	s.app.MockClock.Advance(time.Minute)
	s.send("a", "move", map[string]float64{"x": 10, "y": 20})
	s.send("a", "chat", map[string]string{"message": "hello"})

	var ann struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	s.Require().Equal(http.StatusOK, s.get("/api/v1/players/a", &ann))
	s.Equal(10.0, ann.X)
	s.Equal(20.0, ann.Y)

	// Step 3: Ben goes idle past the timeout while Ann stays fresh
	s.app.MockClock.Advance(config.Default().Presence.IdleTimeout)
	s.send("a", "move", map[string]float64{"x": 11, "y": 20})
	s.app.Session.Sweep(s.ctx)

	s.Equal(1, s.count())
	s.Equal(http.StatusNotFound, s.get("/api/v1/players/b", nil))

	s.Equal([]string{
		protocol.EventExistingPlayers,
		protocol.EventNewPlayer,
		protocol.EventNewChatMessage,
		protocol.EventPlayerDisconnected,
	}, s.sink.eventsFor("a"))
	s.Equal([]string{
		protocol.EventExistingPlayers,
		protocol.EventPlayerMoved,
		protocol.EventNewChatMessage,
		protocol.EventPlayerMoved,
		protocol.EventPlayerDisconnected,
	}, s.sink.eventsFor("b"))

	// Step 4: Ann disconnects
	s.app.Session.Disconnect(s.ctx, "a")
	s.Equal(0, s.count())
}

// Test: A gift offer and acceptance pass between two players
func (s *IntegrationSuite) TestGiftExchange() {
	s.app.MockRandom.QueueID("gift-1")
	s.sink.connect("a", "b")
	s.send("a", "login", map[string]string{"username": "Ann", "emoji": "🧚‍♀️"})
	s.send("b", "login", map[string]string{"username": "Ben", "emoji": "🧙‍♂️"})

	s.send("a", "gift", map[string]any{"targetPlayerId": "b", "itemKey": "shell", "itemName": "Shell", "itemEmoji": "🐚", "amount": 2})
	s.send("b", "giftAccept", map[string]any{"senderId": "a", "itemName": "Shell", "amount": 2})

	s.Contains(s.sink.eventsFor("b"), protocol.EventGiftReceived)
	s.Contains(s.sink.eventsFor("a"), protocol.EventGiftConfirmed)
	s.NotContains(s.sink.eventsFor("b"), protocol.EventGiftConfirmed)
}

// Test: The idle reaper runs off the injected clock once started
func (s *IntegrationSuite) TestStartRunsReaper() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.app.Start(ctx)
	defer func() { _ = s.app.Close() }()

	s.send("a", "login", map[string]string{"username": "Ann", "emoji": "🧚‍♀️"})
	s.Eventually(func() bool { return s.app.MockClock.TickerCount() == 1 }, time.Second, 5*time.Millisecond)

	s.app.MockClock.Advance(2 * config.Default().Presence.IdleTimeout)
	s.app.MockClock.Tick()

	s.Eventually(func() bool {
		n, err := s.app.Registry.Count(s.ctx)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)
}

func (s *IntegrationSuite) TestHealthAndRandomCharacter() {
	var health struct {
		Status string `json:"status"`
	}
	s.Equal(http.StatusOK, s.get("/api/v1/health", &health))
	s.Equal("ok", health.Status)

	s.app.MockRandom.QueueIntn(0)
	var character struct {
		Emoji string `json:"emoji"`
	}
	s.Equal(http.StatusOK, s.get("/api/random-character", &character))
	s.Equal(model.CharacterEmojis[0], character.Emoji)
}

type RedisIntegrationSuite struct {
	suite.Suite
	mini *miniredis.Miniredis
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
}

func (s *RedisIntegrationSuite) settings() config.Config {
	cfg := config.Default()
	cfg.Storage.Type = config.StorageRedis
	cfg.Storage.Redis.URL = "redis://" + s.mini.Addr()
	return cfg
}

func (s *RedisIntegrationSuite) TestNewClearsStalePresence() {
	s.Require().NoError(s.mini.Set("presence:player:ghost", `{"id":"ghost"}`))
	_, err := s.mini.SAdd("presence:idx:players", "ghost")
	s.Require().NoError(err)

	app, err := New(Config{Settings: s.settings()})
	s.Require().NoError(err)
	defer func() { _ = app.Close() }()

	n, err := app.Registry.Count(context.Background())
	s.Require().NoError(err)
	s.Equal(0, n)
	s.False(s.mini.Exists("presence:player:ghost"))
}

func (s *RedisIntegrationSuite) TestSessionPersistsToRedis() {
	cfg := s.settings()
	store, err := redisstorage.New(redisstorage.Config{
		URL:       cfg.Storage.Redis.URL,
		PoolSize:  cfg.Storage.Redis.PoolSize,
		KeyPrefix: cfg.Storage.Redis.KeyPrefix,
	})
	s.Require().NoError(err)
	defer func() { _ = store.Close() }()

	app := NewTestAppWithStorage(store)
	raw, err := json.Marshal(map[string]any{"event": "login", "data": map[string]string{"username": "Ann", "emoji": "🧚‍♀️"}})
	s.Require().NoError(err)
	app.Session.HandleMessage(context.Background(), "a", raw)

	s.True(s.mini.Exists("presence:player:a"))
	members, err := s.mini.SMembers("presence:idx:players")
	s.Require().NoError(err)
	s.Equal([]string{"a"}, members)
}

func (s *RedisIntegrationSuite) TestNewFailsWhenRedisUnreachable() {
	cfg := s.settings()
	s.mini.Close()

	_, err := New(Config{Settings: cfg})
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrStorageUnavailable)
}

func TestNewDefaultsToMemory(t *testing.T) {
	app, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = app.Close() }()
	if app.Publisher != nil {
		t.Fatalf("publisher should be nil when events are disabled")
	}
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = "postgres"
	if _, err := New(Config{Settings: cfg}); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}
