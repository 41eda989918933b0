package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/islandrelay/internal/api"
	"github.com/mcoot/islandrelay/internal/config"
	"github.com/mcoot/islandrelay/internal/dependencies/clock"
	"github.com/mcoot/islandrelay/internal/dependencies/random"
	"github.com/mcoot/islandrelay/internal/events/natsbus"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/services/reaper"
	"github.com/mcoot/islandrelay/internal/services/registry"
	"github.com/mcoot/islandrelay/internal/services/router"
	"github.com/mcoot/islandrelay/internal/services/session"
	"github.com/mcoot/islandrelay/internal/storage"
	"github.com/mcoot/islandrelay/internal/storage/memory"
	redisstorage "github.com/mcoot/islandrelay/internal/storage/redis"
	"github.com/mcoot/islandrelay/internal/web/ws"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Registry *registry.Registry
	Router   *router.Router
	Reaper   *reaper.Reaper
	Session  *session.Session

	// Transport
	Hub    *ws.Hub
	Socket *ws.Handler

	// Publisher mirrors events to NATS; nil when disabled
	Publisher *natsbus.Publisher

	logger  *slog.Logger
	closers []func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Settings is the loaded relay configuration
	// If zero value, defaults to config.Default()
	Settings config.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	settings := cfg.Settings
	if settings.Storage.Type == "" {
		settings = config.Default()
	}

	var closers []func() error

	// Create storage based on type
	var store storage.Storage
	switch settings.Storage.Type {
	case config.StorageMemory:
		store = memory.New()
	case config.StorageRedis:
		redisStore, err := redisstorage.New(redisstorage.Config{
			URL:          settings.Storage.Redis.URL,
			PoolSize:     settings.Storage.Redis.PoolSize,
			MinIdleConns: settings.Storage.Redis.MinIdleConns,
			KeyPrefix:    settings.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store = redisStore
		closers = append(closers, redisStore.Close)
	default:
		return nil, errors.New("invalid storage type: must be 'memory' or 'redis'")
	}

	// Presence never outlives the process
	if err := store.Clear(context.Background()); err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("clearing stale presence records: %w", err)
	}

	app := newWithDependencies(store, clock.New(), random.New(), settings, logger)
	app.closers = closers

	if settings.Events.Enabled() {
		conn, err := natsbus.Connect(settings.Events.NATSURL, settings.Events.ClientName)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		app.closers = append(app.closers, conn.Drain)
		app.Publisher = natsbus.NewPublisher(conn, settings.Events.SubjectPrefix, logger)
		app.Session.AddSink(app.Publisher)
	}

	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, settings config.Config, logger *slog.Logger) *App {
	spawn := model.Position{X: settings.Presence.SpawnX, Y: settings.Presence.SpawnY}

	reg := registry.New(store, clk, spawn)
	reg.SetStorageTimeout(settings.Storage.Timeout)
	rt := router.New(reg, clk, rnd, logger.With(slog.String("component", "router")))
	rp := reaper.New(reg, clk, settings.Presence.IdleTimeout, settings.Presence.SweepInterval,
		logger.With(slog.String("component", "reaper")))

	hub := ws.NewHub(logger)
	sess := session.New(rt, rp, logger.With(slog.String("component", "session")), hub)
	socket := ws.NewHandler(hub, sess, rnd, ws.Config{
		WriteWait:      settings.WebSocket.WriteWait,
		PongWait:       settings.WebSocket.PongWait,
		PingPeriod:     settings.WebSocket.PingPeriod,
		MaxMessageSize: settings.WebSocket.MaxMessageSize,
		SendBufferSize: settings.WebSocket.SendBufferSize,
		AllowedOrigins: settings.WebSocket.AllowedOrigins,
	}, logger)

	return &App{
		Storage:  store,
		Clock:    clk,
		Random:   rnd,
		Registry: reg,
		Router:   rt,
		Reaper:   rp,
		Session:  sess,
		Hub:      hub,
		Socket:   socket,
		logger:   logger,
	}
}

// Handler returns the HTTP handler serving the API and the WebSocket endpoint
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:   a.logger,
		Registry: a.Registry,
		Random:   a.Random,
		Socket:   a.Socket,
	})
}

// Start runs the hub loop and the idle reaper until ctx is cancelled
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run()
	go a.Session.RunReaper(ctx)
}

// Close stops the hub, closing every client, then releases external connections
func (a *App) Close() error {
	a.Hub.Close()
	return closeAll(a.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
