// Package config loads relay settings from an optional YAML file and PRESENCE_ environment variables
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PRESENCE_SERVER_PORT
const EnvPrefix = "PRESENCE"

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "text"
	Format string `mapstructure:"format"`
}

// PresenceConfig holds spawn and idle eviction settings
type PresenceConfig struct {
	SpawnX        float64       `mapstructure:"spawn_x"`
	SpawnY        float64       `mapstructure:"spawn_y"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RedisConfig holds settings for the Redis storage backend
type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// StorageConfig selects where presence records live
type StorageConfig struct {
	Type string `mapstructure:"type"`
	// Timeout bounds the storage work of each registry call
	Timeout time.Duration `mapstructure:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// WebSocketConfig holds per-connection limits and keepalive timings
type WebSocketConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// EventsConfig holds the optional NATS event mirror settings
type EventsConfig struct {
	// NATSURL enables the mirror when non-empty
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	ClientName    string `mapstructure:"client_name"`
}

// Enabled reports whether events should be mirrored to NATS
func (e EventsConfig) Enabled() bool {
	return e.NATSURL != ""
}

// Config is the top-level relay configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Storage   StorageConfig   `mapstructure:"storage"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Events    EventsConfig    `mapstructure:"events"`
}

// Validate checks every section and reports all violations at once
func (c Config) Validate() error {
	var errs []string

	errs = append(errs, validateServer(c.Server)...)
	errs = append(errs, validateLogging(c.Logging)...)
	errs = append(errs, validatePresence(c.Presence)...)
	errs = append(errs, validateStorage(c.Storage)...)
	errs = append(errs, validateWebSocket(c.WebSocket)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) []string {
	var errs []string
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 0-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	return errs
}

func validateLogging(l LoggingConfig) []string {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, text], got %q", l.Format))
	}
	return errs
}

func validatePresence(p PresenceConfig) []string {
	var errs []string
	if !finite(p.SpawnX) || !finite(p.SpawnY) {
		errs = append(errs, "presence.spawn_x and presence.spawn_y must be finite")
	}
	if p.IdleTimeout <= 0 {
		errs = append(errs, "presence.idle_timeout must be positive")
	}
	if p.SweepInterval <= 0 {
		errs = append(errs, "presence.sweep_interval must be positive")
	}
	return errs
}

func validateStorage(s StorageConfig) []string {
	var errs []string
	if s.Timeout <= 0 {
		errs = append(errs, "storage.timeout must be positive")
	}
	switch s.Type {
	case StorageMemory:
		return errs
	case StorageRedis:
		if s.Redis.URL == "" {
			errs = append(errs, "storage.redis.url must not be empty when storage.type is redis")
		}
		if s.Redis.PoolSize < 1 {
			errs = append(errs, fmt.Sprintf("storage.redis.pool_size must be >= 1, got %d", s.Redis.PoolSize))
		}
		if s.Redis.MinIdleConns < 0 || s.Redis.MinIdleConns > s.Redis.PoolSize {
			errs = append(errs, "storage.redis.min_idle_conns must be between 0 and storage.redis.pool_size")
		}
		return errs
	default:
		return append(errs, fmt.Sprintf("storage.type must be one of [memory, redis], got %q", s.Type))
	}
}

func validateWebSocket(w WebSocketConfig) []string {
	var errs []string
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if w.PingPeriod <= 0 || w.PingPeriod >= w.PongWait {
		errs = append(errs, "websocket.ping_period must be positive and shorter than websocket.pong_wait")
	}
	if w.MaxMessageSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket.max_message_size must be >= 1, got %d", w.MaxMessageSize))
	}
	if w.SendBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer_size must be >= 1, got %d", w.SendBufferSize))
	}
	return errs
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Load reads configuration from path (skipped when empty), applies PRESENCE_
// environment overrides, and validates the result
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with PRESENCE_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// PORT is honoured for hosts that assign the listen port
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("presence.spawn_x", 300.0)
	v.SetDefault("presence.spawn_y", 300.0)
	v.SetDefault("presence.idle_timeout", "5m")
	v.SetDefault("presence.sweep_interval", "5m")

	v.SetDefault("storage.type", StorageMemory)
	v.SetDefault("storage.timeout", "2s")
	v.SetDefault("storage.redis.url", "redis://localhost:6379")
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.key_prefix", "presence")

	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.allowed_origins", []string{})

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "presence.events")
	v.SetDefault("events.client_name", "islandrelay")
}
