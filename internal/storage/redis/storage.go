package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Record and index are written together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.playerKey(player.ID), data, 0)
	pipe.SAdd(ctx, s.playersIndexKey(), string(player.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ConnectionID) (*model.Player, error) {
	data, err := s.client.Get(ctx, s.playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, unavailable(err)
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.ConnectionID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.playerKey(id))
	pipe.SRem(ctx, s.playersIndexKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, s.playersIndexKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.playerKey(model.ConnectionID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // index entry without a record
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			continue // Skip invalid data
		}
		players = append(players, &player)
	}

	return players, nil
}

func (s *Storage) CountPlayers(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.playersIndexKey()).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	indexKey := s.playersIndexKey()

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return unavailable(err)
	}

	// Delete all records and the index in one pipeline
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.playerKey(model.ConnectionID(id)))
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}
