package redis

import (
	"fmt"

	"github.com/mcoot/islandrelay/internal/model"
)

// playerKey returns the Redis key for a Player
func (s *Storage) playerKey(id model.ConnectionID) string {
	return fmt.Sprintf("%s:player:%s", s.cfg.KeyPrefix, id)
}

// playersIndexKey returns the Redis key for the SET of live connection ids
func (s *Storage) playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", s.cfg.KeyPrefix)
}
