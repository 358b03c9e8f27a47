package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"call-inbox/internal/calls"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "callinbox:snapshot"

// ErrMiss is returned by Restore when no snapshot is stored.
var ErrMiss = errors.New("cache: no snapshot")

// snapshot is the stored payload. Version is the store version at save time.
type snapshot struct {
	Version uint64       `json:"version"`
	SavedAt time.Time    `json:"saved_at"`
	Calls   []calls.Call `json:"calls"`
}

// RedisSnapshots keeps the last known call sequence in Redis so a restarted
// process can serve views before the first bulk fetch completes.
type RedisSnapshots struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisSnapshots(rdb *redis.Client, key string, ttl time.Duration) *RedisSnapshots {
	if key == "" {
		key = defaultKey
	}
	return &RedisSnapshots{rdb: rdb, key: key, ttl: ttl}
}

func (c *RedisSnapshots) Save(ctx context.Context, version uint64, list []calls.Call) error {
	if c.rdb == nil {
		return errors.New("cache: redis client is nil")
	}
	raw, err := json.Marshal(snapshot{Version: version, SavedAt: time.Now().UTC(), Calls: list})
	if err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	return c.rdb.Set(ctx, c.key, raw, c.ttl).Err()
}

// Restore returns the stored sequence and its version.
func (c *RedisSnapshots) Restore(ctx context.Context) ([]calls.Call, uint64, error) {
	if c.rdb == nil {
		return nil, 0, errors.New("cache: redis client is nil")
	}
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrMiss
	}
	if err != nil {
		return nil, 0, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, 0, fmt.Errorf("cache: decode snapshot: %w", err)
	}
	return snap.Calls, snap.Version, nil
}

func (c *RedisSnapshots) Clear(ctx context.Context) error {
	if c.rdb == nil {
		return errors.New("cache: redis client is nil")
	}
	return c.rdb.Del(ctx, c.key).Err()
}
