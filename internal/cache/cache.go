// Package cache keeps short-lived copies of per-user token versions so full
// verification can skip the database on hot paths.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "accounts:token_version:"

var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// VersionCache stores the latest known token version per user. Set never
// lowers a cached version, so a slow reader cannot resurrect a revoked one.
type VersionCache interface {
	Get(ctx context.Context, userID int64) (int, bool)
	Set(ctx context.Context, userID int64, version int) error
}

// NoopVersionCache always misses.
type NoopVersionCache struct{}

func (NoopVersionCache) Get(context.Context, int64) (int, bool) { return 0, false }
func (NoopVersionCache) Set(context.Context, int64, int) error { return nil }

type RedisVersionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVersionCache(client *redis.Client, ttl time.Duration) *RedisVersionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisVersionCache{client: client, ttl: ttl}
}

// Connect builds a Redis-backed cache from a redis:// URL or a bare
// host:port. When Redis is unreachable it logs and falls back to the no-op
// cache so the service keeps working against Postgres alone.
func Connect(ctx context.Context, rawURL string, ttl time.Duration) (VersionCache, func() error) {
	if strings.TrimSpace(rawURL) == "" {
		return NoopVersionCache{}, func() error { return nil }
	}

	opts, err := parseOptions(rawURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL; token version cache disabled", "error", err)
		return NoopVersionCache{}, func() error { return nil }
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable; token version cache disabled", "addr", opts.Addr, "error", err)
		_ = client.Close()
		return NoopVersionCache{}, func() error { return nil }
	}

	slog.Info("redis connected", "addr", opts.Addr, "ttl", ttl)
	return NewRedisVersionCache(client, ttl), client.Close
}

func parseOptions(rawURL string) (*redis.Options, error) {
	if strings.Contains(rawURL, "://") {
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: rawURL}, nil
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func (c *RedisVersionCache) Get(ctx context.Context, userID int64) (int, bool) {
	version, err := c.client.Get(ctx, key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		slog.Warn("token version cache read failed", "user_id", userID, "error", err)
		return 0, false
	}
	return version, true
}

func (c *RedisVersionCache) Set(ctx context.Context, userID int64, version int) error {
	err := setIfNewer.Run(ctx, c.client, []string{key(userID)}, version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache token version: %w", err)
	}
	return nil
}
