package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisVersionCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisVersionCache(client, ttl), mr
}

func TestRedisVersionCache_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, 1, 0))
	version, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, 0, version)

	require.NoError(t, c.Set(ctx, 1, 2))
	version, ok = c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, 2, version)
}

func TestRedisVersionCache_NeverLowers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)

	require.NoError(t, c.Set(ctx, 7, 3))
	require.NoError(t, c.Set(ctx, 7, 1))

	version, ok := c.Get(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, 3, version)
}

func TestRedisVersionCache_Expires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newTestCache(t, 10*time.Second)

	require.NoError(t, c.Set(ctx, 5, 1))
	assert.True(t, mr.Exists(key(5)))

	mr.FastForward(11 * time.Second)
	_, ok := c.Get(ctx, 5)
	assert.False(t, ok)
}

func TestRedisVersionCache_ServerDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, 1, 1))
}

func TestConnect_Fallbacks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, closeFn := Connect(ctx, "", time.Minute)
	assert.IsType(t, NoopVersionCache{}, c)
	assert.NoError(t, closeFn())

	c, closeFn = Connect(ctx, "redis://%zz", time.Minute)
	assert.IsType(t, NoopVersionCache{}, c)
	assert.NoError(t, closeFn())
}

func TestConnect_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, closeFn := Connect(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	defer func() { _ = closeFn() }()

	require.IsType(t, &RedisVersionCache{}, c)
	require.NoError(t, c.Set(context.Background(), 9, 4))

	version, ok := c.Get(context.Background(), 9)
	require.True(t, ok)
	assert.Equal(t, 4, version)
}
