package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bar struct {
	Day   string  `json:"day"`
	Close float64 `json:"close"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisCacheFromClient(client, "test")
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	in := []bar{{Day: "2024-01-02", Close: 185.64}}
	require.NoError(t, mc.Set(ctx, "a", in, time.Minute))

	var out []bar
	require.NoError(t, mc.Get(ctx, "a", &out))
	assert.Equal(t, in, out)

	// Mutating the caller's slice must not leak into the cache.
	in[0].Close = 0
	require.NoError(t, mc.Get(ctx, "a", &out))
	assert.Equal(t, 185.64, out[0].Close)

	var missing []bar
	assert.True(t, errors.Is(mc.Get(ctx, "nope", &missing), ErrCacheMiss))
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	assert.True(t, errors.Is(mc.Get(ctx, "b", &s), ErrCacheMiss))
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	var s string
	assert.True(t, errors.Is(mc.Get(ctx, "k", &s), ErrCacheMiss))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "history:AAPL:10y", []bar{{Day: "d", Close: 1.5}}, time.Hour))
	assert.True(t, mr.Exists("test:history:AAPL:10y"))

	var out []bar
	require.NoError(t, rc.Get(ctx, "history:AAPL:10y", &out))
	assert.Equal(t, 1.5, out[0].Close)

	require.NoError(t, rc.Set(ctx, "history:MSFT:10y", "x", time.Hour))
	require.NoError(t, rc.DeleteByPattern(ctx, BuildPattern("history:")))
	ok, err := rc.Exists(ctx, "history:AAPL:10y", "history:MSFT:10y")
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := rc.TryLock(ctx, "warmup", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = rc.TryLock(ctx, "warmup", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, rc.Unlock(ctx, "warmup"))
}

func TestLayeredCachePromotesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemorySize(10))
	defer lc.Close()

	require.NoError(t, rc.Set(ctx, "k", bar{Day: "d", Close: 2}, time.Hour))

	var out bar
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, 2.0, out.Close)

	// Served from L1 once Redis no longer has it.
	mr.FlushAll()
	out = bar{}
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, 2.0, out.Close)
}

func TestLayeredCacheMemoryOnly(t *testing.T) {
	ctx := context.Background()
	lc := NewLayeredCache(nil)
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "k", bar{Close: 3}, time.Minute))
	var out bar
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, 3.0, out.Close)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.True(t, errors.Is(lc.Get(ctx, "k", &out), ErrCacheMiss))

	ok, err := lc.TryLock(ctx, "l", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "history:AAPL:10y", GenerateKeyWithParams("history", "AAPL", "10y"))
}

func TestRedisConfigOptions(t *testing.T) {
	cfg := defaultRedisConfig()
	for _, opt := range []RedisOption{
		WithRedisAddr("", 6380),
		WithRedisAuth("secret", 2),
		WithRedisPool(0, 4, 0),
		WithRedisPrefix("ps"),
	} {
		opt(&cfg)
	}
	assert.Equal(t, "localhost:6380", cfg.Addr())
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 4, cfg.MinIdleConns)
	assert.Equal(t, 30*time.Second, cfg.PoolTimeout)
	assert.Equal(t, "ps", cfg.Prefix)
}
