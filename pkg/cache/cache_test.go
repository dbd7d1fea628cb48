package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string    `json:"symbol"`
	Scores []float64 `json:"scores"`
}

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	mc := NewMemoryCache(opts...)
	clock := &fakeClock{t: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	mc.now = clock.now
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clock
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	in := payload{Symbol: "SPY", Scores: []float64{1.5, 99}}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, in, out)

	ok, err := mc.Exists(ctx, "missing", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mc.Delete(ctx, "k"))
	assert.ErrorIs(t, mc.Get(ctx, "k", &out), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "k", 42, time.Minute))
	clock.t = clock.t.Add(2 * time.Minute)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	clock.t = clock.t.Add(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	clock.t = clock.t.Add(time.Second)

	require.NoError(t, mc.Set(ctx, "c", 3, 0))
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_Lock(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	ok, err := mc.TryLock(ctx, "run:SPY", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "run:SPY", time.Minute)
	assert.False(t, ok)

	clock.t = clock.t.Add(2 * time.Minute)
	ok, _ = mc.TryLock(ctx, "run:SPY", time.Minute)
	assert.True(t, ok)

	require.NoError(t, mc.Unlock(ctx, "run:SPY"))
	ok, _ = mc.TryLock(ctx, "run:SPY", time.Minute)
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Symbol: "QQQ"}, nil
	}

	v, hit, err := GetOrLoad(ctx, mc, "q", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "QQQ", v.Symbol)

	v, hit, err = GetOrLoad(ctx, mc, "q", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "QQQ", v.Symbol)
	assert.Equal(t, 1, calls)
}

func TestGetOrLoad_NilCacheAndLoadError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	_, hit, err := GetOrLoad(ctx, nil, "x", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.False(t, hit)
	assert.ErrorIs(t, err, boom)

	v, _, err := GetOrLoad(ctx, nil, "x", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRedisConfigOptions(t *testing.T) {
	cfg := defaultRedisConfig()
	WithRedisEndpoint("redis:6380", "secret", 3)(cfg)
	WithRedisPool(20, 4)(cfg)
	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Equal(t, 4, cfg.MinIdleConns)
	assert.Equal(t, "regimelab", cfg.Prefix)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "report:SPY:2020-01-01", Key("report", "SPY", "2020-01-01"))
	assert.Equal(t, "run:7", Key("run", 7))
	assert.Equal(t, "report", Key("report"))
	assert.Len(t, HashKey("abc"), 16)
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
}
