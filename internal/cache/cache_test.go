package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, cfg Config) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New[string](cfg, clock)
	require.NoError(t, err)
	return c, clock
}

func TestRoundTripAndExpiry(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, Config{Enabled: true, TTL: time.Minute, MaxSize: 10})
	key := "imdb:https://example.com/title/1"
	c.Set(key, "Dune")

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "Dune", got)

	clock.Advance(time.Minute)
	_, ok = c.Get(key)
	require.False(t, ok)
	require.Zero(t, c.Len(), "expired entry is evicted on read")
}

func TestDisabledCacheNeverStores(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Config{Enabled: false, TTL: time.Hour, MaxSize: 10})
	c.Set("k", "v")
	_, ok := c.Get("k")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestSetIsNoopWhenFull(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Config{Enabled: true, TTL: time.Hour, MaxSize: 2})
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	_, ok := c.Get("c")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)

	c.Set("a", "updated")
	got, _ := c.Get("a")
	require.Equal(t, "updated", got)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, Config{Enabled: true, TTL: 10 * time.Minute, MaxSize: 10})
	c.Set("old-1", "x")
	c.Set("old-2", "y")
	clock.Advance(6 * time.Minute)
	c.Set("fresh", "z")
	clock.Advance(5 * time.Minute)

	require.Equal(t, 2, c.Sweep())
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	require.True(t, ok)
}

func TestClear(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, Config{Enabled: true, TTL: time.Hour})
	c.Set("a", "1")
	c.Clear()
	require.Zero(t, c.Len())
}
