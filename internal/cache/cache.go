// Package cache holds parsed crawl results for a bounded time.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 1000

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Config controls cache behaviour.
type Config struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a TTL cache keyed by string. When full, Set is a no-op rather
// than evicting live entries.
type Cache[V any] struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	entries *lru.Cache[string, entry[V]]
}

// New builds a Cache. A nil clock uses the system clock.
func New[V any](cfg Config, clock Clock) (*Cache[V], error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if clock == nil {
		clock = systemClock{}
	}
	entries, err := lru.New[string, entry[V]](cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{cfg: cfg, clock: clock, entries: entries}, nil
}

// Get returns the value for key if it is younger than the TTL. Expired
// entries are removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if !c.cfg.Enabled {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.expired(e, c.clock.Now()) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores v under key. Overwriting an existing key is always allowed.
func (c *Cache[V]) Set(key string, v V) {
	if !c.cfg.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.entries.Contains(key) && c.entries.Len() >= c.cfg.MaxSize {
		return
	}
	c.entries.Add(key, entry[V]{value: v, storedAt: c.clock.Now()})
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && c.expired(e, now) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

func (c *Cache[V]) expired(e entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) >= c.cfg.TTL
}
