// Package freshness provides a TTL cache for aggregate market payloads. Entries
// are replaced wholesale and evicted lazily on lookup once older than the TTL.
package freshness

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/metric"
	"github.com/zeromicro/go-zero/core/syncx"

	"bitfrost-api/pkg/market"
)

const namespace = "bitfrost"

var (
	lookupTotal = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: namespace,
		Subsystem: "freshness",
		Name:      "lookup_total",
		Help:      "freshness cache lookups by result",
		Labels:    []string{"cache", "result"},
	})
	entriesGauge = metric.NewGaugeVec(&metric.GaugeVecOpts{
		Namespace: namespace,
		Subsystem: "freshness",
		Name:      "entries",
		Help:      "entries currently held per freshness cache",
		Labels:    []string{"cache"},
	})
)

// Entry is one cached payload. It is never mutated after Set.
type Entry[T any] struct {
	Data         T
	CreatedAt    time.Time
	Source       market.SourceKind
	ErrorMessage string
}

// Age reports how old the entry is at now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Option tunes a Cache.
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock injects the time source; tests use it to step across the TTL boundary.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// Cache maps keys to entries with a per-instance TTL. It has no size bound.
type Cache[T any] struct {
	name   string
	ttl    time.Duration
	now    func() time.Time
	flight syncx.SingleFlight

	mu      sync.Mutex
	entries map[string]Entry[T]
}

// New constructs a cache. name labels its metrics.
func New[T any](name string, ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		now:     o.clock,
		flight:  syncx.NewSingleFlight(),
		entries: make(map[string]Entry[T]),
	}
}

// Name returns the metrics label of the cache.
func (c *Cache[T]) Name() string { return c.name }

// TTL returns the configured time-to-live.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Get returns the entry for key if it is no older than the TTL. A stale entry is
// evicted under the same lock, so later calls miss until the next Set.
func (c *Cache[T]) Get(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		lookupTotal.Inc(c.name, "miss")
		return Entry[T]{}, false
	}
	if c.now().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		entriesGauge.Set(float64(len(c.entries)), c.name)
		lookupTotal.Inc(c.name, "evict")
		return Entry[T]{}, false
	}
	lookupTotal.Inc(c.name, "hit")
	return entry, true
}

// Set stores entry under key, replacing any previous value. A zero CreatedAt is
// stamped with the cache clock.
func (c *Cache[T]) Set(key string, entry Entry[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	c.entries[key] = entry
	entriesGauge.Set(float64(len(c.entries)), c.name)
}

// Delete drops key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	entriesGauge.Set(float64(len(c.entries)), c.name)
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load returns the fresh entry for key or runs fn to produce one. Concurrent
// callers for the same key share a single fn invocation. Errors are not cached.
func (c *Cache[T]) Load(ctx context.Context, key string, fn func(ctx context.Context) (Entry[T], error)) (Entry[T], error) {
	if entry, ok := c.Get(key); ok {
		return entry, nil
	}
	val, err := c.flight.Do(key, func() (any, error) {
		if entry, ok := c.Get(key); ok {
			return entry, nil
		}
		entry, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = c.now()
		}
		c.Set(key, entry)
		return entry, nil
	})
	if err != nil {
		return Entry[T]{}, err
	}
	return val.(Entry[T]), nil
}
