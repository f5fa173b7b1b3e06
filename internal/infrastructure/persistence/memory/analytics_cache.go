// Package memory implements the in-process analytics cache and the
// metrics collector, plus in-memory graph fixtures for local mode
// and tests.
//
// Key components:
//   - AnalyticsCache: TTL + LRU memoization of graph computations
//     with singleflight collapse of concurrent identical misses
//   - MetricsCollector: atomic hit/miss/latency counters with
//     bounded snapshot history
package memory

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// CacheConfig holds analytics cache tuning parameters.
type CacheConfig struct {
	// Capacity is the maximum number of entries before LRU eviction.
	Capacity int

	// DefaultTTL is the entry lifetime when the caller passes ttl <= 0.
	DefaultTTL time.Duration

	// EnableSingleflight collapses concurrent identical misses into
	// one in-flight computation shared by all waiters.
	EnableSingleflight bool
}

// DefaultCacheConfig returns production defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity:           10000,
		DefaultTTL:         5 * time.Minute,
		EnableSingleflight: true,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cacheEntry is one memoized computation result.
type cacheEntry struct {
	key       analytics.CacheKey
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
	sizeBytes int64
}

// expired reports whether the entry is past its TTL at now.
func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// AnalyticsCache is an in-process TTL cache with LRU capacity eviction.
//
// Locking discipline: a single RWMutex guards the map and the LRU list.
// The workload is read-dominated and individual computations, not the
// lock, are the latency bottleneck. Computations never run under the
// lock: the miss path releases it, computes, then re-acquires to store.
type AnalyticsCache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element // key.String() -> *cacheEntry element
	lru     *list.List               // front = most recently used
	memory  int64
	closed  bool

	cfg    CacheConfig
	group  singleflight.Group
	logger *logger.Logger
}

// compile-time interface checks
var (
	_ analytics.Cache        = (*AnalyticsCache)(nil)
	_ analytics.CacheSampler = (*AnalyticsCache)(nil)
)

// NewAnalyticsCache creates the cache.
func NewAnalyticsCache(cfg CacheConfig, log *logger.Logger) *AnalyticsCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCacheConfig().Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultCacheConfig().DefaultTTL
	}
	if log == nil {
		log = logger.Default()
	}

	return &AnalyticsCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		cfg:     cfg,
		logger:  log.With(logger.Component("analytics_cache")),
	}
}

// GetOrCompute implements analytics.Cache.
//
// Read path: an unexpired entry is a hit and is moved to the LRU front.
// Miss path: the value is computed outside the lock (collapsed through
// singleflight when enabled), stored, and returned. Compute errors are
// never stored. If the cache is closed, the value is computed directly,
// bypassing the cache entirely.
func (c *AnalyticsCache) GetOrCompute(ctx context.Context, key analytics.CacheKey, ttl time.Duration, compute analytics.ComputeFunc) (interface{}, bool, error) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	keyStr := key.String()

	if value, ok := c.lookup(keyStr); ok {
		return value, true, nil
	}

	if c.isClosed() {
		c.logger.Warn("cache unavailable, computing directly", logger.CacheKey(keyStr))
		value, err := compute(ctx)
		return value, false, err
	}

	if !c.cfg.EnableSingleflight {
		value, err := compute(ctx)
		if err != nil {
			return nil, false, err
		}
		c.store(key, keyStr, value, ttl)
		return value, false, nil
	}

	value, err, _ := c.group.Do(keyStr, func() (interface{}, error) {
		// Another waiter may have already stored the value between
		// our lookup and the singleflight slot.
		if value, ok := c.lookup(keyStr); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, keyStr, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, false, nil
}

// Invalidate implements analytics.Cache.
func (c *AnalyticsCache) Invalidate(userIDs ...graph.UserID) int {
	if len(userIDs) == 0 {
		return 0
	}

	scope := make(map[graph.UserID]struct{}, len(userIDs))
	for _, id := range userIDs {
		scope[id] = struct{}{}
	}

	return c.invalidateIf(func(key analytics.CacheKey) bool {
		_, ok := scope[key.UserID]
		return ok
	})
}

// invalidateIf removes every entry whose key matches the predicate.
func (c *AnalyticsCache) invalidateIf(match func(analytics.CacheKey) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyStr, elem := range c.entries {
		entry := elem.Value.(*cacheEntry)
		if match(entry.key) {
			c.removeLocked(keyStr, elem)
			removed++
		}
	}
	return removed
}

// Sweep purges expired entries. Called by the periodic scheduler job;
// expired entries are also purged lazily on lookup.
func (c *AnalyticsCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyStr, elem := range c.entries {
		if elem.Value.(*cacheEntry).expired(now) {
			c.removeLocked(keyStr, elem)
			removed++
		}
	}
	return removed
}

// Stats implements analytics.CacheSampler.
func (c *AnalyticsCache) Stats() analytics.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return analytics.CacheStats{
		KeysCount:        len(c.entries),
		MemoryUsageBytes: c.memory,
	}
}

// Close marks the cache unavailable and drops all entries.
// Subsequent GetOrCompute calls bypass the cache.
func (c *AnalyticsCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.memory = 0
}

// lookup returns an unexpired entry and touches its LRU position.
// Expired entries are purged lazily here.
func (c *AnalyticsCache) lookup(keyStr string) (interface{}, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[keyStr]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if entry.expired(now) {
		c.removeLocked(keyStr, elem)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return entry.value, true
}

// store inserts the computed value, evicting as needed.
func (c *AnalyticsCache) store(key analytics.CacheKey, keyStr string, value interface{}, ttl time.Duration) {
	now := time.Now()
	entry := &cacheEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		sizeBytes: estimateSize(value),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if elem, ok := c.entries[keyStr]; ok {
		c.removeLocked(keyStr, elem)
	}

	c.entries[keyStr] = c.lru.PushFront(entry)
	c.memory += entry.sizeBytes

	c.evictLocked(now)
}

// evictLocked enforces capacity: expired entries go first, then
// least-recently-used valid entries (tie-break: lowest createdAt).
func (c *AnalyticsCache) evictLocked(now time.Time) {
	if len(c.entries) <= c.cfg.Capacity {
		return
	}

	for keyStr, elem := range c.entries {
		if len(c.entries) <= c.cfg.Capacity {
			return
		}
		if elem.Value.(*cacheEntry).expired(now) {
			c.removeLocked(keyStr, elem)
		}
	}

	// The list tail is the least recently used entry. Entries that were
	// never read keep insertion order there, so the earliest-created one
	// goes first among equally-recent entries.
	for len(c.entries) > c.cfg.Capacity {
		victim := c.lru.Back()
		if victim == nil {
			return
		}
		c.removeLocked(victim.Value.(*cacheEntry).key.String(), victim)
	}
}

// removeLocked drops an entry from both index and LRU list.
func (c *AnalyticsCache) removeLocked(keyStr string, elem *list.Element) {
	delete(c.entries, keyStr)
	c.lru.Remove(elem)
	c.memory -= elem.Value.(*cacheEntry).sizeBytes
}

func (c *AnalyticsCache) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// estimateSize approximates the memory footprint of a cached value
// by its JSON encoding length. Estimation, not accounting: the number
// feeds the dashboard, nothing allocates against it.
func estimateSize(value interface{}) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
