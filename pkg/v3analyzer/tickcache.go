// Package v3analyzer implements the concentrated-liquidity math layer: tick
// fetch/caching, cross-tick swap simulation, fee-tier arbitrage, optimal-
// tier routing, tick-crossing tracking, JIT-liquidity detection, and depth
// profiling. All reserve/liquidity/sqrtPriceX96 math is big.Int end to end;
// float64 only appears at the final price/USD display boundary.
package v3analyzer

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

const (
	// DefaultCacheMaxAge is the tick cache TTL from spec.md §4.2.
	DefaultCacheMaxAge = 30 * time.Second
	// cacheEvictAge is the hard-evict age (2x TTL) from the data model.
	cacheEvictAge = 2 * DefaultCacheMaxAge
)

type tickCacheKey struct {
	pool        common.Address
	tickBucket  int32
}

// TickCache caches tick windows keyed by (pool, current_tick_bucket) for
// DefaultCacheMaxAge, evicting entries older than twice that. It is the one
// shared-mutable structure the V3 analyzer owns per chain worker, guarded
// by a single RWMutex: Get takes the read lock, Put and Evict the write
// lock.
type TickCache struct {
	mu      sync.RWMutex
	entries map[tickCacheKey]types.TickCacheEntry
	maxAge  time.Duration
}

// NewTickCache builds a cache with the given TTL (DefaultCacheMaxAge if
// maxAge <= 0).
func NewTickCache(maxAge time.Duration) *TickCache {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &TickCache{
		entries: make(map[tickCacheKey]types.TickCacheEntry),
		maxAge:  maxAge,
	}
}

// tickBucket aligns a current tick to a coarse bucket so nearby ticks in
// the same pool share a cache entry rather than invalidating on every
// single-tick price wiggle.
func tickBucket(currentTick int32, tickSpacing int32) int32 {
	if tickSpacing <= 0 {
		tickSpacing = 1
	}
	return currentTick / tickSpacing
}

// Get returns the cached tick window for (pool, currentTick), and whether
// it is still fresh (within maxAge). A stale-but-not-evicted entry is
// returned with fresh=false so a caller can decide to refetch.
func (c *TickCache) Get(pool common.Address, currentTick int32, tickSpacing int32) (entry types.TickCacheEntry, fresh bool, found bool) {
	key := tickCacheKey{pool: pool, tickBucket: tickBucket(currentTick, tickSpacing)}

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found = c.entries[key]
	if !found {
		return types.TickCacheEntry{}, false, false
	}
	age := time.Since(time.UnixMilli(entry.PopulatedAt))
	return entry, age <= c.maxAge, true
}

// Put stores a freshly fetched tick window, sorted by index ascending per
// the data model's cache invariant.
func (c *TickCache) Put(pool common.Address, currentTick int32, tickSpacing int32, ticks []types.Tick, nowMs int64) {
	types.SortTicks(ticks)
	key := tickCacheKey{pool: pool, tickBucket: tickBucket(currentTick, tickSpacing)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = types.TickCacheEntry{Ticks: ticks, PopulatedAt: nowMs}
}

// Evict removes entries older than 2x the TTL. Intended to be called
// periodically (e.g. once per block) by the owning chain worker.
func (c *TickCache) Evict(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.Sub(time.UnixMilli(entry.PopulatedAt)) > cacheEvictAge {
			delete(c.entries, key)
		}
	}
}
