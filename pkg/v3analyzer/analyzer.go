package v3analyzer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// TickFetcher is the seam the analyzer uses to pull a fresh tick window
// from the chain, batching per-tick storage reads via multicall in groups
// of 50 as spec.md §4.2 requires. pkg/contractclient implements this.
type TickFetcher interface {
	FetchTicks(ctx context.Context, pool common.Address, currentTick int32, tickSpacing int32, window int32) ([]types.Tick, error)
}

// Analyzer owns one chain's V3 math state: the tick cache, tick-crossing
// tracker, and JIT detector. One Analyzer per chain worker, matching the
// "instantiate per chain worker" ownership design note.
type Analyzer struct {
	fetcher   TickFetcher
	cache     *TickCache
	crossing  *TickCrossingTracker
	jit       *JitDetector
	tickWindow int32
}

// Config bundles an Analyzer's tunables.
type Config struct {
	CacheMaxAge          time.Duration
	TickCrossingThreshold int32
	JitWindow            time.Duration
	JitThreshold         float64
	JitTickSpacingK      int32
	TickWindow           int32
}

// NewAnalyzer builds an Analyzer backed by fetcher.
func NewAnalyzer(fetcher TickFetcher, cfg Config) *Analyzer {
	if cfg.TickWindow <= 0 {
		cfg.TickWindow = 10
	}
	return &Analyzer{
		fetcher:    fetcher,
		cache:      NewTickCache(cfg.CacheMaxAge),
		crossing:   NewTickCrossingTracker(cfg.TickCrossingThreshold),
		jit:        NewJitDetector(cfg.JitWindow, cfg.JitThreshold, cfg.JitTickSpacingK),
		tickWindow: cfg.TickWindow,
	}
}

// Ticks returns the cached or freshly fetched tick window around
// currentTick for pool, per spec.md §4.2: a cache miss or stale entry
// triggers a refetch; a fetch failure returns the stale cached window if
// there is one, else nil, rather than failing the surrounding search.
func (a *Analyzer) Ticks(ctx context.Context, pool common.Address, currentTick, tickSpacing int32) []types.Tick {
	entry, fresh, found := a.cache.Get(pool, currentTick, tickSpacing)
	if found && fresh {
		return entry.Ticks
	}

	fetched, err := a.fetcher.FetchTicks(ctx, pool, currentTick, tickSpacing, a.tickWindow)
	if err != nil {
		if found {
			return entry.Ticks
		}
		return nil
	}
	a.cache.Put(pool, currentTick, tickSpacing, fetched, time.Now().UnixMilli())
	return fetched
}

// EvictStaleCache runs the cache's periodic eviction pass; intended to be
// called once per block by the owning chain worker.
func (a *Analyzer) EvictStaleCache() {
	a.cache.Evict(time.Now())
}

// ObserveTick feeds one (pool, tick, liquidity) observation into the
// tick-crossing tracker.
func (a *Analyzer) ObserveTick(pool common.Address, tick int32, liquidity *big.Int, nowMs int64) *types.TickCrossing {
	return a.crossing.Observe(pool, tick, liquidity, nowMs)
}

// ObserveLiquidityEvent feeds one liquidity add/remove event into the JIT
// detector.
func (a *Analyzer) ObserveLiquidityEvent(pool common.Address, event types.LiquidityEvent, currentTick, tickSpacing int32) *types.JitLiquidity {
	return a.jit.Observe(pool, event, currentTick, tickSpacing)
}
