package v3analyzer

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// DefaultTickCrossingThreshold is the default |Δticks| floor to emit a
// TickCrossing event, per spec.md §4.2.
const DefaultTickCrossingThreshold = 10

type lastObservation struct {
	tick        int32
	liquidity   *big.Int
	observedAt  int64
}

// TickCrossingTracker remembers the last observed (tick, liquidity) per
// pool and emits a types.TickCrossing when the tick moves by at least the
// configured threshold between two observations.
type TickCrossingTracker struct {
	mu        sync.Mutex
	last      map[common.Address]lastObservation
	threshold int32
}

// NewTickCrossingTracker builds a tracker with the given threshold
// (DefaultTickCrossingThreshold if <= 0).
func NewTickCrossingTracker(threshold int32) *TickCrossingTracker {
	if threshold <= 0 {
		threshold = DefaultTickCrossingThreshold
	}
	return &TickCrossingTracker{last: make(map[common.Address]lastObservation), threshold: threshold}
}

// Observe records a new (tick, liquidity) observation for pool and returns
// a TickCrossing event if the move since the last observation is at or
// beyond the threshold.
func (t *TickCrossingTracker) Observe(pool common.Address, tick int32, liquidity *big.Int, nowMs int64) *types.TickCrossing {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[pool]
	t.last[pool] = lastObservation{tick: tick, liquidity: liquidity, observedAt: nowMs}
	if !ok {
		return nil
	}

	delta := tick - prev.tick
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	if absDelta < t.threshold {
		return nil
	}

	direction := "up"
	if delta < 0 {
		direction = "down"
	}

	priceBefore := bigmath.SqrtPriceToPrice(bigmath.TickToSqrtPriceX96(int(prev.tick)))
	priceAfter := bigmath.SqrtPriceToPrice(bigmath.TickToSqrtPriceX96(int(tick)))
	changePct := priceChangePct(priceBefore, priceAfter)

	return &types.TickCrossing{
		Pool:           pool,
		FromTick:       prev.tick,
		ToTick:         tick,
		TicksCrossed:   absDelta,
		Direction:      direction,
		PriceChangePct: changePct,
		TimestampMs:    nowMs,
	}
}

func priceChangePct(before, after *big.Float) float64 {
	if before.Sign() == 0 {
		return 0
	}
	diff := new(big.Float).Sub(after, before)
	ratio := new(big.Float).Quo(diff, before)
	f, _ := ratio.Float64()
	return f * 100
}
