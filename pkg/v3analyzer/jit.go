package v3analyzer

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// DefaultJitWindow and DefaultJitThreshold are spec.md §4.2's defaults.
const (
	DefaultJitWindow    = 60 * time.Second
	DefaultJitThreshold = 0.8
)

// JitDetector maintains a sliding window of liquidity-change events per
// pool and emits a types.JitLiquidity signal when an add is matched by a
// same-tick remove of comparable magnitude within the window.
type JitDetector struct {
	mu         sync.Mutex
	pending    map[common.Address][]types.LiquidityEvent
	window     time.Duration
	threshold  float64
	tickSpacingK int32 // multiplier k for the "near current tick" test
}

// NewJitDetector builds a detector with the given window/threshold
// (defaults applied for zero values) and a k multiplier for the
// near-current-tick test.
func NewJitDetector(window time.Duration, threshold float64, tickSpacingK int32) *JitDetector {
	if window <= 0 {
		window = DefaultJitWindow
	}
	if threshold <= 0 {
		threshold = DefaultJitThreshold
	}
	if tickSpacingK <= 0 {
		tickSpacingK = 1
	}
	return &JitDetector{
		pending:      make(map[common.Address][]types.LiquidityEvent),
		window:       window,
		threshold:    threshold,
		tickSpacingK: tickSpacingK,
	}
}

// Observe records a liquidity-change event and returns a JitLiquidity
// signal if it completes a JIT add/remove pattern. currentTick and
// tickSpacing are used only for the IsNearCurrentTick flag.
func (j *JitDetector) Observe(pool common.Address, event types.LiquidityEvent, currentTick int32, tickSpacing int32) *types.JitLiquidity {
	j.mu.Lock()
	defer j.mu.Unlock()

	events := j.prune(j.pending[pool], event.TimestampMs)

	var result *types.JitLiquidity
	if event.Delta.Sign() < 0 {
		removeMag := new(big.Float).SetInt(new(big.Int).Abs(event.Delta))
		for i := len(events) - 1; i >= 0; i-- {
			cand := events[i]
			if cand.Delta.Sign() <= 0 || cand.Tick != event.Tick {
				continue
			}
			addMag := new(big.Float).SetInt(cand.Delta)
			threshold := new(big.Float).Mul(addMag, big.NewFloat(j.threshold))
			if removeMag.Cmp(threshold) < 0 {
				continue
			}

			addF, _ := addMag.Float64()
			removeF, _ := removeMag.Float64()
			nearOffset := event.Tick - currentTick
			if nearOffset < 0 {
				nearOffset = -nearOffset
			}
			result = &types.JitLiquidity{
				Pool:              pool,
				Tick:              event.Tick,
				AddAmount:         addF,
				RemoveAmount:      removeF,
				IsNearCurrentTick: nearOffset < tickSpacing*j.tickSpacingK,
				TimestampMs:       event.TimestampMs,
			}
			// Consume the matched add so it cannot pair with a later remove.
			events = append(events[:i], events[i+1:]...)
			break
		}
	}

	events = append(events, event)
	j.pending[pool] = events
	return result
}

// prune drops events older than the window relative to nowMs.
func (j *JitDetector) prune(events []types.LiquidityEvent, nowMs int64) []types.LiquidityEvent {
	cutoff := nowMs - j.window.Milliseconds()
	kept := events[:0:0]
	for _, e := range events {
		if e.TimestampMs >= cutoff {
			kept = append(kept, e)
		}
	}
	return kept
}
