package v3analyzer

import (
	"math/big"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// DefaultDepthOffsetsPct are the target percent offsets from spec.md §4.2.
var DefaultDepthOffsetsPct = []float64{0.5, 1, 2, 5}

// DepthLevel is the buy/sell capacity at one percent-offset level.
type DepthLevel struct {
	OffsetPct     float64
	BuyCapacity   *big.Int // token0 capacity to move price down by OffsetPct (sell token0 / zeroForOne)
	SellCapacity  *big.Int // token1 capacity to move price up by OffsetPct (sell token1 / oneForZero)
	TicksTraversed int
}

// DepthProfile is the result of walking both directions for every
// configured offset, plus an overall depth_score in [0,1].
type DepthProfile struct {
	Levels    []DepthLevel
	DepthScore float64
}

// ComputeDepthProfile implements spec.md §4.2's depth-profile computation:
// for each target offset, walk ticks in each direction until the
// accumulated price change matches the offset, recording capacity and
// ticks traversed.
func ComputeDepthProfile(sqrtPriceX96, liquidity *big.Int, currentTick int32, ticks []types.Tick, offsetsPct []float64) DepthProfile {
	if len(offsetsPct) == 0 {
		offsetsPct = DefaultDepthOffsetsPct
	}

	levels := make([]DepthLevel, 0, len(offsetsPct))
	var totalScore float64

	for _, offset := range offsetsPct {
		targetDown := targetSqrtPrice(sqrtPriceX96, offset, false)
		targetUp := targetSqrtPrice(sqrtPriceX96, offset, true)

		buyCap, buyTicks := walkToTarget(sqrtPriceX96, liquidity, ticks, currentTick, targetDown, true)
		sellCap, sellTicks := walkToTarget(sqrtPriceX96, liquidity, ticks, currentTick, targetUp, false)

		levels = append(levels, DepthLevel{
			OffsetPct:      offset,
			BuyCapacity:    buyCap,
			SellCapacity:   sellCap,
			TicksTraversed: buyTicks + sellTicks,
		})

		// Levels with non-zero capacity in both directions contribute to
		// the depth score, each with the same weight.
		if buyCap.Sign() > 0 && sellCap.Sign() > 0 {
			totalScore += 1
		}
	}

	score := 0.0
	if len(offsetsPct) > 0 {
		score = totalScore / float64(len(offsetsPct))
	}

	return DepthProfile{Levels: levels, DepthScore: score}
}

// targetSqrtPrice returns the sqrtPriceX96 corresponding to a ±offsetPct
// move in price from current, via big.Float's Sqrt (available since the
// sqrtPrice/price relationship is itself a square root).
func targetSqrtPrice(sqrtPriceX96 *big.Int, offsetPct float64, up bool) *big.Int {
	factor := 1 + offsetPct/100
	if !up {
		factor = 1 - offsetPct/100
		if factor < 0 {
			factor = 0
		}
	}
	sqrtFactor := new(big.Float).SetPrec(256).Sqrt(big.NewFloat(factor))
	cur := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	target := new(big.Float).SetPrec(256).Mul(cur, sqrtFactor)
	out, _ := target.Int(nil)
	return out
}

// walkToTarget walks the tick list in the direction implied by zeroForOne
// until curSqrt reaches target (or ticks/crossings are exhausted),
// returning the cumulative input capacity and ticks traversed.
func walkToTarget(sqrtPriceX96, liquidity *big.Int, ticks []types.Tick, currentTick int32, target *big.Int, zeroForOne bool) (*big.Int, int) {
	sorted := sortedForDirection(ticks, currentTick, zeroForOne)
	curSqrt := new(big.Int).Set(sqrtPriceX96)
	curLiquidity := new(big.Int).Set(liquidity)
	capacity := big.NewInt(0)
	traversed := 0

	for traversed < maxCrossings {
		reached := false
		if zeroForOne {
			reached = curSqrt.Cmp(target) <= 0
		} else {
			reached = curSqrt.Cmp(target) >= 0
		}
		if reached {
			break
		}

		next, ok := nextTick(sorted, curLiquidity, zeroForOne)
		if !ok {
			capacity.Add(capacity, consumeToTargetAtConstantLiquidity(curSqrt, target, curLiquidity, zeroForOne))
			break
		}

		nextSqrt := bigmath.TickToSqrtPriceX96(int(next.Index))
		var overshoots bool
		if zeroForOne {
			overshoots = nextSqrt.Cmp(target) <= 0
		} else {
			overshoots = nextSqrt.Cmp(target) >= 0
		}

		if overshoots {
			capacity.Add(capacity, consumeToTargetAtConstantLiquidity(curSqrt, target, curLiquidity, zeroForOne))
			break
		}

		if zeroForOne {
			capacity.Add(capacity, amount0Delta(nextSqrt, curSqrt, curLiquidity))
			curLiquidity = new(big.Int).Sub(curLiquidity, next.LiquidityNet)
		} else {
			capacity.Add(capacity, amount1Delta(curSqrt, nextSqrt, curLiquidity))
			curLiquidity = new(big.Int).Add(curLiquidity, next.LiquidityNet)
		}
		if curLiquidity.Sign() < 0 {
			curLiquidity = big.NewInt(0)
		}
		curSqrt = nextSqrt
		sorted = sorted[1:]
		traversed++
	}

	return capacity, traversed
}

func consumeToTargetAtConstantLiquidity(curSqrt, target, liquidity *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		return amount0Delta(target, curSqrt, liquidity)
	}
	return amount1Delta(curSqrt, target, liquidity)
}
