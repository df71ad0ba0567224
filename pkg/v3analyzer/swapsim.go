package v3analyzer

import (
	"math/big"
	"sort"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// q96 is 2^96, the sqrtPriceX96 fixed-point scale.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// maxCrossings is the safety limit from spec.md §4.2: exceeding it
// truncates the swap (observable via SwapResult.TicksCrossed hitting it).
const maxCrossings = 10

// SwapResult is the output of a cross-tick swap simulation.
type SwapResult struct {
	AmountOut      *big.Int
	PriceImpactPct float64
	TicksCrossed   int
	EffectivePrice float64 // amount_out / amount_in, decimal-normalized by caller
}

// amount0Delta computes the exact token0 needed to move the price between
// sqrtLow and sqrtHigh (both sqrtPriceX96, sqrtLow <= sqrtHigh) at constant
// liquidity L: L * Q96 * (sqrtHigh - sqrtLow) / (sqrtLow * sqrtHigh).
func amount0Delta(sqrtLow, sqrtHigh, liquidity *big.Int) *big.Int {
	denom := new(big.Int).Mul(sqrtLow, sqrtHigh)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	diff := new(big.Int).Sub(sqrtHigh, sqrtLow)
	num := new(big.Int).Mul(liquidity, diff)
	num.Mul(num, q96)
	return new(big.Int).Div(num, denom)
}

// amount1Delta computes the exact token1 output/input to move the price
// between sqrtLow and sqrtHigh at constant liquidity L: L * (sqrtHigh -
// sqrtLow) / Q96. This is the linear "dual" the design notes call out:
// ΔsqrtP = Δy / L for the 1->0 direction.
func amount1Delta(sqrtLow, sqrtHigh, liquidity *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtHigh, sqrtLow)
	num := new(big.Int).Mul(liquidity, diff)
	return new(big.Int).Div(num, q96)
}

// nextSqrtPriceFromAmount0 solves amount0Delta(sqrtNext, sqrtCur, L) ==
// remaining for sqrtNext (price decreasing, zeroForOne): the exact
// ΔsqrtP = Δx · sqrtP_cur · sqrtP_tgt / liquidity formula from spec.md §9,
// rearranged to solve for the unknown target price given a fixed input
// amount instead of a fixed target tick.
func nextSqrtPriceFromAmount0(sqrtCur, liquidity, remaining *big.Int) *big.Int {
	if remaining.Sign() <= 0 {
		return new(big.Int).Set(sqrtCur)
	}
	numerator := new(big.Int).Mul(liquidity, q96)
	numerator.Mul(numerator, sqrtCur)
	denominator := new(big.Int).Mul(remaining, sqrtCur)
	denominator.Add(denominator, new(big.Int).Mul(liquidity, q96))
	if denominator.Sign() == 0 {
		return new(big.Int).Set(sqrtCur)
	}
	return new(big.Int).Div(numerator, denominator)
}

// nextSqrtPriceFromAmount1 solves amount1Delta(sqrtCur, sqrtNext, L) ==
// remaining for sqrtNext (price increasing, oneForZero): sqrtNext = sqrtCur
// + remaining*Q96/L, the dual of the exact formula above.
func nextSqrtPriceFromAmount1(sqrtCur, liquidity, remaining *big.Int) *big.Int {
	if liquidity.Sign() == 0 {
		return new(big.Int).Set(sqrtCur)
	}
	delta := new(big.Int).Mul(remaining, q96)
	delta.Div(delta, liquidity)
	return new(big.Int).Add(sqrtCur, delta)
}

// SimulateSwap implements calculate_swap_output_with_ticks (spec.md §4.2):
// deduct the swap fee up front, then cross ticks in the direction of
// travel until amountIn is exhausted, a tick-less edge is hit, or the
// 10-crossing safety limit is reached.
func SimulateSwap(amountIn, sqrtPriceX96, liquidity *big.Int, currentTick int32, ticks []types.Tick, feePPM uint32, zeroForOne bool) SwapResult {
	remaining := deductFee(amountIn, feePPM)
	sorted := sortedForDirection(ticks, currentTick, zeroForOne)

	curSqrt := new(big.Int).Set(sqrtPriceX96)
	curLiquidity := new(big.Int).Set(liquidity)
	amountOut := big.NewInt(0)
	crossings := 0

	for remaining.Sign() > 0 && crossings < maxCrossings {
		next, ok := nextTick(sorted, curLiquidity, zeroForOne)
		if !ok {
			// No next tick: consume the rest at current liquidity.
			out := consumeRemainingAtConstantLiquidity(remaining, curSqrt, curLiquidity, zeroForOne)
			amountOut.Add(amountOut, out)
			remaining = big.NewInt(0)
			break
		}

		targetSqrt := bigmath.TickToSqrtPriceX96(int(next.Index))
		var needed *big.Int
		var out *big.Int
		var crossedFully bool

		if zeroForOne {
			needed = amount0Delta(targetSqrt, curSqrt, curLiquidity)
			if remaining.Cmp(needed) >= 0 {
				out = amount1Delta(targetSqrt, curSqrt, curLiquidity)
				remaining.Sub(remaining, needed)
				curSqrt = targetSqrt
				crossedFully = true
			} else {
				nextSqrt := nextSqrtPriceFromAmount0(curSqrt, curLiquidity, remaining)
				out = amount1Delta(nextSqrt, curSqrt, curLiquidity)
				curSqrt = nextSqrt
				remaining = big.NewInt(0)
			}
		} else {
			needed = amount1Delta(curSqrt, targetSqrt, curLiquidity)
			if remaining.Cmp(needed) >= 0 {
				out = amount0Delta(curSqrt, targetSqrt, curLiquidity)
				remaining.Sub(remaining, needed)
				curSqrt = targetSqrt
				crossedFully = true
			} else {
				nextSqrt := nextSqrtPriceFromAmount1(curSqrt, curLiquidity, remaining)
				out = amount0Delta(curSqrt, nextSqrt, curLiquidity)
				curSqrt = nextSqrt
				remaining = big.NewInt(0)
			}
		}

		amountOut.Add(amountOut, out)

		if crossedFully {
			if zeroForOne {
				curLiquidity = new(big.Int).Sub(curLiquidity, next.LiquidityNet)
			} else {
				curLiquidity = new(big.Int).Add(curLiquidity, next.LiquidityNet)
			}
			if curLiquidity.Sign() < 0 {
				curLiquidity = big.NewInt(0)
			}
			sorted = sorted[1:]
			crossings++
		}
	}

	impact := priceImpactPct(sqrtPriceX96, curSqrt)
	effective := effectivePrice(amountIn, amountOut)

	return SwapResult{
		AmountOut:      amountOut,
		PriceImpactPct: impact,
		TicksCrossed:   crossings,
		EffectivePrice: effective,
	}
}

func deductFee(amountIn *big.Int, feePPM uint32) *big.Int {
	// remaining = amount_in * (1_000_000 - fee) / 1_000_000
	oneMinusFee := big.NewInt(1_000_000 - int64(feePPM))
	out := new(big.Int).Mul(amountIn, oneMinusFee)
	return out.Div(out, big.NewInt(1_000_000))
}

// sortedForDirection returns only the initialized ticks ahead of
// currentTick in the direction of travel, sorted so the nearest tick is
// first: descending index for zeroForOne (price falling), ascending
// otherwise.
func sortedForDirection(ticks []types.Tick, currentTick int32, zeroForOne bool) []types.Tick {
	var relevant []types.Tick
	for _, t := range ticks {
		if !t.Initialized {
			continue
		}
		if zeroForOne && t.Index < currentTick {
			relevant = append(relevant, t)
		} else if !zeroForOne && t.Index > currentTick {
			relevant = append(relevant, t)
		}
	}
	sort.Slice(relevant, func(i, j int) bool {
		if zeroForOne {
			return relevant[i].Index > relevant[j].Index
		}
		return relevant[i].Index < relevant[j].Index
	})
	return relevant
}

func nextTick(sorted []types.Tick, _ *big.Int, _ bool) (types.Tick, bool) {
	if len(sorted) == 0 {
		return types.Tick{}, false
	}
	return sorted[0], true
}

func consumeRemainingAtConstantLiquidity(remaining, curSqrt, liquidity *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		nextSqrt := nextSqrtPriceFromAmount0(curSqrt, liquidity, remaining)
		return amount1Delta(nextSqrt, curSqrt, liquidity)
	}
	nextSqrt := nextSqrtPriceFromAmount1(curSqrt, liquidity, remaining)
	return amount0Delta(curSqrt, nextSqrt, liquidity)
}

func priceImpactPct(startSqrt, endSqrt *big.Int) float64 {
	if startSqrt.Sign() == 0 {
		return 0
	}
	startF := new(big.Float).SetInt(startSqrt)
	endF := new(big.Float).SetInt(endSqrt)
	diff := new(big.Float).Sub(startF, endF)
	ratio := new(big.Float).Quo(diff, startF)
	f, _ := ratio.Float64()
	if f < 0 {
		f = -f
	}
	return f * 100
}

func effectivePrice(amountIn, amountOut *big.Int) float64 {
	if amountIn == nil || amountIn.Sign() == 0 {
		return 0
	}
	inF := new(big.Float).SetInt(amountIn)
	outF := new(big.Float).SetInt(amountOut)
	q := new(big.Float).Quo(outF, inF)
	f, _ := q.Float64()
	return f
}
