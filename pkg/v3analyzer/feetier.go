package v3analyzer

import (
	"math/big"
	"sort"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// TierQuote is one V3 fee tier's current price/liquidity for a pair, the
// input to fee-tier arbitrage detection and optimal-tier routing.
// SqrtPriceX96/Liquidity/Tick/Ticks and the Depth/Simulated fields carry
// the raw state a sizing pass needs to run ComputeDepthProfile/
// SimulateSwap against this tier; they're left zero when only the
// closed-form routing in SelectOptimalTier/DetectFeeTierArbitrage applies,
// e.g. in tests that never fetch a tick window.
type TierQuote struct {
	FeeTier      uint32
	Price        float64 // decimal-normalized
	LiquidityUSD float64

	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	Ticks        []types.Tick

	DepthScore         float64
	SimulatedImpactPct float64
}

// FeeTierOpportunity is the result of comparing a pair's price across its
// V3 fee tiers, per spec.md §4.2's fee-tier-arbitrage algorithm.
type FeeTierOpportunity struct {
	BuyTier   uint32
	SellTier  uint32
	SpreadPct float64
}

// DefaultFeeTierSpreadThresholdPct is the spec's default minimum spread to
// emit a fee-tier opportunity.
const DefaultFeeTierSpreadThresholdPct = 0.1

// feeFraction converts a hundredths-of-a-bip fee tier (500, 3000, 10000,
// ...) into a fraction (0.0005, 0.003, 0.01, ...).
func feeFraction(tier uint32) float64 {
	return float64(tier) / 1_000_000
}

// DetectFeeTierArbitrage sorts quotes by raw price, buys at the lowest
// tier and sells at the highest, and emits an opportunity if the post-fee
// spread clears thresholdPct (DefaultFeeTierSpreadThresholdPct if <= 0).
func DetectFeeTierArbitrage(quotes []TierQuote, thresholdPct float64) (FeeTierOpportunity, bool) {
	if thresholdPct <= 0 {
		thresholdPct = DefaultFeeTierSpreadThresholdPct
	}
	if len(quotes) < 2 {
		return FeeTierOpportunity{}, false
	}

	sorted := make([]TierQuote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	low := sorted[0]
	high := sorted[len(sorted)-1]

	effectiveBuy := low.Price * (1 + feeFraction(low.FeeTier))
	effectiveSell := high.Price * (1 - feeFraction(high.FeeTier))
	if effectiveBuy <= 0 {
		return FeeTierOpportunity{}, false
	}
	spreadPct := (effectiveSell - effectiveBuy) / effectiveBuy * 100

	if spreadPct < thresholdPct {
		return FeeTierOpportunity{}, false
	}
	return FeeTierOpportunity{BuyTier: low.FeeTier, SellTier: high.FeeTier, SpreadPct: spreadPct}, true
}

// TierRoute is the chosen fee tier for a target trade size and its
// estimated effective price.
type TierRoute struct {
	FeeTier        uint32
	EffectivePrice float64
	PriceImpactPct float64
}

// SelectOptimalTier implements spec.md §4.2's optimal-tier routing: skip
// tiers with insufficient liquidity for the trade size (the ≤2% pool
// utilization rule: liquidity_usd >= trade_size_usd * 50), estimate price
// impact as (trade_size_usd/liquidity_usd)*50 percent, and select the tier
// minimizing effective price when buying, maximizing when selling.
func SelectOptimalTier(quotes []TierQuote, tradeSizeUSD float64, buying bool) (TierRoute, bool) {
	var best TierRoute
	found := false

	for _, q := range quotes {
		if q.LiquidityUSD < tradeSizeUSD*50 {
			continue
		}
		impactPct := (tradeSizeUSD / q.LiquidityUSD) * 50

		var effective float64
		if buying {
			effective = q.Price * (1 + feeFraction(q.FeeTier)) * (1 + impactPct/100)
		} else {
			effective = q.Price * (1 - feeFraction(q.FeeTier)) * (1 - impactPct/100)
		}

		candidate := TierRoute{FeeTier: q.FeeTier, EffectivePrice: effective, PriceImpactPct: impactPct}
		if !found {
			best, found = candidate, true
			continue
		}
		if buying && candidate.EffectivePrice < best.EffectivePrice {
			best = candidate
		}
		if !buying && candidate.EffectivePrice > best.EffectivePrice {
			best = candidate
		}
	}
	return best, found
}
