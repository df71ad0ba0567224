package detector

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/v3analyzer"
)

// DefaultV3TradeSizeUSD is the reference trade size SelectOptimalTier and
// SimulateSwap size their routing/impact estimates against, matching the
// fixed reference trade size the cross-chain detector uses (the cross-dex
// detector sizes its trades by grid search instead).
const DefaultV3TradeSizeUSD = 10000

// DefaultMaxSimulatedImpactPct bounds how much realized price impact (from
// v3analyzer.SimulateSwap, when a tick window was fetched for a tier) an
// opportunity's chosen tiers may show before it's discarded as
// unexecutable at TradeSizeUSD.
const DefaultMaxSimulatedImpactPct = 5.0

// DefaultMinDepthScore is the minimum v3analyzer.ComputeDepthProfile
// DepthScore a tier with a fetched tick window must clear; below it, the
// tier's advertised liquidity isn't trustworthy two-sided depth.
const DefaultMinDepthScore = 0.25

// V3FeeTierConfig bundles the knobs spec.md §4.2 and §6 name.
type V3FeeTierConfig struct {
	SpreadThresholdPct    float64
	TradeSizeUSD          float64
	MaxSimulatedImpactPct float64
	MinDepthScore         float64
}

// DefaultV3FeeTierConfig matches v3analyzer's stated defaults.
func DefaultV3FeeTierConfig() V3FeeTierConfig {
	return V3FeeTierConfig{
		SpreadThresholdPct:    v3analyzer.DefaultFeeTierSpreadThresholdPct,
		TradeSizeUSD:          DefaultV3TradeSizeUSD,
		MaxSimulatedImpactPct: DefaultMaxSimulatedImpactPct,
		MinDepthScore:         DefaultMinDepthScore,
	}
}

// V3FeeTierDetector wraps v3analyzer.DetectFeeTierArbitrage's raw-price
// gate with v3analyzer.SelectOptimalTier's impact-adjusted sizing to
// produce the unified Opportunity value every other detector emits.
type V3FeeTierDetector struct {
	cfg V3FeeTierConfig
}

// NewV3FeeTierDetector builds a detector with cfg.
func NewV3FeeTierDetector(cfg V3FeeTierConfig) *V3FeeTierDetector {
	return &V3FeeTierDetector{cfg: cfg}
}

// Detect compares pair's price across its V3 fee tiers on dex. A raw-price
// spread first has to clear v3analyzer.DetectFeeTierArbitrage's threshold
// (the reported BuyTier/SellTier/SpreadPct come from there, unchanged).
// v3analyzer.SelectOptimalTier then sizes the trade at TradeSizeUSD
// against both sides' impact-adjusted effective price to compute
// ProfitUSDNet. For any tier whose tick window was fetched (quote.Ticks
// non-empty), the tier is vetoed — the opportunity is dropped — if either
// v3analyzer.ComputeDepthProfile's DepthScore is too low to trust the
// quoted liquidity, or v3analyzer.SimulateSwap's exact cross-tick result
// shows more realized impact than the closed-form (trade_size/liquidity)*50
// estimate alone would catch.
func (d *V3FeeTierDetector) Detect(pair [2]common.Address, dex string, quotes []v3analyzer.TierQuote, chainID uint64, blockNumber uint64, nowMs int64) (types.Opportunity, bool) {
	feeOpp, ok := v3analyzer.DetectFeeTierArbitrage(quotes, d.cfg.SpreadThresholdPct)
	if !ok {
		return types.Opportunity{}, false
	}

	tradeSizeUSD := d.cfg.TradeSizeUSD
	if tradeSizeUSD <= 0 {
		tradeSizeUSD = DefaultV3TradeSizeUSD
	}

	profit := 0.0
	buyRoute, buyOK := v3analyzer.SelectOptimalTier(quotes, tradeSizeUSD, true)
	sellRoute, sellOK := v3analyzer.SelectOptimalTier(quotes, tradeSizeUSD, false)

	if buyOK && sellOK && buyRoute.FeeTier != sellRoute.FeeTier && buyRoute.EffectivePrice > 0 {
		buyQuote, _ := quoteByTier(quotes, buyRoute.FeeTier)
		sellQuote, _ := quoteByTier(quotes, sellRoute.FeeTier)
		if d.tierUnreliable(buyQuote) || d.tierUnreliable(sellQuote) {
			return types.Opportunity{}, false
		}

		grossPct := (sellRoute.EffectivePrice - buyRoute.EffectivePrice) / buyRoute.EffectivePrice * 100
		profit = bigmath.NewUSD(tradeSizeUSD).Mul(grossPct / 100).Float64()
	}

	return types.Opportunity{
		Kind:    types.KindV3FeeTier,
		ChainID: chainID,
		V3FeeTier: &types.V3FeeTierPayload{
			Pair:      pair,
			Dex:       dex,
			BuyTier:   feeOpp.BuyTier,
			SellTier:  feeOpp.SellTier,
			SpreadPct: feeOpp.SpreadPct,
		},
		ProfitUSDNet: profit,
		TradeSizeUSD: tradeSizeUSD,
		BlockNumber:  blockNumber,
		TimestampMs:  nowMs,
	}, true
}

// tierUnreliable reports whether q carries depth/simulation data (a tick
// window was fetched for it) that fails this detector's quality bars. A
// quote with no tick window (Ticks empty) never vetoes — the closed-form
// SelectOptimalTier estimate is the only signal available for it.
func (d *V3FeeTierDetector) tierUnreliable(q v3analyzer.TierQuote) bool {
	if len(q.Ticks) == 0 {
		return false
	}
	minDepth := d.cfg.MinDepthScore
	if minDepth <= 0 {
		minDepth = DefaultMinDepthScore
	}
	maxImpact := d.cfg.MaxSimulatedImpactPct
	if maxImpact <= 0 {
		maxImpact = DefaultMaxSimulatedImpactPct
	}
	return q.DepthScore < minDepth || q.SimulatedImpactPct > maxImpact
}

// quoteByTier finds quotes' entry for feeTier.
func quoteByTier(quotes []v3analyzer.TierQuote, feeTier uint32) (v3analyzer.TierQuote, bool) {
	for _, q := range quotes {
		if q.FeeTier == feeTier {
			return q, true
		}
	}
	return v3analyzer.TierQuote{}, false
}
