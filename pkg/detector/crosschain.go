package detector

import (
	"sort"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// CrossChainConfig bundles the knobs spec.md §4.6 and §6 name.
type CrossChainConfig struct {
	Enabled       bool
	MinProfitUSD  float64
	MaxPriceAgeMs int64
	MinSpreadPct  float64
	TradeSizeUSD  float64 // fixed reference trade size, default 10,000 USD
}

// DefaultCrossChainConfig matches spec.md's named defaults.
func DefaultCrossChainConfig() CrossChainConfig {
	return CrossChainConfig{
		Enabled:       true,
		MinProfitUSD:  10,
		MaxPriceAgeMs: 5000,
		MinSpreadPct:  0.5,
		TradeSizeUSD:  10000,
	}
}

// BridgeCostFunc resolves a bridge cost for one directed chain pair,
// matching configs.Config.BridgeCost's fallback-to-reverse-then-default
// behavior.
type BridgeCostFunc func(fromChainID, toChainID uint64) (costUSD float64, minutes float64)

// TokenChainPrice is one fresh price observation for a cross-chain token
// symbol on one chain.
type TokenChainPrice struct {
	ChainID     uint64
	PriceUSD    float64
	TimestampMs int64
}

// CrossChainDetector compares a token's freshest price across every chain
// it's configured on, per spec.md §4.6.
type CrossChainDetector struct {
	cfg         CrossChainConfig
	bridgeCost  BridgeCostFunc
}

// NewCrossChainDetector builds a detector with cfg and bridgeCost.
func NewCrossChainDetector(cfg CrossChainConfig, bridgeCost BridgeCostFunc) *CrossChainDetector {
	return &CrossChainDetector{cfg: cfg, bridgeCost: bridgeCost}
}

// Detect compares symbol's prices across prices (one entry per chain where
// the token exists), requiring at least two prices fresher than
// MaxPriceAgeMs, and emits an opportunity if the resulting spread clears
// both MinSpreadPct and MinProfitUSD.
func (d *CrossChainDetector) Detect(symbol string, prices []TokenChainPrice, nowMs int64) (types.Opportunity, bool) {
	if !d.cfg.Enabled {
		return types.Opportunity{}, false
	}

	fresh := make([]TokenChainPrice, 0, len(prices))
	for _, p := range prices {
		if nowMs-p.TimestampMs <= d.cfg.MaxPriceAgeMs && p.PriceUSD > 0 {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) < 2 {
		return types.Opportunity{}, false
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].PriceUSD < fresh[j].PriceUSD })
	buy, sell := fresh[0], fresh[len(fresh)-1]
	if buy.ChainID == sell.ChainID {
		return types.Opportunity{}, false
	}

	spreadPct := (sell.PriceUSD - buy.PriceUSD) / buy.PriceUSD * 100
	if spreadPct < d.cfg.MinSpreadPct {
		return types.Opportunity{}, false
	}

	costUSD, minutes := d.bridgeCost(buy.ChainID, sell.ChainID)
	grossProfit := d.cfg.TradeSizeUSD * spreadPct / 100
	profit := bigmath.NewUSD(grossProfit).Sub(bigmath.NewUSD(costUSD)).Float64()
	if profit < d.cfg.MinProfitUSD {
		return types.Opportunity{}, false
	}

	return types.Opportunity{
		Kind: types.KindCrossChain,
		CrossChain: &types.CrossChainPayload{
			Token:         symbol,
			BuyChainID:    buy.ChainID,
			SellChainID:   sell.ChainID,
			BuyPrice:      buy.PriceUSD,
			SellPrice:     sell.PriceUSD,
			SpreadPct:     spreadPct,
			BridgeCostUSD: costUSD,
			BridgeMinutes: minutes,
		},
		ProfitUSDNet: profit,
		TradeSizeUSD: d.cfg.TradeSizeUSD,
		TimestampMs:  nowMs,
	}, true
}

// DetectAll runs Detect for every symbol in registry and returns the
// resulting opportunities sorted by profit descending, per spec.md §4.6's
// "opportunities are sorted by profit descending". nowMs is supplied by the
// caller (the coordinator's clock) rather than read internally, so a run
// is reproducible from a fixed snapshot of inputs.
func (d *CrossChainDetector) DetectAll(registry map[string][]TokenChainPrice, nowMs int64) []types.Opportunity {
	var out []types.Opportunity
	for symbol, prices := range registry {
		if opp, ok := d.Detect(symbol, prices, nowMs); ok {
			out = append(out, opp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfitUSDNet > out[j].ProfitUSDNet })
	return out
}
