// Package detector implements the cross-DEX, triangular, and cross-chain
// arbitrage searches of spec.md §4.4-§4.6, plus the shared net-profit
// calculator (§4.4's flash_fee/gas_cost/slippage deductions).
package detector

import (
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// defaultDexFeeFraction is the fallback fee spec.md §4.4 names for an
// unknown DEX-name lookup.
const defaultDexFeeFraction = 0.003

// CrossDexConfig bundles the knobs spec.md §4.4 and §6 name.
type CrossDexConfig struct {
	MinProfitPct         float64
	MinLiquidityUSD      float64
	MinTradeUSD          float64
	MaxTradeUSD          float64
	GridSteps            int
	FlashLoanFeeFraction float64
	GasCostUSD           float64
	ExpectedSlippageUSD  float64
}

// DefaultCrossDexConfig matches spec.md's stated defaults and a
// conservative grid resolution.
func DefaultCrossDexConfig() CrossDexConfig {
	return CrossDexConfig{
		MinProfitPct:         0,
		MinLiquidityUSD:      1000,
		MinTradeUSD:          100,
		MaxTradeUSD:          50000,
		GridSteps:            25,
		FlashLoanFeeFraction: 0.0009,
		GasCostUSD:           5,
		ExpectedSlippageUSD:  0,
	}
}

// dexFeeFraction looks up a DEX's swap fee, falling back to
// defaultDexFeeFraction for an unknown name — spec.md §4.4's
// "unknown-DEX sentinel rather than a null dereference" rule.
func dexFeeFraction(dexes map[string]types.DexSpec, name string) float64 {
	if spec, ok := dexes[name]; ok && spec.V2FeeFraction > 0 {
		return spec.V2FeeFraction
	}
	return defaultDexFeeFraction
}

// PairReserves is one DEX's raw reserves for a pair, decimal-normalized to
// the same units the optimal-trade-size search operates in (USD-scaled
// float, since the search is a coarse grid search, not an on-chain
// integer simulation).
type PairReserves struct {
	ReserveIn  float64
	ReserveOut float64
}

// ReserveLookup resolves a pair+dex to its reserves for the
// optimal-trade-size search; the detector is deliberately decoupled from
// pkg/pricefetcher's cache shape.
type ReserveLookup func(pair [2]common.Address, dex string) (PairReserves, bool)

// CrossDexDetector finds the best (buy_dex, sell_dex) spread per pair on
// one chain's latest snapshot.
type CrossDexDetector struct {
	cfg CrossDexConfig
}

// NewCrossDexDetector builds a detector with cfg.
func NewCrossDexDetector(cfg CrossDexConfig) *CrossDexDetector {
	return &CrossDexDetector{cfg: cfg}
}

// Detect scans every pair quoted on >=2 DEXes in snapshot and returns the
// viable cross-DEX opportunities, sorted by net profit descending.
func (d *CrossDexDetector) Detect(snapshot types.ChainPriceSnapshot, dexes map[string]types.DexSpec, reserves ReserveLookup) []types.Opportunity {
	var out []types.Opportunity

	for pair, byDex := range snapshot.Quotes {
		if len(byDex) < 2 {
			continue
		}

		var buyDex, sellDex string
		var buyLiq, sellLiq float64
		buyPrice, sellPrice := math.Inf(1), math.Inf(-1)
		for name, q := range byDex {
			if !q.Valid() {
				continue
			}
			if q.Price < buyPrice {
				buyPrice, buyDex, buyLiq = q.Price, name, q.LiquidityUSDFloor
			}
			if q.Price > sellPrice {
				sellPrice, sellDex, sellLiq = q.Price, name, q.LiquidityUSDFloor
			}
		}
		if buyDex == "" || sellDex == "" || buyDex == sellDex {
			continue
		}

		spreadPct := (sellPrice - buyPrice) / buyPrice * 100
		if spreadPct < d.cfg.MinProfitPct {
			continue
		}
		liquidityFloor := math.Min(buyLiq, sellLiq)
		if liquidityFloor < d.cfg.MinLiquidityUSD {
			continue
		}

		rBuy, okBuy := reserves(pair, buyDex)
		rSell, okSell := reserves(pair, sellDex)
		if !okBuy || !okSell {
			continue
		}
		// The lookup reports reserves in pair order (pair[0] in, pair[1]
		// out). The buy leg swaps pair[1] for pair[0] on buyDex, so its
		// reserves are flipped; the sell leg swaps pair[0] back to pair[1].
		rBuy = PairReserves{ReserveIn: rBuy.ReserveOut, ReserveOut: rBuy.ReserveIn}

		feeBuy := dexFeeFraction(dexes, buyDex)
		feeSell := dexFeeFraction(dexes, sellDex)

		amountIn, profit := OptimalTradeSize(rBuy, rSell, feeBuy, feeSell, d.cfg)
		if profit <= 0 {
			continue
		}

		out = append(out, types.Opportunity{
			Kind:    types.KindCrossDex,
			ChainID: snapshot.ChainID,
			CrossDex: &types.CrossDexPayload{
				Pair:           pair,
				BuyDex:         buyDex,
				SellDex:        sellDex,
				BuyPrice:       buyPrice,
				SellPrice:      sellPrice,
				SpreadPct:      spreadPct,
				OptimalAmount:  amountIn,
				LiquidityFloor: liquidityFloor,
			},
			ProfitUSDNet: profit,
			TradeSizeUSD: amountIn,
			BlockNumber:  snapshot.BlockNumber,
			TimestampMs:  snapshot.TimestampMs,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProfitUSDNet > out[j].ProfitUSDNet })
	return out
}
