package detector

import (
	"math"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
)

// v2Out computes a constant-product swap output with fee, in the
// float-USD-scaled units the grid search operates in — spec.md §4.4's
// (amount_in * (1-f) * reserveOut) / (reserveIn + amount_in * (1-f)).
// Returns zero if either reserve is zero, never Infinity, per spec.md §7.
func v2Out(amountIn, reserveIn, reserveOut, fee float64) float64 {
	if reserveIn <= 0 || reserveOut <= 0 || amountIn <= 0 {
		return 0
	}
	amountInWithFee := amountIn * (1 - fee)
	denom := reserveIn + amountInWithFee
	if denom <= 0 {
		return 0
	}
	return (amountInWithFee * reserveOut) / denom
}

// logGrid returns count points spaced logarithmically in [lo, hi], per
// spec.md §4.4's "logarithmic grid in [min_trade_usd, max_trade_usd]".
func logGrid(lo, hi float64, count int) []float64 {
	if count <= 1 {
		return []float64{lo}
	}
	if lo <= 0 {
		lo = 1
	}
	if hi <= lo {
		return []float64{lo}
	}
	logLo, logHi := math.Log(lo), math.Log(hi)
	step := (logHi - logLo) / float64(count-1)
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		out[i] = math.Exp(logLo + step*float64(i))
	}
	return out
}

// OptimalTradeSize searches amount_in over a logarithmic grid for the
// cross-DEX two-leg trade (buy on rBuy's DEX, sell on rSell's DEX) that
// maximizes net profit, per spec.md §4.4. Returns (0, 0) if no candidate
// is profitable.
func OptimalTradeSize(rBuy, rSell PairReserves, feeBuy, feeSell float64, cfg CrossDexConfig) (float64, float64) {
	if rBuy.ReserveIn <= 0 || rBuy.ReserveOut <= 0 || rSell.ReserveIn <= 0 || rSell.ReserveOut <= 0 {
		return 0, 0
	}

	bestAmount, bestProfit := 0.0, 0.0
	for _, amountIn := range logGrid(cfg.MinTradeUSD, cfg.MaxTradeUSD, cfg.GridSteps) {
		legOut := v2Out(amountIn, rBuy.ReserveIn, rBuy.ReserveOut, feeBuy)
		finalOut := v2Out(legOut, rSell.ReserveIn, rSell.ReserveOut, feeSell)

		flashFee := amountIn * cfg.FlashLoanFeeFraction
		profit := bigmath.NewUSD(finalOut).
			Sub(bigmath.NewUSD(amountIn)).
			Sub(bigmath.NewUSD(flashFee)).
			Sub(bigmath.NewUSD(cfg.GasCostUSD)).
			Sub(bigmath.NewUSD(cfg.ExpectedSlippageUSD)).
			Float64()

		if profit > bestProfit {
			bestProfit, bestAmount = profit, amountIn
		}
	}
	return bestAmount, bestProfit
}
