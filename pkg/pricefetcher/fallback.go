package pricefetcher

import "strings"

// staticFallbackUSD is the per-token fallback price table spec.md §4.3
// names for liquidity_usd estimation when a token is not itself a
// chain's configured base token: stablecoins peg to 1, a short list of
// known majors get a static approximate price, everything else is priced
// at 0 (excluded from the liquidity floor rather than guessed).
var staticFallbackUSD = map[string]float64{
	"USDC":  1.0,
	"USDT":  1.0,
	"DAI":   1.0,
	"BUSD":  1.0,
	"TUSD":  1.0,
	"FRAX":  1.0,
	"USDP":  1.0,
	"WETH":  3000.0,
	"ETH":   3000.0,
	"WBTC":  60000.0,
	"BTC":   60000.0,
	"WBNB":  500.0,
	"BNB":   500.0,
	"WMATIC": 0.7,
	"MATIC": 0.7,
	"WAVAX": 30.0,
	"AVAX":  30.0,
}

// FallbackUSD returns the static fallback USD price for symbol, or 0 if
// the symbol is not in the table (case-insensitive).
func FallbackUSD(symbol string) float64 {
	return staticFallbackUSD[strings.ToUpper(symbol)]
}
