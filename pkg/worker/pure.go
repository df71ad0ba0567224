package worker

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/detector"
	"github.com/ChoSanghyuk/dexarb/pkg/pricefetcher"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/v3analyzer"
)

func tokenAt(addr common.Address, byAddr map[common.Address]types.TokenSpec) types.TokenSpec {
	return byAddr[addr]
}

// adaptReserves turns one block's raw V2 pool state into the
// (ReserveIn, ReserveOut) shape detector.ReserveLookup needs, decimal-
// normalizing and reordering to match pair's (in, out) orientation.
// Non-V2 pools and unknown tokens report !ok, matching spec.md §4.4's
// "V2 formula" scoping.
func adaptReserves(pair [2]common.Address, dex string, states map[types.PoolKey]types.PoolState, tokenByAddr map[common.Address]types.TokenSpec) (detector.PairReserves, bool) {
	key := types.NewPoolKey(pair[0], pair[1], dex, 0)
	state, ok := states[key]
	if !ok || !state.IsV2() {
		return detector.PairReserves{}, false
	}

	tokenA, okA := tokenByAddr[state.Key.TokenA]
	tokenB, okB := tokenByAddr[state.Key.TokenB]
	if !okA || !okB {
		return detector.PairReserves{}, false
	}

	reserveA := bigmath.Normalize(state.V2.ReserveA, tokenA.Decimals)
	reserveB := bigmath.Normalize(state.V2.ReserveB, tokenB.Decimals)

	if state.Key.TokenA == pair[0] {
		return detector.PairReserves{ReserveIn: reserveA, ReserveOut: reserveB}, true
	}
	return detector.PairReserves{ReserveIn: reserveB, ReserveOut: reserveA}, true
}

type v3GroupKey struct {
	pair [2]common.Address
	dex  string
}

// tokenUSD resolves a token's USD price the same way pricefetcher.buildQuote
// does for the V2 liquidity floor: the static fallback table first, then
// the chain's own native-token fallback.
func tokenUSD(token types.TokenSpec, native types.NativeToken) float64 {
	if usd := pricefetcher.FallbackUSD(token.Symbol); usd > 0 {
		return usd
	}
	if token.Symbol != "" && token.Symbol == native.Symbol {
		return native.PriceUSDFallback
	}
	return 0
}

// v3LiquidityUSD estimates a V3 pool's tradeable liquidity in USD from its
// virtual reserves at the current price (bigmath.VirtualReserves), mirroring
// spec.md §4.3's 2*reserve*price floor for V2 pools rather than leaving V3
// tiers with no liquidity signal at all — SelectOptimalTier's ≤2%-
// utilization gate is meaningless against a LiquidityUSD that's always zero.
func v3LiquidityUSD(v3 *types.V3State, tokenA, tokenB types.TokenSpec, native types.NativeToken) float64 {
	if v3 == nil {
		return 0
	}
	reserve0, reserve1 := bigmath.VirtualReserves(v3.SqrtPriceX96, v3.Liquidity)

	if usdA := tokenUSD(tokenA, native); usdA > 0 {
		return 2 * bigmath.Normalize(reserve0, tokenA.Decimals) * usdA
	}
	if usdB := tokenUSD(tokenB, native); usdB > 0 {
		return 2 * bigmath.Normalize(reserve1, tokenB.Decimals) * usdB
	}
	return 0
}

// groupV3Quotes buckets every V3 pool state by (pair, dex) across fee
// tiers, decimal-normalizing each tier's price and attaching the sizing
// inputs a detector's optimal-tier routing and depth/swap analysis need:
// a liquidity-USD estimate, the tick window ticksByAddr carries for this
// pool (if the caller fetched one via v3analyzer.Analyzer.Ticks), its
// depth profile, and a simulated price impact for referenceTradeSizeUSD.
func groupV3Quotes(
	states map[types.PoolKey]types.PoolState,
	tokenByAddr map[common.Address]types.TokenSpec,
	addresses map[types.PoolKey]common.Address,
	ticksByAddr map[common.Address][]types.Tick,
	native types.NativeToken,
	referenceTradeSizeUSD float64,
) map[v3GroupKey][]v3analyzer.TierQuote {
	groups := make(map[v3GroupKey][]v3analyzer.TierQuote)
	for key, state := range states {
		if !state.IsV3() {
			continue
		}
		tokenA := tokenAt(state.Key.TokenA, tokenByAddr)
		tokenB := tokenAt(state.Key.TokenB, tokenByAddr)
		price := bigmath.SqrtPriceToDecimalPrice(state.V3.SqrtPriceX96, tokenA.Decimals, tokenB.Decimals)
		if price <= 0 {
			continue
		}

		quote := v3analyzer.TierQuote{
			FeeTier:      key.FeeTier,
			Price:        price,
			LiquidityUSD: v3LiquidityUSD(state.V3, tokenA, tokenB, native),
			SqrtPriceX96: state.V3.SqrtPriceX96,
			Liquidity:    state.V3.Liquidity,
			Tick:         state.V3.Tick,
		}

		if addr, ok := addresses[key]; ok {
			if ticks := ticksByAddr[addr]; len(ticks) > 0 {
				quote.Ticks = ticks
				quote.DepthScore = v3analyzer.ComputeDepthProfile(
					state.V3.SqrtPriceX96, state.V3.Liquidity, state.V3.Tick, ticks, nil,
				).DepthScore
				quote.SimulatedImpactPct = simulatedImpactPct(state, tokenA, tokenB, ticks, native, referenceTradeSizeUSD)
			}
		}

		gk := v3GroupKey{pair: key.PairKey(), dex: key.Dex}
		groups[gk] = append(groups[gk], quote)
	}
	return groups
}

// simulatedImpactPct runs v3analyzer.SimulateSwap for a referenceTradeSizeUSD
// sale of token0 (token0 in, zeroForOne), verifying SelectOptimalTier's closed-form
// (trade_size/liquidity_usd)*50 impact estimate against the exact
// cross-tick simulator. Returns 0 if token0's USD price can't be resolved
// (no simulation possible without a raw amountIn).
func simulatedImpactPct(state types.PoolState, tokenA, tokenB types.TokenSpec, ticks []types.Tick, native types.NativeToken, referenceTradeSizeUSD float64) float64 {
	if referenceTradeSizeUSD <= 0 {
		return 0
	}
	usdA := tokenUSD(tokenA, native)
	if usdA <= 0 {
		return 0
	}
	amountIn := bigmath.Denormalize(referenceTradeSizeUSD/usdA, tokenA.Decimals)
	if amountIn.Sign() <= 0 {
		return 0
	}
	// Uniswap V3 fee tiers are already expressed in parts-per-million
	// (500 = 0.05%, 3000 = 0.3%, 10000 = 1%), the same unit SimulateSwap's
	// feePPM expects, so the pool's own fee tier passes straight through.
	result := v3analyzer.SimulateSwap(amountIn, state.V3.SqrtPriceX96, state.V3.Liquidity, state.V3.Tick, ticks, state.Key.FeeTier, true)
	return result.PriceImpactPct
}

// observeTickCrossings runs observe over every V3 pool state whose
// contract address is known, returning any crossing events produced.
// observe is the owning analyzer's ObserveTick (or, in tests, a bare
// TickCrossingTracker's Observe method value — both share this shape).
func observeTickCrossings(
	states map[types.PoolKey]types.PoolState,
	addresses map[types.PoolKey]common.Address,
	observe func(pool common.Address, tick int32, liquidity *big.Int, nowMs int64) *types.TickCrossing,
	nowMs int64,
) []types.TickCrossing {
	var out []types.TickCrossing
	for key, state := range states {
		if !state.IsV3() {
			continue
		}
		addr, ok := addresses[key]
		if !ok {
			continue
		}
		if crossing := observe(addr, state.V3.Tick, state.V3.Liquidity, nowMs); crossing != nil {
			out = append(out, *crossing)
		}
	}
	return out
}
