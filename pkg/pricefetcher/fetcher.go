// Package pricefetcher batch-quotes every monitored pair on every enabled
// DEX of one chain per block, normalizing decimals and estimating a
// liquidity floor in USD, per spec.md §4.3.
package pricefetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/contractclient"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// DefaultMaxBlockAge is spec.md §4.3's default block-freshness tolerance.
const DefaultMaxBlockAge = 2

// monitoredPair is one (base, quote) token pair to quote on every enabled
// DEX. Pairs are derived from a chain's base_tokens × tokens cross product
// (every non-base token priced against every configured base token) —
// spec.md names "each monitored pair" without enumerating a pair list
// separately from the token registry, so the base×token cross product is
// the natural reading, capped by monitoring.max_pairs.
type monitoredPair struct {
	BaseSymbol  string
	QuoteSymbol string
	Base        types.TokenSpec
	Quote       types.TokenSpec
}

// Fetcher batch-quotes one chain's monitored pairs every block.
type Fetcher struct {
	chain    types.ChainSpec
	resolver *PoolResolver
	reader   *contractclient.PoolStateReader

	pairs []monitoredPair

	mu        sync.Mutex
	lastGood  map[[2]string]cachedQuote // keyed by dex+pair
	maxBlockAge uint64

	lastStates    map[types.PoolKey]types.PoolState   // most recent fetch's raw pool states, for V3 tick consumers
	lastAddresses map[types.PoolKey]common.Address    // pool contract address per key, for tick/JIT event payloads
}

type cachedQuote struct {
	quote       types.PriceQuote
	blockNumber uint64
}

// NewFetcher builds a fetcher for chain, deriving its monitored pair list
// and capping it at chain.Monitoring.MaxPairs.
func NewFetcher(chain types.ChainSpec, resolver *PoolResolver, reader *contractclient.PoolStateReader) *Fetcher {
	pairs := derivePairs(chain)
	maxBlockAge := uint64(DefaultMaxBlockAge)

	return &Fetcher{
		chain:       chain,
		resolver:    resolver,
		reader:      reader,
		pairs:       pairs,
		lastGood:    make(map[[2]string]cachedQuote),
		maxBlockAge: maxBlockAge,
	}
}

func derivePairs(chain types.ChainSpec) []monitoredPair {
	var pairs []monitoredPair
	maxPairs := chain.Monitoring.MaxPairs
	if maxPairs <= 0 {
		maxPairs = 1 << 30
	}

	for _, baseSym := range chain.BaseTokens {
		base, ok := chain.Tokens[baseSym]
		if !ok {
			continue
		}
		for quoteSym, quote := range chain.Tokens {
			if quoteSym == baseSym {
				continue
			}
			pairs = append(pairs, monitoredPair{
				BaseSymbol: baseSym, QuoteSymbol: quoteSym,
				Base: base, Quote: quote,
			})
			if len(pairs) >= maxPairs {
				return pairs
			}
		}
	}
	return pairs
}

// FetchSnapshot builds one ChainPriceSnapshot for blockNumber: resolves
// pool addresses (cached), batches every pool's state read through one
// multicall round trip, decimal-normalizes prices, and estimates a
// liquidity floor. A resolved pool whose state fails to read or decode this
// block falls back to its last good quote if that quote is no older than
// maxBlockAge blocks; otherwise it is simply absent from the snapshot. A
// pool whose address does not resolve is skipped with no fallback.
func (f *Fetcher) FetchSnapshot(ctx context.Context, blockNumber uint64) (types.ChainPriceSnapshot, error) {
	snapshot := types.NewChainPriceSnapshot(f.chain.ChainID, blockNumber, time.Now().UnixMilli())

	type target struct {
		pair monitoredPair
		dex  types.DexSpec
		targetBase contractclient.PoolTarget
		feeTier    uint32
	}
	var targets []target

	for _, pair := range f.pairs {
		for _, dex := range f.chain.Dexes {
			if !dex.Enabled {
				continue
			}
			feeTiers := []uint32{0}
			isV3 := dex.Kind == types.DexKindV3
			if isV3 {
				feeTiers = dex.V3FeeTiers
			}
			for _, fee := range feeTiers {
				addr, err := f.resolver.Resolve(ctx, dex, pair.Base.Address, pair.Quote.Address, fee)
				if err != nil || addr == (common.Address{}) {
					continue
				}
				key := types.NewPoolKey(pair.Base.Address, pair.Quote.Address, dex.Name, fee)
				targets = append(targets, target{
					pair: pair, dex: dex, feeTier: fee,
					targetBase: contractclient.PoolTarget{Key: key, Address: addr, IsV3: isV3},
				})
			}
		}
	}

	if len(targets) == 0 {
		return snapshot, nil
	}

	poolTargets := make([]contractclient.PoolTarget, len(targets))
	addresses := make(map[types.PoolKey]common.Address, len(targets))
	for i, t := range targets {
		poolTargets[i] = t.targetBase
		addresses[t.targetBase.Key] = t.targetBase.Address
	}
	f.mu.Lock()
	f.lastAddresses = addresses
	f.mu.Unlock()

	states, err := f.reader.FetchStates(ctx, poolTargets, blockNumber)
	if err != nil {
		return snapshot, fmt.Errorf("fetch pool states for chain %d: %w", f.chain.ChainID, err)
	}

	byKey := make(map[types.PoolKey]types.PoolState, len(states))
	for _, s := range states {
		byKey[s.Key] = s
	}
	f.mu.Lock()
	f.lastStates = byKey
	f.mu.Unlock()

	for _, t := range targets {
		cacheKey := [2]string{t.dex.Name, t.pair.BaseSymbol + "/" + t.pair.QuoteSymbol}

		state, ok := byKey[t.targetBase.Key]
		if !ok || !state.Valid() {
			if cached, found := f.cachedIfFresh(cacheKey, blockNumber); found {
				snapshot.Put(cached.Pair, t.dex.Name, cached)
			}
			continue
		}

		quote, err := f.buildQuote(t.pair, t.dex, t.targetBase.Address, state, blockNumber)
		if err != nil {
			if cached, found := f.cachedIfFresh(cacheKey, blockNumber); found {
				snapshot.Put(cached.Pair, t.dex.Name, cached)
			}
			continue
		}

		snapshot.Put(quote.Pair, t.dex.Name, quote)
		f.mu.Lock()
		f.lastGood[cacheKey] = cachedQuote{quote: quote, blockNumber: blockNumber}
		f.mu.Unlock()
	}

	return snapshot, nil
}

// LastStates returns the raw pool states from the most recent FetchSnapshot
// call, keyed by pool. V3 consumers (tick-crossing tracker, fee-tier
// detector) need the raw tick/sqrt-price fields FetchSnapshot normalizes
// away into a PriceQuote; this avoids a second multicall round trip for
// the same block.
func (f *Fetcher) LastStates() map[types.PoolKey]types.PoolState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[types.PoolKey]types.PoolState, len(f.lastStates))
	for k, v := range f.lastStates {
		out[k] = v
	}
	return out
}

// LastAddresses returns every resolved pool address as of the most recent
// FetchSnapshot call, keyed by pool.
func (f *Fetcher) LastAddresses() map[types.PoolKey]common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[types.PoolKey]common.Address, len(f.lastAddresses))
	for k, v := range f.lastAddresses {
		out[k] = v
	}
	return out
}

// LastPoolAddress returns the resolved contract address for key as of the
// most recent FetchSnapshot call.
func (f *Fetcher) LastPoolAddress(key types.PoolKey) (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr, ok := f.lastAddresses[key]
	return addr, ok
}

func (f *Fetcher) cachedIfFresh(key [2]string, blockNumber uint64) (types.PriceQuote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cached, ok := f.lastGood[key]
	if !ok {
		return types.PriceQuote{}, false
	}
	if blockNumber > cached.blockNumber && blockNumber-cached.blockNumber > f.maxBlockAge {
		return types.PriceQuote{}, false
	}
	return cached.quote, true
}

// buildQuote decimal-normalizes one pool's raw state into a PriceQuote,
// including the liquidity-USD floor estimate from spec.md §4.3:
// liquidity_usd ~= 2 * reserveA_normalized * price_usd(A) when A's USD
// price is known, via the base token's static fallback table entry.
func (f *Fetcher) buildQuote(pair monitoredPair, dex types.DexSpec, poolAddr common.Address, state types.PoolState, blockNumber uint64) (types.PriceQuote, error) {
	var (
		price                 float64
		baseReserveNormalized float64
	)

	switch {
	case state.IsV2():
		price = bigmath.V2ForwardPrice(state.V2.ReserveA, state.V2.ReserveB, pair.Base.Decimals, pair.Quote.Decimals)
		baseReserveNormalized = bigmath.Normalize(state.V2.ReserveA, pair.Base.Decimals)
	case state.IsV3():
		price = bigmath.SqrtPriceToDecimalPrice(state.V3.SqrtPriceX96, pair.Base.Decimals, pair.Quote.Decimals)
		// A pool's token0/token1 ordering is not tracked independently here;
		// V3 pools get no liquidity-USD floor since V3 liquidity is not a
		// literal reserve balance the 2*reserve*price formula applies to.
	default:
		return types.PriceQuote{}, fmt.Errorf("pool state carries neither v2 nor v3 data")
	}

	if price <= 0 || price != price { // NaN check alongside non-positive
		return types.PriceQuote{}, fmt.Errorf("invalid decimal-normalized price")
	}

	baseUSD := FallbackUSD(pair.BaseSymbol)
	if baseUSD == 0 && pair.BaseSymbol == f.chain.Native.Symbol {
		baseUSD = f.chain.Native.PriceUSDFallback
	}

	var liquidityUSD float64
	if state.IsV2() && baseUSD > 0 {
		liquidityUSD = 2 * baseReserveNormalized * baseUSD
	}

	return types.PriceQuote{
		Pair:              [2]common.Address{pair.Base.Address, pair.Quote.Address},
		Price:             price,
		PriceUSD:          baseUSD / price,
		DexName:           dex.Name,
		PoolAddress:       poolAddr,
		LiquidityUSDFloor: liquidityUSD,
		BlockNumber:       blockNumber,
		TimestampMs:       time.Now().UnixMilli(),
	}, nil
}
