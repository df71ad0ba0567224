package types

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKey identifies one quotable pool: an unordered token pair on one DEX,
// with an optional fee tier for V3-style DEXes. Normalized by lexicographic
// token ordering so (A,B) and (B,A) always produce the same key.
type PoolKey struct {
	TokenA  common.Address
	TokenB  common.Address
	Dex     string
	FeeTier uint32 // 0 for V2-style DEXes without a tier
}

// NewPoolKey normalizes the token ordering lexicographically, per the data
// model's "pair key normalized by lexicographic token ordering" invariant.
func NewPoolKey(tokenA, tokenB common.Address, dex string, feeTier uint32) PoolKey {
	if bytesLess(tokenB.Bytes(), tokenA.Bytes()) {
		tokenA, tokenB = tokenB, tokenA
	}
	return PoolKey{TokenA: tokenA, TokenB: tokenB, Dex: dex, FeeTier: feeTier}
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// PairKey returns the token-pair portion of the key (ignoring DEX and tier),
// used to group quotes of the same pair across DEXes.
func (k PoolKey) PairKey() [2]common.Address {
	return [2]common.Address{k.TokenA, k.TokenB}
}

// V2Reserves holds a constant-product pool's two reserves.
type V2Reserves struct {
	ReserveA *big.Int
	ReserveB *big.Int
}

// V3State holds a concentrated-liquidity pool's slot0-equivalent state.
type V3State struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
	FeeTier      uint32
}

// PoolState is the raw on-chain state for one pool as of one block. Exactly
// one of V2 or V3 is populated, matching the pool's DexKind.
type PoolState struct {
	Key           PoolKey
	V2            *V2Reserves
	V3            *V3State
	BlockNumber   uint64
	ObservedAt    int64 // unix millis wall clock
}

// IsV2 reports whether this state carries V2 reserves.
func (p PoolState) IsV2() bool { return p.V2 != nil }

// IsV3 reports whether this state carries V3 slot0 data.
func (p PoolState) IsV3() bool { return p.V3 != nil }

// Valid checks the per-variant invariant: V2 reserves must both be positive
// for a priced pool; V3 sqrtPriceX96 must be positive.
func (p PoolState) Valid() bool {
	switch {
	case p.V2 != nil:
		return p.V2.ReserveA != nil && p.V2.ReserveB != nil &&
			p.V2.ReserveA.Sign() > 0 && p.V2.ReserveB.Sign() > 0
	case p.V3 != nil:
		return p.V3.SqrtPriceX96 != nil && p.V3.SqrtPriceX96.Sign() > 0
	default:
		return false
	}
}

// Tick is one initialized or uninitialized tick slot fetched from a V3 pool.
type Tick struct {
	Index           int32
	LiquidityGross  *big.Int
	LiquidityNet    *big.Int
	Initialized     bool
}

// TickCacheEntry is the cached window of ticks around a pool's current tick.
type TickCacheEntry struct {
	Ticks       []Tick
	PopulatedAt int64 // unix millis
}

// SortTicks orders ticks by index ascending, the cache invariant.
func SortTicks(ticks []Tick) {
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Index < ticks[j].Index })
}

// PriceQuote is a decimal-normalized price derived from one PoolState.
type PriceQuote struct {
	Pair            [2]common.Address
	Price           float64 // Pair[1] per Pair[0], decimal-normalized
	PriceUSD        float64 // 0 if no base-token USD price is derivable
	DexName         string
	PoolAddress     common.Address
	LiquidityUSDFloor float64
	BlockNumber     uint64
	TimestampMs     int64
}

// Valid enforces "price > 0 and finite".
func (q PriceQuote) Valid() bool {
	return q.Price > 0 && !isInfOrNaN(q.Price)
}

func isInfOrNaN(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

// ChainPriceSnapshot is the atomic, per-block publication of every pair's
// quotes across every DEX on one chain.
type ChainPriceSnapshot struct {
	ChainID     uint64
	Quotes      map[[2]common.Address]map[string]PriceQuote // pair -> dex -> quote
	BlockNumber uint64
	TimestampMs int64
}

// NewChainPriceSnapshot returns an empty snapshot ready for population.
func NewChainPriceSnapshot(chainID uint64, block uint64, tsMs int64) ChainPriceSnapshot {
	return ChainPriceSnapshot{
		ChainID:     chainID,
		Quotes:      make(map[[2]common.Address]map[string]PriceQuote),
		BlockNumber: block,
		TimestampMs: tsMs,
	}
}

// Put records quote q for pair on dex, creating the inner map on first use.
func (s ChainPriceSnapshot) Put(pair [2]common.Address, dex string, q PriceQuote) {
	inner, ok := s.Quotes[pair]
	if !ok {
		inner = make(map[string]PriceQuote)
		s.Quotes[pair] = inner
	}
	inner[dex] = q
}

// BundleTiming tracks pending V3 liquidity-event pairs for JIT detection.
type BundleTiming struct {
	Pool          common.Address
	PendingEvents []LiquidityEvent
}

// LiquidityEvent is one add/remove observation used by the JIT detector and
// the tick-crossing tracker's liquidity bookkeeping.
type LiquidityEvent struct {
	TimestampMs int64
	Delta       *big.Int // positive for add, negative for remove
	Tick        int32
}
