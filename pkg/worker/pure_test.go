package worker

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/v3analyzer"
)

var (
	weth = common.HexToAddress("0x01")
	usdc = common.HexToAddress("0x02")
)

func tokenRegistry() map[common.Address]types.TokenSpec {
	return map[common.Address]types.TokenSpec{
		weth: {Symbol: "WETH", Address: weth, Decimals: 18},
		usdc: {Symbol: "USDC", Address: usdc, Decimals: 6},
	}
}

func TestAdaptReserves_NormalizesAndOrders(t *testing.T) {
	key := types.NewPoolKey(weth, usdc, "dexA", 0)
	states := map[types.PoolKey]types.PoolState{
		key: {
			Key: key,
			V2: &types.V2Reserves{
				ReserveA: new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)), // 1000 WETH or USDC, whichever is key.TokenA
				ReserveB: new(big.Int).Mul(big.NewInt(2_000_000), big.NewInt(1e6)),
			},
		},
	}

	reserves, ok := adaptReserves([2]common.Address{weth, usdc}, "dexA", states, tokenRegistry())
	require.True(t, ok)
	// key normalizes lexicographically; reserves must reflect pair's (in, out)
	// orientation regardless of how NewPoolKey reordered tokenA/tokenB.
	assert.Greater(t, reserves.ReserveIn, 0.0)
	assert.Greater(t, reserves.ReserveOut, 0.0)
}

func TestAdaptReserves_MissingPoolReportsNotFound(t *testing.T) {
	_, ok := adaptReserves([2]common.Address{weth, usdc}, "dexA", map[types.PoolKey]types.PoolState{}, tokenRegistry())
	assert.False(t, ok)
}

func TestAdaptReserves_V3PoolReportsNotFound(t *testing.T) {
	key := types.NewPoolKey(weth, usdc, "dexA", 500)
	states := map[types.PoolKey]types.PoolState{
		key: {Key: key, V3: &types.V3State{SqrtPriceX96: big.NewInt(1), Tick: 0, Liquidity: big.NewInt(1)}},
	}
	_, ok := adaptReserves([2]common.Address{weth, usdc}, "dexA", states, tokenRegistry())
	assert.False(t, ok)
}

func TestGroupV3Quotes_GroupsByPairAndDexAcrossTiers(t *testing.T) {
	key500 := types.NewPoolKey(weth, usdc, "uniswap-v3", 500)
	key3000 := types.NewPoolKey(weth, usdc, "uniswap-v3", 3000)
	states := map[types.PoolKey]types.PoolState{
		key500:  {Key: key500, V3: &types.V3State{SqrtPriceX96: sqrtPriceFor(2000), Tick: 1, Liquidity: big.NewInt(1)}},
		key3000: {Key: key3000, V3: &types.V3State{SqrtPriceX96: sqrtPriceFor(2010), Tick: 1, Liquidity: big.NewInt(1)}},
	}

	native := types.NativeToken{Symbol: "ETH", PriceUSDFallback: 2000}
	groups := groupV3Quotes(states, tokenRegistry(), map[types.PoolKey]common.Address{}, map[common.Address][]types.Tick{}, native, 10000)
	require.Len(t, groups, 1)
	for _, quotes := range groups {
		assert.Len(t, quotes, 2)
	}
}

func TestObserveTickCrossings_SkipsPoolsWithUnknownAddress(t *testing.T) {
	key := types.NewPoolKey(weth, usdc, "uniswap-v3", 500)
	states := map[types.PoolKey]types.PoolState{
		key: {Key: key, V3: &types.V3State{SqrtPriceX96: big.NewInt(1), Tick: 100, Liquidity: big.NewInt(1)}},
	}
	tracker := v3analyzer.NewTickCrossingTracker(10)

	out := observeTickCrossings(states, map[types.PoolKey]common.Address{}, tracker.Observe, 1000)
	assert.Empty(t, out)
}

func TestObserveTickCrossings_EmitsOnSecondObservationPastThreshold(t *testing.T) {
	key := types.NewPoolKey(weth, usdc, "uniswap-v3", 500)
	addr := common.HexToAddress("0xaa")
	addresses := map[types.PoolKey]common.Address{key: addr}
	tracker := v3analyzer.NewTickCrossingTracker(10)

	first := map[types.PoolKey]types.PoolState{
		key: {Key: key, V3: &types.V3State{SqrtPriceX96: big.NewInt(1), Tick: 100, Liquidity: big.NewInt(1)}},
	}
	assert.Empty(t, observeTickCrossings(first, addresses, tracker.Observe, 1000))

	second := map[types.PoolKey]types.PoolState{
		key: {Key: key, V3: &types.V3State{SqrtPriceX96: big.NewInt(1), Tick: 130, Liquidity: big.NewInt(1)}},
	}
	out := observeTickCrossings(second, addresses, tracker.Observe, 2000)
	require.Len(t, out, 1)
	assert.Equal(t, addr, out[0].Pool)
	assert.Equal(t, int32(30), out[0].TicksCrossed)
}

// sqrtPriceFor builds a deliberately large SqrtPriceX96 value so
// SqrtPriceToDecimalPrice's output stays comfortably above zero for any
// reasonable decimals pair, without replicating its exact Q64.96 math.
func sqrtPriceFor(scale int64) *big.Int {
	base := new(big.Int).Lsh(big.NewInt(1), 96)
	return new(big.Int).Mul(base, big.NewInt(scale))
}
