package detector

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

var (
	weth = common.HexToAddress("0x01")
	usdc = common.HexToAddress("0x02")
)

func dexesS1() map[string]types.DexSpec {
	return map[string]types.DexSpec{
		"dexA": {Name: "dexA", Kind: types.DexKindV2, V2FeeFraction: 0.003, Enabled: true},
		"dexB": {Name: "dexB", Kind: types.DexKindV2, V2FeeFraction: 0.0025, Enabled: true},
	}
}

// TestCrossDex_S1 reproduces scenario S1: two V2 DEXes quoting WETH/USDC at
// 3000 and 3030 (1.0% spread), with flash-loan fee 0.25% and negligible gas.
func TestCrossDex_S1(t *testing.T) {
	pair := [2]common.Address{weth, usdc}
	snapshot := types.NewChainPriceSnapshot(1, 100, 1000)
	snapshot.Quotes[pair] = map[string]types.PriceQuote{
		"dexA": {Pair: pair, Price: 3000, DexName: "dexA", LiquidityUSDFloor: 2_000_000},
		"dexB": {Pair: pair, Price: 3030, DexName: "dexB", LiquidityUSDFloor: 2_000_000},
	}

	cfg := DefaultCrossDexConfig()
	cfg.FlashLoanFeeFraction = 0.0025
	cfg.GasCostUSD = 0

	// Reserves in pair order (WETH, USDC), priced at 3000 and 3030.
	lookup := func(p [2]common.Address, dex string) (PairReserves, bool) {
		if dex == "dexA" {
			return PairReserves{ReserveIn: 10_000, ReserveOut: 30_000_000}, true
		}
		return PairReserves{ReserveIn: 10_000, ReserveOut: 30_300_000}, true
	}

	d := NewCrossDexDetector(cfg)
	opps := d.Detect(snapshot, dexesS1(), lookup)

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, types.KindCrossDex, opp.Kind)
	assert.InDelta(t, 1.0, opp.CrossDex.SpreadPct, 0.01)
	assert.Equal(t, "dexA", opp.CrossDex.BuyDex)
	assert.Equal(t, "dexB", opp.CrossDex.SellDex)
	assert.Greater(t, opp.CrossDex.OptimalAmount, 0.0)
	assert.Greater(t, opp.ProfitUSDNet, 0.0)
}

func TestCrossDex_SkipsBelowLiquidityFloor(t *testing.T) {
	pair := [2]common.Address{weth, usdc}
	snapshot := types.NewChainPriceSnapshot(1, 100, 1000)
	snapshot.Quotes[pair] = map[string]types.PriceQuote{
		"dexA": {Pair: pair, Price: 3000, DexName: "dexA", LiquidityUSDFloor: 10},
		"dexB": {Pair: pair, Price: 3030, DexName: "dexB", LiquidityUSDFloor: 10},
	}

	cfg := DefaultCrossDexConfig()
	lookup := func(p [2]common.Address, dex string) (PairReserves, bool) {
		return PairReserves{ReserveIn: 1_000_000, ReserveOut: 1_000_000}, true
	}

	d := NewCrossDexDetector(cfg)
	assert.Empty(t, d.Detect(snapshot, dexesS1(), lookup))
}

func TestCrossDex_SkipsSingleDexPair(t *testing.T) {
	pair := [2]common.Address{weth, usdc}
	snapshot := types.NewChainPriceSnapshot(1, 100, 1000)
	snapshot.Quotes[pair] = map[string]types.PriceQuote{
		"dexA": {Pair: pair, Price: 3000, DexName: "dexA", LiquidityUSDFloor: 2_000_000},
	}

	d := NewCrossDexDetector(DefaultCrossDexConfig())
	assert.Empty(t, d.Detect(snapshot, dexesS1(), nil))
}

func TestDexFeeFraction_FallsBackForUnknownDex(t *testing.T) {
	assert.Equal(t, defaultDexFeeFraction, dexFeeFraction(map[string]types.DexSpec{}, "unknown"))
}
