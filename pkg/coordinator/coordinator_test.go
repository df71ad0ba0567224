package coordinator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChoSanghyuk/dexarb/pkg/detector"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

var (
	wethEth  = common.HexToAddress("0xe1")
	usdcEth  = common.HexToAddress("0xe2")
	wethPoly = common.HexToAddress("0xf1")
	usdcPoly = common.HexToAddress("0xf2")
)

func TestBestQuote_PicksHighestLiquidity(t *testing.T) {
	byDex := map[string]types.PriceQuote{
		"dexA": {Price: 2000, PriceUSD: 2000, LiquidityUSDFloor: 1_000_000},
		"dexB": {Price: 2010, PriceUSD: 2010, LiquidityUSDFloor: 5_000_000},
	}
	best, ok := bestQuote(byDex)
	require.True(t, ok)
	assert.Equal(t, 2010.0, best.PriceUSD)
}

func TestBestQuote_SkipsInvalidQuotes(t *testing.T) {
	byDex := map[string]types.PriceQuote{
		"dexA": {Price: 0, PriceUSD: 0},
	}
	_, ok := bestQuote(byDex)
	assert.False(t, ok)
}

func TestCoordinator_BuildRegistryMatchesCrossChainScenario(t *testing.T) {
	c := New(nil, map[uint64]string{1: "ethereum", 137: "polygon"}, detector.DefaultCrossChainConfig(), func(from, to string) (float64, float64) {
		return 20, 15
	}, nil)

	c.RegisterChainTokens(1, map[string]types.TokenSpec{
		"WETH": {Symbol: "WETH", Address: wethEth},
		"USDC": {Symbol: "USDC", Address: usdcEth},
	})
	c.RegisterChainTokens(137, map[string]types.TokenSpec{
		"WETH": {Symbol: "WETH", Address: wethPoly},
		"USDC": {Symbol: "USDC", Address: usdcPoly},
	})

	ethSnap := types.NewChainPriceSnapshot(1, 100, 1000)
	ethSnap.Quotes[[2]common.Address{wethEth, usdcEth}] = map[string]types.PriceQuote{
		"dexA": {Price: 2000, PriceUSD: 2000, LiquidityUSDFloor: 1_000_000, TimestampMs: 1000},
	}
	polySnap := types.NewChainPriceSnapshot(137, 50, 1000)
	polySnap.Quotes[[2]common.Address{wethPoly, usdcPoly}] = map[string]types.PriceQuote{
		"dexB": {Price: 2050, PriceUSD: 2050, LiquidityUSDFloor: 1_000_000, TimestampMs: 1000},
	}

	c.mu.Lock()
	c.latest[1] = ethSnap
	c.latest[137] = polySnap
	registry := c.buildRegistryLocked()
	c.mu.Unlock()

	require.Contains(t, registry, "USDC")
	assert.Len(t, registry["USDC"], 2)
}

func TestCoordinator_OnSnapshotEmitsCrossChainOpportunity(t *testing.T) {
	cfg := detector.DefaultCrossChainConfig()
	cfg.MinSpreadPct = 0.1
	cfg.MinProfitUSD = 0

	c := New(nil, map[uint64]string{1: "ethereum", 137: "polygon"}, cfg, func(from, to string) (float64, float64) {
		return 0, 0
	}, nil)

	c.RegisterChainTokens(1, map[string]types.TokenSpec{
		"USDC": {Symbol: "USDC", Address: usdcEth},
	})
	c.RegisterChainTokens(137, map[string]types.TokenSpec{
		"USDC": {Symbol: "USDC", Address: usdcPoly},
	})

	ethSnap := types.NewChainPriceSnapshot(1, 100, 1000)
	ethSnap.Quotes[[2]common.Address{wethEth, usdcEth}] = map[string]types.PriceQuote{
		"dexA": {Price: 1.0, PriceUSD: 1.00, LiquidityUSDFloor: 1_000_000, TimestampMs: 1000},
	}
	c.onSnapshot(1, ethSnap)

	polySnap := types.NewChainPriceSnapshot(137, 50, 1000)
	polySnap.Quotes[[2]common.Address{wethPoly, usdcPoly}] = map[string]types.PriceQuote{
		"dexB": {Price: 1.05, PriceUSD: 1.05, LiquidityUSDFloor: 1_000_000, TimestampMs: 1000},
	}

	out := make(chan types.Event, 8)
	c.events = out
	c.onSnapshot(137, polySnap)

	require.Len(t, out, 1)
	ev := <-out
	require.NotNil(t, ev.Opportunity)
	assert.Equal(t, types.KindCrossChain, ev.Opportunity.Kind)
}

func TestCoordinator_StatsAggregatesAcrossNoWorkers(t *testing.T) {
	c := New(nil, nil, detector.DefaultCrossChainConfig(), func(from, to string) (float64, float64) { return 0, 0 }, nil)
	stats := c.Stats()
	assert.Equal(t, 0, stats.Chains)
	assert.Equal(t, uint64(0), stats.TotalOpportunities)
}
