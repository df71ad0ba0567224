package v3analyzer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// TestFeeTierArbitrage_S3 reproduces spec scenario S3: same pair across
// tiers 500 (price 100.00) and 3000 (price 101.00), both with sufficient
// liquidity; expect a fee-tier opportunity buying at 500, selling at 3000,
// spread > 0.1%.
func TestFeeTierArbitrage_S3(t *testing.T) {
	quotes := []TierQuote{
		{FeeTier: 500, Price: 100.00, LiquidityUSD: 1_000_000},
		{FeeTier: 3000, Price: 101.00, LiquidityUSD: 1_000_000},
	}

	opp, ok := DetectFeeTierArbitrage(quotes, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(500), opp.BuyTier)
	assert.Equal(t, uint32(3000), opp.SellTier)
	assert.Greater(t, opp.SpreadPct, 0.1)
}

func TestFeeTierArbitrage_BelowThreshold(t *testing.T) {
	quotes := []TierQuote{
		{FeeTier: 500, Price: 100.00, LiquidityUSD: 1_000_000},
		{FeeTier: 3000, Price: 100.02, LiquidityUSD: 1_000_000},
	}
	_, ok := DetectFeeTierArbitrage(quotes, 0)
	assert.False(t, ok)
}

// TestTickCrossing_S7 reproduces spec scenario S7: a pool observed at tick
// 1000 with liquidity L, then at tick 1025 with liquidity L+delta, should
// emit one TickCrossing with ticks_crossed=25, direction=up.
func TestTickCrossing_S7(t *testing.T) {
	tracker := NewTickCrossingTracker(10)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	liquidity := big.NewInt(1_000_000)

	first := tracker.Observe(pool, 1000, liquidity, 1_000)
	assert.Nil(t, first, "first observation establishes baseline, no event")

	liquidityAfter := new(big.Int).Add(liquidity, big.NewInt(50_000))
	crossing := tracker.Observe(pool, 1025, liquidityAfter, 2_000)

	if assert.NotNil(t, crossing) {
		assert.Equal(t, int32(25), crossing.TicksCrossed)
		assert.Equal(t, "up", crossing.Direction)
	}
}

func TestTickCrossing_BelowThresholdEmitsNothing(t *testing.T) {
	tracker := NewTickCrossingTracker(10)
	pool := common.HexToAddress("0x2222222222222222222222222222222222222222")
	liquidity := big.NewInt(1_000_000)

	tracker.Observe(pool, 1000, liquidity, 1_000)
	crossing := tracker.Observe(pool, 1005, liquidity, 2_000)
	assert.Nil(t, crossing)
}

func TestJitDetector_MatchesAddThenRemove(t *testing.T) {
	detector := NewJitDetector(0, 0, 1)
	pool := common.HexToAddress("0x3333333333333333333333333333333333333333")

	add := types.LiquidityEvent{TimestampMs: 1_000, Delta: big.NewInt(1_000_000), Tick: 500}
	result := detector.Observe(pool, add, 500, 60)
	assert.Nil(t, result)

	remove := types.LiquidityEvent{TimestampMs: 1_500, Delta: big.NewInt(-900_000), Tick: 500}
	jit := detector.Observe(pool, remove, 500, 60)

	if assert.NotNil(t, jit) {
		assert.True(t, jit.IsNearCurrentTick)
	}
}

func TestJitDetector_NoMatchBelowThreshold(t *testing.T) {
	detector := NewJitDetector(0, 0.8, 1)
	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")

	add := types.LiquidityEvent{TimestampMs: 1_000, Delta: big.NewInt(1_000_000), Tick: 500}
	detector.Observe(pool, add, 500, 60)

	// Remove magnitude below 0.8 * add magnitude should not trigger.
	remove := types.LiquidityEvent{TimestampMs: 1_500, Delta: big.NewInt(-500_000), Tick: 500}
	jit := detector.Observe(pool, remove, 500, 60)
	assert.Nil(t, jit)
}

func TestSimulateSwap_StopsAtMaxCrossings(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000)
	sqrtPrice := bigmath.TickToSqrtPriceX96(0)

	var ticks []types.Tick
	for i := int32(1); i <= 20; i++ {
		ticks = append(ticks, types.Tick{
			Index:          i * 60,
			LiquidityNet:   big.NewInt(1000),
			LiquidityGross: big.NewInt(1000),
			Initialized:    true,
		})
	}

	result := SimulateSwap(big.NewInt(1_000_000_000_000), sqrtPrice, liquidity, 0, ticks, 3000, false)
	assert.LessOrEqual(t, result.TicksCrossed, maxCrossings)
	assert.NotNil(t, result.AmountOut)
}

func TestSimulateSwap_NoTicksConsumesAtConstantLiquidity(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000_000)
	sqrtPrice := bigmath.TickToSqrtPriceX96(0)

	result := SimulateSwap(big.NewInt(1_000_000), sqrtPrice, liquidity, 0, nil, 3000, true)
	assert.Equal(t, 0, result.TicksCrossed)
	assert.Greater(t, result.AmountOut.Sign(), -1)
}
