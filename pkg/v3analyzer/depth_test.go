package v3analyzer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// TestComputeDepthProfile_DefaultOffsets verifies the walk runs the
// {0.5,1,2,5}% offsets from spec.md §4.2 when no explicit offsets are
// given, producing one DepthLevel per offset with both directions capacity
// in a deep, evenly-liquid pool.
func TestComputeDepthProfile_DefaultOffsets(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000_000)
	sqrtPrice := bigmath.TickToSqrtPriceX96(0)

	var ticks []types.Tick
	for i := int32(-50); i <= 50; i++ {
		if i == 0 {
			continue
		}
		ticks = append(ticks, types.Tick{
			Index:          i * 60,
			LiquidityNet:   big.NewInt(0),
			LiquidityGross: big.NewInt(1_000_000_000_000),
			Initialized:    true,
		})
	}

	profile := ComputeDepthProfile(sqrtPrice, liquidity, 0, ticks, nil)
	if assert.Len(t, profile.Levels, len(DefaultDepthOffsetsPct)) {
		for i, level := range profile.Levels {
			assert.Equal(t, DefaultDepthOffsetsPct[i], level.OffsetPct)
		}
	}
	assert.Greater(t, profile.DepthScore, 0.0)
}

// TestComputeDepthProfile_NoTicksStillWalksAtConstantLiquidity reproduces
// a pool with no initialized ticks in range: the walk falls back to
// constant-liquidity consumption toward each target and both directions
// still report non-zero capacity, so depth_score is 1.
func TestComputeDepthProfile_NoTicksStillWalksAtConstantLiquidity(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000_000)
	sqrtPrice := bigmath.TickToSqrtPriceX96(0)

	profile := ComputeDepthProfile(sqrtPrice, liquidity, 0, nil, []float64{1})
	if assert.Len(t, profile.Levels, 1) {
		level := profile.Levels[0]
		assert.Greater(t, level.BuyCapacity.Sign(), -1)
		assert.Greater(t, level.SellCapacity.Sign(), -1)
	}
	assert.Equal(t, 1.0, profile.DepthScore)
}

// TestComputeDepthProfile_ZeroLiquidityScoresZero reproduces a pool with no
// liquidity at all: neither direction can move any size, so every offset
// fails to contribute and depth_score is 0.
func TestComputeDepthProfile_ZeroLiquidityScoresZero(t *testing.T) {
	sqrtPrice := bigmath.TickToSqrtPriceX96(0)

	profile := ComputeDepthProfile(sqrtPrice, big.NewInt(0), 0, nil, []float64{0.5, 1, 2, 5})
	assert.Equal(t, 0.0, profile.DepthScore)
}
