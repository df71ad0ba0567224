package detector

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChoSanghyuk/dexarb/pkg/v3analyzer"
)

func TestV3FeeTierDetector_Detect(t *testing.T) {
	pair := [2]common.Address{weth, usdc}
	quotes := []v3analyzer.TierQuote{
		{FeeTier: 500, Price: 100.00, LiquidityUSD: 1_000_000},
		{FeeTier: 3000, Price: 101.00, LiquidityUSD: 1_000_000},
	}

	d := NewV3FeeTierDetector(DefaultV3FeeTierConfig())
	opp, ok := d.Detect(pair, "uniswap-v3", quotes, 1, 100, 1000)

	require.True(t, ok)
	assert.Equal(t, uint32(500), opp.V3FeeTier.BuyTier)
	assert.Equal(t, uint32(3000), opp.V3FeeTier.SellTier)
	assert.Greater(t, opp.V3FeeTier.SpreadPct, 0.1)
}

func TestV3FeeTierDetector_NoOpportunityBelowThreshold(t *testing.T) {
	pair := [2]common.Address{weth, usdc}
	quotes := []v3analyzer.TierQuote{
		{FeeTier: 500, Price: 100.00, LiquidityUSD: 1_000_000},
		{FeeTier: 3000, Price: 100.01, LiquidityUSD: 1_000_000},
	}

	d := NewV3FeeTierDetector(DefaultV3FeeTierConfig())
	_, ok := d.Detect(pair, "uniswap-v3", quotes, 1, 100, 1000)
	assert.False(t, ok)
}
