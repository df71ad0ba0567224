package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCrossChain_S6 reproduces scenario S6: chain A at 0.999, chain B at
// 1.004, both fresh within 2s, bridge cost A->B = 3 USD. Expected
// spread_pct ~= 0.5 and profit ~= 50 - 3 = 47 on the 10,000 USD reference
// trade size.
func TestCrossChain_S6(t *testing.T) {
	const now = 10_000
	prices := []TokenChainPrice{
		{ChainID: 1, PriceUSD: 0.999, TimestampMs: now},
		{ChainID: 2, PriceUSD: 1.004, TimestampMs: now - 1500},
	}

	bridgeCost := func(from, to uint64) (float64, float64) {
		if from == 1 && to == 2 {
			return 3, 20
		}
		return 25, 30
	}

	d := NewCrossChainDetector(DefaultCrossChainConfig(), bridgeCost)
	opp, ok := d.Detect("USDC", prices, now)

	require.True(t, ok)
	assert.InDelta(t, 0.5, opp.CrossChain.SpreadPct, 0.02)
	assert.InDelta(t, 47, opp.ProfitUSDNet, 1)
	assert.Equal(t, uint64(1), opp.CrossChain.BuyChainID)
	assert.Equal(t, uint64(2), opp.CrossChain.SellChainID)
	assert.Equal(t, 10000.0, opp.TradeSizeUSD)
}

func TestCrossChain_RequiresTwoFreshChains(t *testing.T) {
	prices := []TokenChainPrice{
		{ChainID: 1, PriceUSD: 0.999, TimestampMs: 10_000},
		{ChainID: 2, PriceUSD: 1.004, TimestampMs: 1_000}, // stale, 9s old
	}
	d := NewCrossChainDetector(DefaultCrossChainConfig(), func(uint64, uint64) (float64, float64) { return 3, 20 })
	_, ok := d.Detect("USDC", prices, 10_000)
	assert.False(t, ok)
}

func TestCrossChain_RejectsBelowMinSpread(t *testing.T) {
	prices := []TokenChainPrice{
		{ChainID: 1, PriceUSD: 1.000, TimestampMs: 10_000},
		{ChainID: 2, PriceUSD: 1.0005, TimestampMs: 10_000},
	}
	d := NewCrossChainDetector(DefaultCrossChainConfig(), func(uint64, uint64) (float64, float64) { return 3, 20 })
	_, ok := d.Detect("USDC", prices, 10_000)
	assert.False(t, ok)
}

func TestCrossChain_RejectsBelowMinProfitAfterBridgeCost(t *testing.T) {
	prices := []TokenChainPrice{
		{ChainID: 1, PriceUSD: 1.000, TimestampMs: 10_000},
		{ChainID: 2, PriceUSD: 1.006, TimestampMs: 10_000},
	}
	// Bridge cost eats almost all of the spread's profit.
	bridgeCost := func(uint64, uint64) (float64, float64) { return 59, 30 }
	d := NewCrossChainDetector(DefaultCrossChainConfig(), bridgeCost)
	_, ok := d.Detect("USDC", prices, 10_000)
	assert.False(t, ok)
}

func TestCrossChainDetector_DisabledNeverEmits(t *testing.T) {
	cfg := DefaultCrossChainConfig()
	cfg.Enabled = false
	prices := []TokenChainPrice{
		{ChainID: 1, PriceUSD: 0.999, TimestampMs: 10_000},
		{ChainID: 2, PriceUSD: 1.004, TimestampMs: 10_000},
	}
	d := NewCrossChainDetector(cfg, func(uint64, uint64) (float64, float64) { return 3, 20 })
	_, ok := d.Detect("USDC", prices, 10_000)
	assert.False(t, ok)
}

func TestDetectAll_SortsByProfitDescending(t *testing.T) {
	d := NewCrossChainDetector(DefaultCrossChainConfig(), func(uint64, uint64) (float64, float64) { return 3, 20 })
	registry := map[string][]TokenChainPrice{
		"USDC": {
			{ChainID: 1, PriceUSD: 0.999, TimestampMs: 0},
			{ChainID: 2, PriceUSD: 1.004, TimestampMs: 0},
		},
		"DAI": {
			{ChainID: 1, PriceUSD: 0.990, TimestampMs: 0},
			{ChainID: 2, PriceUSD: 1.020, TimestampMs: 0},
		},
	}
	opps := d.DetectAll(registry, 0)
	require.Len(t, opps, 2)
	assert.GreaterOrEqual(t, opps[0].ProfitUSDNet, opps[1].ProfitUSDNet)
}
