package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestV2Out_ZeroReserves(t *testing.T) {
	assert.Equal(t, 0.0, v2Out(100, 0, 1000, 0.003))
	assert.Equal(t, 0.0, v2Out(100, 1000, 0, 0.003))
	assert.Equal(t, 0.0, v2Out(0, 1000, 1000, 0.003))
}

func TestV2Out_KnownValue(t *testing.T) {
	out := v2Out(1000, 100000, 100000, 0.003)
	assert.InDelta(t, 987.158, out, 0.5)
	assert.Less(t, out, 1000.0)
}

func TestLogGrid_MonotonicAndBounded(t *testing.T) {
	grid := logGrid(100, 50000, 25)
	assert.Len(t, grid, 25)
	assert.InDelta(t, 100, grid[0], 0.01)
	assert.InDelta(t, 50000, grid[len(grid)-1], 1)
	for i := 1; i < len(grid); i++ {
		assert.Greater(t, grid[i], grid[i-1])
	}
}

func TestLogGrid_DegenerateRange(t *testing.T) {
	assert.Equal(t, []float64{5}, logGrid(5, 5, 10))
	assert.Len(t, logGrid(100, 50000, 1), 1)
}

func TestOptimalTradeSize_FindsProfitableSpread(t *testing.T) {
	cfg := DefaultCrossDexConfig()
	cfg.MinProfitPct = 0
	rBuy := PairReserves{ReserveIn: 1_000_000, ReserveOut: 1_000_000}
	rSell := PairReserves{ReserveIn: 900_000, ReserveOut: 1_100_000}

	amount, profit := OptimalTradeSize(rBuy, rSell, 0.003, 0.003, cfg)
	assert.Greater(t, amount, 0.0)
	assert.Greater(t, profit, 0.0)
}

func TestOptimalTradeSize_NoProfitWhenReservesMatch(t *testing.T) {
	cfg := DefaultCrossDexConfig()
	rBuy := PairReserves{ReserveIn: 1_000_000, ReserveOut: 1_000_000}
	rSell := PairReserves{ReserveIn: 1_000_000, ReserveOut: 1_000_000}

	_, profit := OptimalTradeSize(rBuy, rSell, 0.003, 0.003, cfg)
	assert.Equal(t, 0.0, profit)
}

func TestOptimalTradeSize_ZeroReservesReturnsZero(t *testing.T) {
	cfg := DefaultCrossDexConfig()
	amount, profit := OptimalTradeSize(PairReserves{}, PairReserves{ReserveIn: 1, ReserveOut: 1}, 0.003, 0.003, cfg)
	assert.Equal(t, 0.0, amount)
	assert.Equal(t, 0.0, profit)
}
