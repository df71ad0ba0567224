package detector

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

var (
	weth2 = common.HexToAddress("0x11")
	usdt2 = common.HexToAddress("0x12")
	dai2  = common.HexToAddress("0x13")
)

// TestTriangular_S2 reproduces scenario S2: WETH/USDT, USDT/DAI, DAI/WETH on
// one DEX with a cycle product of ~1.015 after fees.
func TestTriangular_S2(t *testing.T) {
	const fee = 0.003
	p1, p2 := 3000.0, 1.0
	// p3 chosen so that p1 * p2 * p3 * (1-fee)^3 == 1.015.
	p3 := 1.015 / (math.Pow(1-fee, 3) * p1 * p2)

	dex := map[string]types.DexSpec{
		"dexA": {Name: "dexA", Kind: types.DexKindV2, V2FeeFraction: fee, Enabled: true, Router: common.HexToAddress("0xaa")},
	}

	snapshot := types.NewChainPriceSnapshot(1, 100, 1000)
	addPair := func(a, b common.Address, price float64) {
		snapshot.Quotes[[2]common.Address{a, b}] = map[string]types.PriceQuote{
			"dexA": {Pair: [2]common.Address{a, b}, Price: price, DexName: "dexA"},
		}
	}
	addPair(weth2, usdt2, p1)
	addPair(usdt2, dai2, p2)
	addPair(dai2, weth2, p3)

	// Reserves must reflect each pair's quoted price (ReserveOut/ReserveIn
	// ~= price) so the swap-based trade-size search agrees with the
	// log-price cycle product used to find the cycle.
	reserveFor := map[[2]common.Address]PairReserves{
		{weth2, usdt2}: {ReserveIn: 1_000_000, ReserveOut: 1_000_000 * p1},
		{usdt2, dai2}:  {ReserveIn: 1_000_000_000, ReserveOut: 1_000_000_000 * p2},
		{dai2, weth2}:  {ReserveIn: 1_000_000_000, ReserveOut: 1_000_000_000 * p3},
	}
	lookup := func(pair [2]common.Address, dexName string) (PairReserves, bool) {
		r, ok := reserveFor[pair]
		return r, ok
	}

	cfg := DefaultTriangularConfig()
	cfg.FlashLoanFeeFraction = 0
	cfg.GasCostUSD = 0

	d := NewTriangularDetector(cfg)
	opps := d.Detect(snapshot, dex, lookup, []common.Address{weth2})

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, types.KindTriangular, opp.Kind)
	assert.InDelta(t, 1.015, opp.Triangular.CycleProduct, 0.001)
	assert.Len(t, opp.Triangular.Legs, 4) // weth -> usdt -> dai -> weth
	assert.Greater(t, opp.ProfitUSDNet, 0.0)
}

func TestFindNegativeCycles_RejectsTrivialOneHop(t *testing.T) {
	g := graph{
		weth2: {{To: usdt2, Weight: -0.5}},
		usdt2: {{To: weth2, Weight: -0.5}},
	}
	cycles := findNegativeCycles(g, weth2, 4)
	for _, c := range cycles {
		assert.GreaterOrEqual(t, len(c.tokens), 3)
	}
}

func TestAllSameDex(t *testing.T) {
	assert.True(t, allSameDex([]string{"dexA", "dexA", "dexA"}))
	assert.False(t, allSameDex([]string{"dexA", "dexB"}))
	assert.True(t, allSameDex([]string{"dexA"}))
}

func TestToOpportunity_RejectsMultiRouterCrossDex(t *testing.T) {
	cycle := cyclePath{
		tokens: []common.Address{weth2, usdt2, weth2},
		edges: []edge{
			{To: usdt2, Dex: "dexA", Router: common.HexToAddress("0xaa"), Fee: 0.003, ReserveIn: 1000, ReserveOut: 1000},
			{To: weth2, Dex: "dexB", Router: common.HexToAddress("0xbb"), Fee: 0.003, ReserveIn: 1000, ReserveOut: 1000},
		},
		product: 1.02,
	}
	d := NewTriangularDetector(DefaultTriangularConfig())
	_, err := d.toOpportunity(cycle, types.NewChainPriceSnapshot(1, 1, 1))
	assert.ErrorIs(t, err, ErrCrossDexTriangularUnsupported)
}
