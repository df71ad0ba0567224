package contractclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/transport"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

const v3PoolTicksABIJSON = `[
	{
		"inputs": [{"internalType": "int24", "name": "tick", "type": "int24"}],
		"name": "ticks",
		"outputs": [
			{"internalType": "uint128", "name": "liquidityGross", "type": "uint128"},
			{"internalType": "int128", "name": "liquidityNet", "type": "int128"},
			{"internalType": "uint256", "name": "feeGrowthOutside0X128", "type": "uint256"},
			{"internalType": "uint256", "name": "feeGrowthOutside1X128", "type": "uint256"},
			{"internalType": "int56", "name": "tickCumulativeOutside", "type": "int56"},
			{"internalType": "uint160", "name": "secondsPerLiquidityOutsideX128", "type": "uint160"},
			{"internalType": "uint32", "name": "secondsOutside", "type": "uint32"},
			{"internalType": "bool", "name": "initialized", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var v3PoolTicksABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(v3PoolTicksABIJSON))
	if err != nil {
		panic(fmt.Sprintf("contractclient: invalid v3 pool ticks abi: %v", err))
	}
	v3PoolTicksABI = parsed
}

// V3TickFetcher implements v3analyzer.TickFetcher over a live V3 pool
// contract, batching the per-tick ticks(int24) storage read through
// Multicall3 in groups of up to 50 (pkg/transport.Aggregate's chunk size)
// as spec.md §4.2 requires.
//
// Candidate ticks are a fixed window of tick-spacing-aligned indices
// around currentTick, not a full tickBitmap scan: a production integration
// would read initialized-tick words from the pool's bitmap first and query
// only set bits, but a windowed scan is a correct (if more call-heavy)
// substitute and keeps this client's surface to one ABI fragment.
type V3TickFetcher struct {
	pool *transport.HTTPPool
}

// NewV3TickFetcher builds a fetcher backed by pool.
func NewV3TickFetcher(pool *transport.HTTPPool) *V3TickFetcher {
	return &V3TickFetcher{pool: pool}
}

// FetchTicks implements v3analyzer.TickFetcher.
func (f *V3TickFetcher) FetchTicks(ctx context.Context, poolAddr common.Address, currentTick int32, tickSpacing int32, window int32) ([]types.Tick, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("invalid tick spacing %d", tickSpacing)
	}

	base := (currentTick / tickSpacing) * tickSpacing
	candidates := make([]int32, 0, 2*window+1)
	for i := -window; i <= window; i++ {
		candidates = append(candidates, base+i*tickSpacing)
	}

	calls := make([]transport.Call, len(candidates))
	for i, tick := range candidates {
		packed, err := v3PoolTicksABI.Pack("ticks", big.NewInt(int64(tick)))
		if err != nil {
			return nil, fmt.Errorf("pack ticks(%d): %w", tick, err)
		}
		calls[i] = transport.Call{Target: poolAddr, CallData: packed}
	}

	results, err := transport.Aggregate(ctx, f.pool, calls)
	if err != nil {
		return nil, fmt.Errorf("fetch ticks for %s: %w", poolAddr, err)
	}

	out := make([]types.Tick, 0, len(results))
	for i, r := range results {
		if !r.Success {
			continue
		}
		decoded, err := v3PoolTicksABI.Unpack("ticks", r.ReturnData)
		if err != nil || len(decoded) < 2 {
			continue
		}
		initialized, _ := decoded[7].(bool)
		if !initialized {
			continue
		}
		liquidityGross, _ := decoded[0].(*big.Int)
		liquidityNet, _ := decoded[1].(*big.Int)
		out = append(out, types.Tick{
			Index:          candidates[i],
			LiquidityGross: liquidityGross,
			LiquidityNet:   liquidityNet,
			Initialized:    true,
		})
	}
	return out, nil
}
