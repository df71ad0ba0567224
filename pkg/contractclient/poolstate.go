package contractclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/transport"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

const v2PairABIJSON = `[
	{
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

const v3PoolSlot0ABIJSON = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	v2PairABI     abi.ABI
	v3PoolSlot0ABI abi.ABI
)

func init() {
	var err error
	v2PairABI, err = abi.JSON(strings.NewReader(v2PairABIJSON))
	if err != nil {
		panic(fmt.Sprintf("contractclient: invalid v2 pair abi: %v", err))
	}
	v3PoolSlot0ABI, err = abi.JSON(strings.NewReader(v3PoolSlot0ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("contractclient: invalid v3 slot0 abi: %v", err))
	}
}

// PoolStateReader batches getReserves (V2) and slot0+liquidity (V3) reads
// for a set of pools in one Multicall3 round trip, per spec.md §4.3's
// batch-quoting design.
type PoolStateReader struct {
	pool *transport.HTTPPool
}

// NewPoolStateReader builds a reader backed by pool.
func NewPoolStateReader(pool *transport.HTTPPool) *PoolStateReader {
	return &PoolStateReader{pool: pool}
}

// PoolTarget pairs a PoolKey with its on-chain contract address.
type PoolTarget struct {
	Key     types.PoolKey
	Address common.Address
	IsV3    bool
}

// FetchStates reads every target's on-chain state in one batched
// multicall, returning a PoolState per successfully-decoded target. A
// per-pool call failure is skipped rather than failing the whole batch.
func (r *PoolStateReader) FetchStates(ctx context.Context, targets []PoolTarget, blockNumber uint64) ([]types.PoolState, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	calls := make([]transport.Call, len(targets))
	for i, t := range targets {
		var (
			packed []byte
			err    error
		)
		if t.IsV3 {
			packed, err = v3PoolSlot0ABI.Pack("slot0")
		} else {
			packed, err = v2PairABI.Pack("getReserves")
		}
		if err != nil {
			return nil, fmt.Errorf("pack state call for %s: %w", t.Address, err)
		}
		calls[i] = transport.Call{Target: t.Address, CallData: packed}
	}

	// V3 pools need a second call (liquidity()) alongside slot0(); batch it
	// in the same multicall round trip, tracking index pairs.
	liquidityIdx := make(map[int]int, len(targets))
	for i, t := range targets {
		if !t.IsV3 {
			continue
		}
		packed, err := v3PoolSlot0ABI.Pack("liquidity")
		if err != nil {
			return nil, fmt.Errorf("pack liquidity call for %s: %w", t.Address, err)
		}
		liquidityIdx[i] = len(calls)
		calls = append(calls, transport.Call{Target: t.Address, CallData: packed})
	}

	results, err := transport.Aggregate(ctx, r.pool, calls)
	if err != nil {
		return nil, fmt.Errorf("fetch pool states: %w", err)
	}

	now := time.Now().UnixMilli()
	out := make([]types.PoolState, 0, len(targets))
	for i, t := range targets {
		if !results[i].Success {
			continue
		}
		if t.IsV3 {
			slot0, err := v3PoolSlot0ABI.Unpack("slot0", results[i].ReturnData)
			if err != nil || len(slot0) < 2 {
				continue
			}
			sqrtPriceX96, _ := slot0[0].(*big.Int)
			tick, _ := slot0[1].(*big.Int)

			liqIdx, ok := liquidityIdx[i]
			if !ok || !results[liqIdx].Success {
				continue
			}
			liqOut, err := v3PoolSlot0ABI.Unpack("liquidity", results[liqIdx].ReturnData)
			if err != nil || len(liqOut) < 1 {
				continue
			}
			liquidity, _ := liqOut[0].(*big.Int)

			out = append(out, types.PoolState{
				Key: t.Key,
				V3: &types.V3State{
					SqrtPriceX96: sqrtPriceX96,
					Tick:         int32(tick.Int64()),
					Liquidity:    liquidity,
					FeeTier:      t.Key.FeeTier,
				},
				BlockNumber: blockNumber,
				ObservedAt:  now,
			})
			continue
		}

		reserves, err := v2PairABI.Unpack("getReserves", results[i].ReturnData)
		if err != nil || len(reserves) < 2 {
			continue
		}
		reserve0, _ := reserves[0].(*big.Int)
		reserve1, _ := reserves[1].(*big.Int)
		out = append(out, types.PoolState{
			Key: t.Key,
			V2: &types.V2Reserves{
				ReserveA: reserve0,
				ReserveB: reserve1,
			},
			BlockNumber: blockNumber,
			ObservedAt:  now,
		})
	}
	return out, nil
}
