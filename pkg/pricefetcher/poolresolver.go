package pricefetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/transport"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

const factoryABIJSON = `[
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"}
		],
		"name": "getPair",
		"outputs": [{"internalType": "address", "name": "pair", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "tokenA", "type": "address"},
			{"internalType": "address", "name": "tokenB", "type": "address"},
			{"internalType": "uint24", "name": "fee", "type": "uint24"}
		],
		"name": "getPool",
		"outputs": [{"internalType": "address", "name": "pool", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var factoryABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic(fmt.Sprintf("pricefetcher: invalid factory abi: %v", err))
	}
	factoryABI = parsed
}

type resolveKey struct {
	dex     string
	tokenA  common.Address
	tokenB  common.Address
	feeTier uint32
}

// PoolResolver looks up pool addresses via each DEX's factory/vault
// contract, caching results since a DEX factory's pair/pool address for a
// given token set is immutable once created.
type PoolResolver struct {
	pool *transport.HTTPPool

	mu    sync.Mutex
	cache map[resolveKey]common.Address
}

// NewPoolResolver builds a resolver backed by pool.
func NewPoolResolver(pool *transport.HTTPPool) *PoolResolver {
	return &PoolResolver{pool: pool, cache: make(map[resolveKey]common.Address)}
}

// Resolve returns the on-chain pool address for (tokenA,tokenB) on dex,
// using getPool(tokenA,tokenB,fee) when feeTier > 0 (V3-style) and
// getPair(tokenA,tokenB) otherwise (V2-style). A resolved zero address
// means the factory has no such pool.
func (r *PoolResolver) Resolve(ctx context.Context, dex types.DexSpec, tokenA, tokenB common.Address, feeTier uint32) (common.Address, error) {
	key := resolveKey{dex: dex.Name, tokenA: tokenA, tokenB: tokenB, feeTier: feeTier}

	r.mu.Lock()
	if addr, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return addr, nil
	}
	r.mu.Unlock()

	var (
		packed []byte
		err    error
	)
	if feeTier > 0 {
		packed, err = factoryABI.Pack("getPool", tokenA, tokenB, feeTier)
	} else {
		packed, err = factoryABI.Pack("getPair", tokenA, tokenB)
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("pack factory lookup for %s: %w", dex.Name, err)
	}

	calls := []transport.Call{{Target: dex.FactoryOrVault, CallData: packed}}
	results, err := transport.Aggregate(ctx, r.pool, calls)
	if err != nil || len(results) == 0 || !results[0].Success {
		return common.Address{}, fmt.Errorf("resolve pool on %s: %w", dex.Name, err)
	}

	method := "getPair"
	if feeTier > 0 {
		method = "getPool"
	}
	out, err := factoryABI.Unpack(method, results[0].ReturnData)
	if err != nil || len(out) < 1 {
		return common.Address{}, fmt.Errorf("unpack factory lookup for %s: %w", dex.Name, err)
	}
	addr, _ := out[0].(common.Address)

	r.mu.Lock()
	r.cache[key] = addr
	r.mu.Unlock()
	return addr, nil
}
