package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	dtypes "github.com/ChoSanghyuk/dexarb/pkg/types"
)

// Multicall3Address is the canonical cross-chain deployment address used
// by every chain this system targets, per spec.md §6.
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// maxMulticallBatch caps how many calls go into one tryAggregate, per
// spec.md §6's chunking rule.
const maxMulticallBatch = 50

const multicall3ABIJSON = `[
	{
		"inputs": [
			{"internalType": "bool", "name": "requireSuccess", "type": "bool"},
			{
				"components": [
					{"internalType": "address", "name": "target", "type": "address"},
					{"internalType": "bytes", "name": "callData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Call[]",
				"name": "calls",
				"type": "tuple[]"
			}
		],
		"name": "tryAggregate",
		"outputs": [
			{
				"components": [
					{"internalType": "bool", "name": "success", "type": "bool"},
					{"internalType": "bytes", "name": "returnData", "type": "bytes"}
				],
				"internalType": "struct Multicall3.Result[]",
				"name": "returnData",
				"type": "tuple[]"
			}
		],
		"stateMutability": "payable",
		"type": "function"
	}
]`

var multicall3ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(multicall3ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("transport: invalid multicall3 abi: %v", err))
	}
	multicall3ABI = parsed
}

// Call is one target+calldata pair to batch through Multicall3.
type Call struct {
	Target   common.Address
	CallData []byte
}

// CallResult mirrors Multicall3.Result: whether the call succeeded and its
// raw return data.
type CallResult struct {
	Success    bool
	ReturnData []byte
}

// Aggregate batches calls through Multicall3.tryAggregate(requireSuccess=false)
// in chunks of at most maxMulticallBatch, using the pool's retry/circuit
// machinery for each chunk. Per-call failures are reported in the
// corresponding CallResult rather than failing the whole batch — only a
// transport-level failure (the eth_call itself erroring) propagates.
func Aggregate(ctx context.Context, pool *HTTPPool, calls []Call) ([]CallResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]CallResult, 0, len(calls))
	for start := 0; start < len(calls); start += maxMulticallBatch {
		end := start + maxMulticallBatch
		if end > len(calls) {
			end = len(calls)
		}
		chunk := calls[start:end]

		chunkResults, err := WithRetry(ctx, pool, func(ctx context.Context, client *ethclient.Client) ([]CallResult, error) {
			return callTryAggregate(ctx, client, chunk)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: multicall chunk [%d:%d]: %v", dtypes.ErrTransportTransient, start, end, err)
		}
		results = append(results, chunkResults...)
	}
	return results, nil
}

func callTryAggregate(ctx context.Context, client *ethclient.Client, calls []Call) ([]CallResult, error) {
	type abiCall struct {
		Target   common.Address
		CallData []byte
	}
	abiCalls := make([]abiCall, len(calls))
	for i, c := range calls {
		abiCalls[i] = abiCall{Target: c.Target, CallData: c.CallData}
	}

	packed, err := multicall3ABI.Pack("tryAggregate", false, abiCalls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	to := Multicall3Address
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: packed}, nil)
	if err != nil {
		return nil, fmt.Errorf("tryAggregate call: %w", err)
	}

	var out []CallResult
	if err := multicall3ABI.UnpackIntoInterface(&out, "tryAggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	return out, nil
}
