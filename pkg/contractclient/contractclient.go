// Package contractclient wraps one ABI-bound contract address with
// read-only call, decode, and batched-multicall helpers, on top of
// pkg/transport's resilient HTTP pool.
package contractclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ChoSanghyuk/dexarb/pkg/transport"
)

// DecodedCall is a decoded contract invocation: its method name and its
// positional argument values keyed by ABI argument name.
type DecodedCall struct {
	MethodName string
	Inputs     map[string]any
}

// ContractClient binds one ABI to one address and reads it through a
// resilient HTTPPool, matching the single-address single-ABI shape the
// teacher's router/pool wrappers used, generalized to a pool-backed,
// read-only client used across every DEX integration.
type ContractClient struct {
	pool    *transport.HTTPPool
	address common.Address
	abi     abi.ABI
}

// NewContractClient binds abi to address, reading every call through pool.
func NewContractClient(pool *transport.HTTPPool, address common.Address, contractABI abi.ABI) *ContractClient {
	return &ContractClient{pool: pool, address: address, abi: contractABI}
}

// Address returns the bound contract address.
func (c *ContractClient) Address() common.Address { return c.address }

// Call invokes a read-only view/pure method and returns its decoded
// outputs positionally, matching the teacher's Call(opts, method, args...)
// shape. opts is accepted for call-site symmetry with go-ethereum's
// bind.CallOpts but only BlockNumber is honored; nil means "latest".
func (c *ContractClient) Call(ctx context.Context, opts *bind.CallOpts, method string, args ...any) ([]any, error) {
	packed, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var blockNumber *big.Int
	if opts != nil {
		blockNumber = opts.BlockNumber
	}

	raw, err := transport.WithRetry(ctx, c.pool, func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		to := c.address
		msg := ethereum.CallMsg{To: &to, Data: packed}
		return client.CallContract(ctx, msg, blockNumber)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, c.address, err)
	}

	outputs, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

// DecodeTransaction decodes calldata against the bound ABI, returning the
// matched method name and its named inputs.
func (c *ContractClient) DecodeTransaction(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short to contain a method selector")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("lookup method by selector: %w", err)
	}

	args := map[string]any{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("unpack inputs for %s: %w", method.Name, err)
	}
	return &DecodedCall{MethodName: method.Name, Inputs: args}, nil
}

// DecodeTransactionHex is DecodeTransaction over a hex-encoded string.
func (c *ContractClient) DecodeTransactionHex(hexData string) (*DecodedCall, error) {
	return c.DecodeTransaction(Hex2Bytes(hexData))
}

// TransactionData fetches a transaction's calldata by hash.
func (c *ContractClient) TransactionData(ctx context.Context, hash common.Hash) ([]byte, error) {
	tx, err := transport.WithRetry(ctx, c.pool, func(ctx context.Context, client *ethclient.Client) (*types.Transaction, error) {
		tx, _, err := client.TransactionByHash(ctx, hash)
		return tx, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", hash, err)
	}
	return tx.Data(), nil
}

// EncodeCall packs a method call for use as a transport.Call target in a
// batched multicall.
func (c *ContractClient) EncodeCall(method string, args ...any) (transport.Call, error) {
	packed, err := c.abi.Pack(method, args...)
	if err != nil {
		return transport.Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return transport.Call{Target: c.address, CallData: packed}, nil
}

// DecodeResult unpacks one multicall CallResult's return data for method.
// A failed call (Success=false) returns an error.
func (c *ContractClient) DecodeResult(method string, result transport.CallResult) ([]any, error) {
	if !result.Success {
		return nil, fmt.Errorf("call to %s on %s failed", method, c.address)
	}
	return c.abi.Unpack(method, result.ReturnData)
}
