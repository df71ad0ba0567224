package contractclient

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20TransferABIJSON = `[
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

func TestDecodeTransaction(t *testing.T) {
	parsedABI, err := LoadABIFromJSON([]byte(erc20TransferABIJSON))
	require.NoError(t, err)

	cc := NewContractClient(nil, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), parsedABI)

	// transfer(address,uint256), pre-computed calldata for a fixed recipient/amount
	hexData := "0xa9059cbb0000000000000000000000006e4141d33021b52c91c28608403db4a0ffb50ec600000000000000000000000000000000000000000000000000000000000f4240"

	decoded, err := cc.DecodeTransactionHex(hexData)
	require.NoError(t, err)

	assert.Equal(t, "transfer", decoded.MethodName)
	assert.Equal(t, common.HexToAddress("0x6e4141d33021b52c91c28608403db4a0ffb50ec6"), decoded.Inputs["_to"])
}

func TestDecodeTransaction_TooShort(t *testing.T) {
	parsedABI, err := LoadABIFromJSON([]byte(erc20TransferABIJSON))
	require.NoError(t, err)

	cc := NewContractClient(nil, common.Address{}, parsedABI)
	_, err = cc.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestHex2Bytes(t *testing.T) {
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, Hex2Bytes("0xdeadbeef"))
	assert.Equal(t, []byte{0xde, 0xad}, Hex2Bytes("dead"))
	assert.Nil(t, Hex2Bytes("not-hex!!"))
}

func TestLoadABIFromArtifactBytes(t *testing.T) {
	artifact := []byte(`{"contractName":"ERC20","abi":` + erc20TransferABIJSON + `}`)
	parsedABI, err := LoadABIFromArtifactBytes(artifact)
	require.NoError(t, err)
	_, ok := parsedABI.Methods["transfer"]
	assert.True(t, ok)
}

func TestLoadABIFromArtifactBytes_MissingABI(t *testing.T) {
	_, err := LoadABIFromArtifactBytes([]byte(`{"contractName":"ERC20"}`))
	assert.Error(t, err)
}

func TestEncodeCall(t *testing.T) {
	parsedABI, err := LoadABIFromJSON([]byte(erc20TransferABIJSON))
	require.NoError(t, err)

	addr := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	cc := NewContractClient(nil, addr, parsedABI)

	to := common.HexToAddress("0x6e4141d33021b52c91c28608403db4a0ffb50ec6")
	call, err := cc.EncodeCall("transfer", to, big.NewInt(1000000))
	require.NoError(t, err)
	assert.Equal(t, addr, call.Target)
	assert.NotEmpty(t, call.CallData)
}
