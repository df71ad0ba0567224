package contractclient

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// hardhatArtifact is the subset of a Hardhat/Foundry build artifact this
// package cares about: the ABI array under the top-level "abi" key.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact reads a Hardhat-style build artifact JSON file
// and parses its "abi" field.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi artifact %s: %w", path, err)
	}
	return LoadABIFromArtifactBytes(data)
}

// LoadABIFromArtifactBytes parses a Hardhat-style artifact already in
// memory, e.g. one loaded from an embedded asset.
func LoadABIFromArtifactBytes(data []byte) (abi.ABI, error) {
	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("unmarshal hardhat artifact: %w", err)
	}
	if len(artifact.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact has no abi field")
	}
	return abi.JSON(strings.NewReader(string(artifact.ABI)))
}

// LoadABIFromJSON parses a bare ABI JSON array (no Hardhat wrapper), the
// shape most third-party ABI dumps use.
func LoadABIFromJSON(data []byte) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(string(data)))
}

// Hex2Bytes strips an optional "0x" prefix and decodes the remainder as
// hex, matching the convention the teacher's decode helpers expect. Malformed
// input decodes to an empty slice rather than panicking.
func Hex2Bytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return out
}
