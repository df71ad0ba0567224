// Package types holds the value types shared across the arbitrage engine:
// chain/DEX configuration, pool and price snapshots, ticks, opportunities
// and the error taxonomy. Nothing here talks to the network.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DexKind enumerates the AMM invariant families the engine understands.
// Closed by design: adding a chain or DEX is a code change (a new DexSpec
// value at config-load time), never a runtime string lookup.
type DexKind string

const (
	DexKindV2      DexKind = "v2"
	DexKindV3      DexKind = "v3"
	DexKindSolidly DexKind = "solidly"
	DexKindCurve   DexKind = "curve"
	DexKindBalancer DexKind = "balancer"
	DexKindMaverick DexKind = "maverick"
	DexKindWombat   DexKind = "wombat"
	DexKindWoofi    DexKind = "woofi"
	DexKindDodo     DexKind = "dodo"
	DexKindGMX      DexKind = "gmx"
)

// NativeToken describes a chain's gas token.
type NativeToken struct {
	Symbol          string
	Decimals        uint8
	Wrapped         common.Address
	PriceUSDFallback float64
}

// TokenSpec is one entry of a chain's token registry.
type TokenSpec struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// DexSpec is the immutable description of one DEX deployment on a chain.
type DexSpec struct {
	Name          string
	Kind          DexKind
	Router        common.Address
	FactoryOrVault common.Address
	V2FeeFraction float64  // swap fee as a fraction, e.g. 0.003
	V3FeeTiers    []uint32 // fee in hundredths of a bip, e.g. 500, 3000, 10000
	TVLRank       int
	Enabled       bool
}

// Validate enforces the DexSpec invariants from the data model: V2 fee in
// (0, 0.1), V3 tiers non-empty when Kind is V3.
func (d DexSpec) Validate() error {
	if d.Kind == DexKindV2 || d.Kind == DexKindSolidly {
		if d.V2FeeFraction <= 0 || d.V2FeeFraction >= 0.1 {
			return fmt.Errorf("dex %s: v2 fee fraction %v out of range (0, 0.1)", d.Name, d.V2FeeFraction)
		}
	}
	if d.Kind == DexKindV3 && len(d.V3FeeTiers) == 0 {
		return fmt.Errorf("dex %s: v3 kind requires at least one fee tier", d.Name)
	}
	return nil
}

// FlashLoanProvider describes one flash-loan source and its fee.
type FlashLoanProvider struct {
	Name        string
	FeeFraction float64
}

// BridgeSpec describes one configured cross-chain bridge route.
type BridgeSpec struct {
	Name    string
	Router  common.Address
	Enabled bool
}

// TradingParams carries the per-chain profitability/risk knobs.
type TradingParams struct {
	MinProfitPct       float64
	MaxSlippagePct     float64
	GasPriceGwei       float64
	EstimatedGasLimit  uint64
}

// MonitoringParams bounds per-chain resource usage.
type MonitoringParams struct {
	MaxPairs                 int
	CacheSize                int
	BlockProcessingTimeoutMs int
}

// TriangularParams configures the triangular-cycle detector.
type TriangularParams struct {
	Enabled         bool
	MaxPathLength   int
	MinLiquidityUSD float64
	MaxTradeSizeUSD float64
}

// V3Params configures the concentrated-liquidity analyzer for a chain.
type V3Params struct {
	Enabled        bool
	FeeTiers       []uint32
	MinLiquidityUSD float64
	MinProfitPct   float64
}

// RPCParams configures the transport pool for a chain.
type RPCParams struct {
	HTTP                 []string
	WS                   []string
	MaxRequestsPerMinute int
	RequestDelayMs       int
	RetryAttempts        int
	RetryDelayMs         int
}

// ChainSpec is the immutable, fully-resolved configuration for one chain.
// Built once at startup from configs.Config; never mutated afterward.
type ChainSpec struct {
	ChainID     uint64
	Name        string
	Enabled     bool
	BlockTimeMs int
	Native      NativeToken

	RPC RPCParams

	Dexes   map[string]DexSpec
	Tokens  map[string]TokenSpec
	BaseTokens []string

	Trading    TradingParams
	Monitoring MonitoringParams
	Triangular TriangularParams
	V3         V3Params

	FlashLoanProviders  []FlashLoanProvider
	PreferredFlashLoan  string
	Bridges             map[string]BridgeSpec
}

// Validate checks the ChainSpec invariants from the data model: base tokens
// must be a subset of the token registry, token addresses must be 20-byte
// hex (guaranteed by common.Address's type), and at least one HTTP endpoint
// must be configured.
func (c ChainSpec) Validate() error {
	if len(c.RPC.HTTP) == 0 {
		return fmt.Errorf("chain %s (%d): at least one HTTP endpoint is required", c.Name, c.ChainID)
	}
	for _, sym := range c.BaseTokens {
		if _, ok := c.Tokens[sym]; !ok {
			return fmt.Errorf("chain %s (%d): base token %q not present in token registry", c.Name, c.ChainID, sym)
		}
	}
	for name, d := range c.Dexes {
		if !d.Enabled {
			continue
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("chain %s (%d): %w", c.Name, c.ChainID, err)
		}
		_ = name
	}
	return nil
}

// IsBaseToken reports whether symbol is one of this chain's trusted
// USD-priced base tokens.
func (c ChainSpec) IsBaseToken(symbol string) bool {
	for _, s := range c.BaseTokens {
		if s == symbol {
			return true
		}
	}
	return false
}
