// Package configs loads the engine's YAML configuration and converts it
// into the immutable types.ChainSpec values each chain worker is built
// from.
package configs

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// Config is the root of config.yml: one entry per chain plus the global
// cross-chain settings that span them.
type Config struct {
	Chains     []ChainYAML          `yaml:"chains"`
	CrossChain CrossChainYAML       `yaml:"cross_chain"`
}

// NativeTokenYAML mirrors spec.md §6's native_token block.
type NativeTokenYAML struct {
	Symbol          string  `yaml:"symbol"`
	Decimals        uint8   `yaml:"decimals"`
	Wrapped         string  `yaml:"wrapped"`
	PriceUSDFallback float64 `yaml:"price_usd_fallback"`
}

// RPCYAML mirrors spec.md §6's rpc block.
type RPCYAML struct {
	HTTP                 []string `yaml:"http"`
	WS                   []string `yaml:"ws"`
	MaxRequestsPerMinute int      `yaml:"max_requests_per_minute"`
	RequestDelayMs       int      `yaml:"request_delay_ms"`
	RetryAttempts        int      `yaml:"retry_attempts"`
	RetryDelayMs         int      `yaml:"retry_delay_ms"`
}

// DexYAML is one entry of a chain's dexes map.
type DexYAML struct {
	Kind           string   `yaml:"kind"`
	Router         string   `yaml:"router"`
	FactoryOrVault string   `yaml:"factory_or_vault"`
	V2Fee          float64  `yaml:"v2_fee"`
	V3FeeTiers     []uint32 `yaml:"v3_fee_tiers"`
	TVLRank        int      `yaml:"tvl_rank"`
	Enabled        bool     `yaml:"enabled"`
}

// TokenYAML is one entry of a chain's tokens map.
type TokenYAML struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// TradingYAML mirrors spec.md §6's trading block.
type TradingYAML struct {
	MinProfitPct      float64 `yaml:"min_profit_pct"`
	MaxSlippagePct    float64 `yaml:"max_slippage_pct"`
	GasPriceGwei      float64 `yaml:"gas_price_gwei"`
	EstimatedGasLimit uint64  `yaml:"estimated_gas_limit"`
}

// MonitoringYAML mirrors spec.md §6's monitoring block.
type MonitoringYAML struct {
	MaxPairs                 int `yaml:"max_pairs"`
	CacheSize                int `yaml:"cache_size"`
	BlockProcessingTimeoutMs int `yaml:"block_processing_timeout_ms"`
}

// TriangularYAML mirrors spec.md §6's triangular block.
type TriangularYAML struct {
	Enabled         bool    `yaml:"enabled"`
	MaxPathLength   int     `yaml:"max_path_length"`
	MinLiquidityUSD float64 `yaml:"min_liquidity_usd"`
	MaxTradeSizeUSD float64 `yaml:"max_trade_size_usd"`
}

// V3YAML mirrors spec.md §6's v3 block.
type V3YAML struct {
	Enabled         bool     `yaml:"enabled"`
	FeeTiers        []uint32 `yaml:"fee_tiers"`
	MinLiquidityUSD float64  `yaml:"min_liquidity_usd"`
	MinProfitPct    float64  `yaml:"min_profit_pct"`
}

// FlashLoanYAML mirrors spec.md §6's flash_loan block.
type FlashLoanYAML struct {
	Providers         []FlashLoanProviderYAML `yaml:"providers"`
	PreferredProvider string                  `yaml:"preferred_provider"`
}

// FlashLoanProviderYAML is one named flash-loan source and its fee.
type FlashLoanProviderYAML struct {
	Name        string  `yaml:"name"`
	FeeFraction float64 `yaml:"fee_fraction"`
}

// BridgeYAML is one entry of a chain's bridges map.
type BridgeYAML struct {
	Router  string `yaml:"router"`
	Enabled bool   `yaml:"enabled"`
}

// ChainYAML is the full per-chain configuration object from spec.md §6.
type ChainYAML struct {
	ChainID     uint64                 `yaml:"chain_id"`
	Name        string                 `yaml:"name"`
	Enabled     bool                   `yaml:"enabled"`
	BlockTimeMs int                    `yaml:"block_time_ms"`
	NativeToken NativeTokenYAML        `yaml:"native_token"`

	RPC RPCYAML `yaml:"rpc"`

	// Dexes is the canonical key. dex (singular) is accepted as an alias
	// for backward compatibility and normalized at load time; per
	// spec.md §9 only one of the two should ever be populated.
	Dexes map[string]DexYAML `yaml:"dexes"`
	Dex   map[string]DexYAML `yaml:"dex"`

	Tokens     map[string]TokenYAML `yaml:"tokens"`
	BaseTokens []string             `yaml:"base_tokens"`

	Trading    TradingYAML    `yaml:"trading"`
	Monitoring MonitoringYAML `yaml:"monitoring"`
	Triangular TriangularYAML `yaml:"triangular"`
	V3         V3YAML         `yaml:"v3"`

	FlashLoan FlashLoanYAML `yaml:"flash_loan"`

	Bridges map[string]BridgeYAML `yaml:"bridges"`
}

// CrossChainYAML is the global cross-chain configuration from spec.md §6.
type CrossChainYAML struct {
	Enabled        bool    `yaml:"enabled"`
	MinProfitUSD   float64 `yaml:"min_profit_usd"`
	MaxPriceAgeMs  int64   `yaml:"max_price_age_ms"`
	MinSpreadPct   float64 `yaml:"min_spread_pct"`

	Tokens map[string]map[uint64]string `yaml:"cross_chain_tokens"` // symbol -> chain_id -> address

	// BridgeCosts is from -> to -> cost.
	BridgeCosts map[string]map[string]BridgeCostYAML `yaml:"bridge_costs"`
}

// BridgeCostYAML is one entry of the global bridge-cost table.
type BridgeCostYAML struct {
	CostUSD float64 `yaml:"cost_usd"`
	Minutes float64 `yaml:"minutes"`
}

// LoadConfig reads and parses config.yml into a Config struct, matching the
// teacher's os.ReadFile + yaml.Unmarshal + wrapped-error shape.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// mergedDexes normalizes the dex/dexes duplication (spec.md §9): dexes is
// canonical; any entries present only under dex are merged in, with dexes
// winning a key collision.
func (c ChainYAML) mergedDexes() map[string]DexYAML {
	merged := make(map[string]DexYAML, len(c.Dex)+len(c.Dexes))
	for name, d := range c.Dex {
		merged[name] = d
	}
	for name, d := range c.Dexes {
		merged[name] = d
	}
	return merged
}

// ToChainSpec converts one parsed ChainYAML entry into the immutable
// types.ChainSpec the rest of the engine operates on, validating it in the
// process.
func (c ChainYAML) ToChainSpec() (types.ChainSpec, error) {
	spec := types.ChainSpec{
		ChainID:     c.ChainID,
		Name:        c.Name,
		Enabled:     c.Enabled,
		BlockTimeMs: c.BlockTimeMs,
		Native: types.NativeToken{
			Symbol:           c.NativeToken.Symbol,
			Decimals:         c.NativeToken.Decimals,
			Wrapped:          common.HexToAddress(c.NativeToken.Wrapped),
			PriceUSDFallback: c.NativeToken.PriceUSDFallback,
		},
		RPC: types.RPCParams{
			HTTP:                 c.RPC.HTTP,
			WS:                   c.RPC.WS,
			MaxRequestsPerMinute: c.RPC.MaxRequestsPerMinute,
			RequestDelayMs:       c.RPC.RequestDelayMs,
			RetryAttempts:        c.RPC.RetryAttempts,
			RetryDelayMs:         c.RPC.RetryDelayMs,
		},
		Dexes:      make(map[string]types.DexSpec),
		Tokens:     make(map[string]types.TokenSpec),
		BaseTokens: c.BaseTokens,
		Trading: types.TradingParams{
			MinProfitPct:      c.Trading.MinProfitPct,
			MaxSlippagePct:    c.Trading.MaxSlippagePct,
			GasPriceGwei:      c.Trading.GasPriceGwei,
			EstimatedGasLimit: c.Trading.EstimatedGasLimit,
		},
		Monitoring: types.MonitoringParams{
			MaxPairs:                 c.Monitoring.MaxPairs,
			CacheSize:                c.Monitoring.CacheSize,
			BlockProcessingTimeoutMs: c.Monitoring.BlockProcessingTimeoutMs,
		},
		Triangular: types.TriangularParams{
			Enabled:         c.Triangular.Enabled,
			MaxPathLength:   c.Triangular.MaxPathLength,
			MinLiquidityUSD: c.Triangular.MinLiquidityUSD,
			MaxTradeSizeUSD: c.Triangular.MaxTradeSizeUSD,
		},
		V3: types.V3Params{
			Enabled:         c.V3.Enabled,
			FeeTiers:        c.V3.FeeTiers,
			MinLiquidityUSD: c.V3.MinLiquidityUSD,
			MinProfitPct:    c.V3.MinProfitPct,
		},
		PreferredFlashLoan: c.FlashLoan.PreferredProvider,
		Bridges:            make(map[string]types.BridgeSpec),
	}

	for name, d := range c.mergedDexes() {
		spec.Dexes[name] = types.DexSpec{
			Name:           name,
			Kind:           types.DexKind(d.Kind),
			Router:         common.HexToAddress(d.Router),
			FactoryOrVault: common.HexToAddress(d.FactoryOrVault),
			V2FeeFraction:  d.V2Fee,
			V3FeeTiers:     d.V3FeeTiers,
			TVLRank:        d.TVLRank,
			Enabled:        d.Enabled,
		}
	}

	for symbol, t := range c.Tokens {
		spec.Tokens[symbol] = types.TokenSpec{
			Symbol:   symbol,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		}
	}

	for _, p := range c.FlashLoan.Providers {
		spec.FlashLoanProviders = append(spec.FlashLoanProviders, types.FlashLoanProvider{
			Name:        p.Name,
			FeeFraction: p.FeeFraction,
		})
	}

	for name, b := range c.Bridges {
		spec.Bridges[name] = types.BridgeSpec{
			Name:    name,
			Router:  common.HexToAddress(b.Router),
			Enabled: b.Enabled,
		}
	}

	if err := spec.Validate(); err != nil {
		return types.ChainSpec{}, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	return spec, nil
}

// ChainSpecs converts every configured chain, skipping none (disabled
// chains are still returned with Enabled=false so the coordinator can
// report on them without starting a worker).
func (c *Config) ChainSpecs() ([]types.ChainSpec, error) {
	specs := make([]types.ChainSpec, 0, len(c.Chains))
	for _, cy := range c.Chains {
		spec, err := cy.ToChainSpec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// BridgeCost looks up the global bridge-cost table entry for from->to,
// falling back to the reverse route, then to the spec's documented default
// of 25 USD / 30 minutes.
func (c *Config) BridgeCost(from, to string) (costUSD float64, minutes float64) {
	if row, ok := c.CrossChain.BridgeCosts[from]; ok {
		if v, ok := row[to]; ok {
			return v.CostUSD, v.Minutes
		}
	}
	if row, ok := c.CrossChain.BridgeCosts[to]; ok {
		if v, ok := row[from]; ok {
			return v.CostUSD, v.Minutes
		}
	}
	return 25, 30
}
