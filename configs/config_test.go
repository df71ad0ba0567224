package configs

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
chains:
  - chain_id: 1
    name: ethereum
    enabled: true
    block_time_ms: 12000
    native_token:
      symbol: ETH
      decimals: 18
      wrapped: "0x0000000000000000000000000000000000000001"
      price_usd_fallback: 3000
    rpc:
      http: ["https://rpc1.example"]
      ws: ["wss://ws1.example"]
      max_requests_per_minute: 300
      request_delay_ms: 50
      retry_attempts: 3
      retry_delay_ms: 200
    dexes:
      uniswap_v2:
        kind: v2
        router: "0x0000000000000000000000000000000000000002"
        factory_or_vault: "0x0000000000000000000000000000000000000003"
        v2_fee: 0.003
        tvl_rank: 1
        enabled: true
    dex:
      sushiswap:
        kind: v2
        router: "0x0000000000000000000000000000000000000004"
        factory_or_vault: "0x0000000000000000000000000000000000000005"
        v2_fee: 0.003
        tvl_rank: 2
        enabled: true
    tokens:
      WETH:
        address: "0x0000000000000000000000000000000000000001"
        decimals: 18
      USDC:
        address: "0x0000000000000000000000000000000000000006"
        decimals: 6
    base_tokens: ["WETH"]
cross_chain:
  enabled: true
  min_profit_usd: 10
  max_price_age_ms: 5000
  min_spread_pct: 0.5
  bridge_costs:
    ethereum:
      polygon:
        cost_usd: 12.5
        minutes: 15
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadConfig_ParsesChainsAndCrossChain(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(conf.Chains) != 1 {
		t.Fatalf("len(Chains) = %d, want 1", len(conf.Chains))
	}
	if !conf.CrossChain.Enabled || conf.CrossChain.MinProfitUSD != 10 {
		t.Fatalf("cross_chain not parsed as expected: %+v", conf.CrossChain)
	}
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestChainYAML_MergedDexesCombinesDexAndDexesPreferringDexes(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	spec, err := conf.Chains[0].ToChainSpec()
	if err != nil {
		t.Fatalf("ToChainSpec: %v", err)
	}
	if len(spec.Dexes) != 2 {
		t.Fatalf("len(Dexes) = %d, want 2 (one from dexes, one from dex)", len(spec.Dexes))
	}
	if _, ok := spec.Dexes["uniswap_v2"]; !ok {
		t.Fatal("expected uniswap_v2 from the dexes block")
	}
	if _, ok := spec.Dexes["sushiswap"]; !ok {
		t.Fatal("expected sushiswap from the dex alias block")
	}
}

func TestChainSpecs_ResolvesEveryChain(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	specs, err := conf.ChainSpecs()
	if err != nil {
		t.Fatalf("ChainSpecs: %v", err)
	}
	if len(specs) != 1 || specs[0].ChainID != 1 || specs[0].Name != "ethereum" {
		t.Fatalf("ChainSpecs = %+v, want one ethereum chain", specs)
	}
	if len(specs[0].Tokens) != 2 {
		t.Fatalf("len(Tokens) = %d, want 2", len(specs[0].Tokens))
	}
}

func TestBridgeCost_DirectRouteHit(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cost, minutes := conf.BridgeCost("ethereum", "polygon")
	if cost != 12.5 || minutes != 15 {
		t.Fatalf("BridgeCost(ethereum, polygon) = (%v, %v), want (12.5, 15)", cost, minutes)
	}
}

func TestBridgeCost_FallsBackToReverseRoute(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cost, minutes := conf.BridgeCost("polygon", "ethereum")
	if cost != 12.5 || minutes != 15 {
		t.Fatalf("BridgeCost(polygon, ethereum) = (%v, %v), want reverse-route (12.5, 15)", cost, minutes)
	}
}

func TestBridgeCost_UnknownRouteReturnsDefault(t *testing.T) {
	conf, err := LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	cost, minutes := conf.BridgeCost("arbitrum", "optimism")
	if cost != 25 || minutes != 30 {
		t.Fatalf("BridgeCost(unknown) = (%v, %v), want default (25, 30)", cost, minutes)
	}
}
