package types

import "github.com/ethereum/go-ethereum/common"

// OpportunityKind tags the variant payload carried by an Opportunity.
type OpportunityKind string

const (
	KindCrossDex         OpportunityKind = "cross_dex"
	KindTriangular       OpportunityKind = "triangular"
	KindCrossDexTriangular OpportunityKind = "cross_dex_triangular"
	KindCrossChain       OpportunityKind = "cross_chain"
	KindV3FeeTier        OpportunityKind = "v3_fee_tier"
)

// CrossDexPayload is the §4.4 opportunity payload.
type CrossDexPayload struct {
	Pair           [2]common.Address
	BuyDex         string
	SellDex        string
	BuyPrice       float64
	SellPrice      float64
	SpreadPct      float64
	OptimalAmount  float64 // amount_in, in units of Pair[1] (decimal-normalized)
	LiquidityFloor float64
}

// TriangularPayload is the §4.5 opportunity payload. Legs holds the ordered
// tokens of the cycle (length == number of hops + 1, first == last).
type TriangularPayload struct {
	Dexes         []string // one per leg; len==1 repeated entry for single-DEX cycles
	Legs          []common.Address
	CycleProduct  float64
	OptimalAmount float64
}

// V3FeeTierPayload is the §4.2 fee-tier-arbitrage opportunity payload.
type V3FeeTierPayload struct {
	Pair      [2]common.Address
	Dex       string
	BuyTier   uint32
	SellTier  uint32
	SpreadPct float64
}

// CrossChainPayload is the §4.6 opportunity payload.
type CrossChainPayload struct {
	Token       string
	BuyChainID  uint64
	SellChainID uint64
	BuyPrice    float64
	SellPrice   float64
	SpreadPct   float64
	BridgeCostUSD float64
	BridgeMinutes float64
}

// Opportunity is the single emitted, value-type event for every detector.
// Exactly one of the payload fields is populated, selected by Kind. Never
// mutated after construction.
type Opportunity struct {
	Kind          OpportunityKind
	ChainID       uint64 // 0 / unused for cross_chain; see CrossChain payload
	CrossDex      *CrossDexPayload
	Triangular    *TriangularPayload
	V3FeeTier     *V3FeeTierPayload
	CrossChain    *CrossChainPayload
	ProfitUSDNet  float64
	TradeSizeUSD  float64
	BlockNumber   uint64
	TimestampMs   int64
}

// TickCrossing is emitted by the V3 analyzer when a pool's tick moves by at
// least the configured threshold between two observations.
type TickCrossing struct {
	Pool              common.Address
	FromTick          int32
	ToTick            int32
	TicksCrossed      int32
	Direction         string // "up" or "down"
	PriceChangePct    float64
	TimestampMs       int64
}

// JitLiquidity is emitted when an add is matched by a same-tick remove of
// comparable magnitude within the JIT detection window.
type JitLiquidity struct {
	Pool              common.Address
	Tick              int32
	AddAmount         float64
	RemoveAmount      float64
	IsNearCurrentTick bool
	TimestampMs       int64
}

// Event is the union wrapper routed through the per-chain fan-in channel so
// a downstream collaborator reads one stream instead of three.
type Event struct {
	Opportunity  *Opportunity
	TickCrossing *TickCrossing
	JitLiquidity *JitLiquidity
}
