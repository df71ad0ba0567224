package detector

import (
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/dexarb/pkg/bigmath"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// ErrCrossDexTriangularUnsupported is returned when a profitable cycle's
// legs span more than one router, per spec.md §4.5.
var ErrCrossDexTriangularUnsupported = fmt.Errorf("cross-DEX triangular arbitrage not supported")

// TriangularConfig bundles the knobs spec.md §4.5 and §6 name.
type TriangularConfig struct {
	MaxPathLength        int
	MinLiquidityUSD      float64
	MaxTradeSizeUSD      float64
	MinTradeUSD          float64
	GridSteps            int
	FlashLoanFeeFraction float64
	GasCostUSD           float64
}

// DefaultTriangularConfig matches spec.md's named defaults.
func DefaultTriangularConfig() TriangularConfig {
	return TriangularConfig{
		MaxPathLength:        4,
		MinLiquidityUSD:      1000,
		MaxTradeSizeUSD:      50000,
		MinTradeUSD:          100,
		GridSteps:            20,
		FlashLoanFeeFraction: 0.0009,
		GasCostUSD:           5,
	}
}

// edge is one directed graph edge: A -> B on one DEX, carrying the log
// weight and the raw reserves needed for the trade-size search.
type edge struct {
	To         common.Address
	Dex        string
	Router     common.Address
	Fee        float64
	Weight     float64 // -log(price_forward * (1 - fee))
	ReserveIn  float64
	ReserveOut float64
}

// graph is an adjacency list over tokens, built per chain from every DEX's
// configured pairs, per spec.md §4.5.
type graph map[common.Address][]edge

// BuildGraph constructs the directed weighted graph spec.md §4.5
// describes: for each pair (A,B) quoted on each DEX, insert A->B with
// weight -log(price_forward*(1-fee)) and B->A with weight
// -log((1/price_forward)*(1-fee)) — the standard Bellman-Ford arbitrage
// encoding, where a cycle whose rates multiply to more than 1 (profitable)
// has a negative total weight.
func BuildGraph(snapshot types.ChainPriceSnapshot, dexes map[string]types.DexSpec, reserves ReserveLookup) graph {
	g := make(graph)

	for pair, byDex := range snapshot.Quotes {
		for dexName, q := range byDex {
			if !q.Valid() {
				continue
			}
			fee := dexFeeFraction(dexes, dexName)
			router := dexes[dexName].Router

			r, ok := reserves(pair, dexName)
			if !ok {
				continue
			}

			forwardWeight := -math.Log(q.Price * (1 - fee))
			reverseWeight := -math.Log((1 / q.Price) * (1 - fee))

			g[pair[0]] = append(g[pair[0]], edge{
				To: pair[1], Dex: dexName, Router: router, Fee: fee, Weight: forwardWeight,
				ReserveIn: r.ReserveIn, ReserveOut: r.ReserveOut,
			})
			g[pair[1]] = append(g[pair[1]], edge{
				To: pair[0], Dex: dexName, Router: router, Fee: fee, Weight: reverseWeight,
				ReserveIn: r.ReserveOut, ReserveOut: r.ReserveIn,
			})
		}
	}
	return g
}

// cyclePath is one candidate negative-weight cycle found by the DFS.
type cyclePath struct {
	tokens  []common.Address
	edges   []edge
	product float64
}

// TriangularDetector searches each base token for a negative-weight cycle
// (a profitable arbitrage loop), per spec.md §4.5.
type TriangularDetector struct {
	cfg TriangularConfig
}

// NewTriangularDetector builds a detector with cfg.
func NewTriangularDetector(cfg TriangularConfig) *TriangularDetector {
	return &TriangularDetector{cfg: cfg}
}

// Detect finds every profitable cycle reachable from baseTokens within
// MaxPathLength hops, converts each to an Opportunity, and returns them
// sorted by net profit descending. A cycle whose legs span multiple
// routers is skipped silently rather than failing the scan.
func (d *TriangularDetector) Detect(snapshot types.ChainPriceSnapshot, dexes map[string]types.DexSpec, reserves ReserveLookup, baseTokens []common.Address) []types.Opportunity {
	g := BuildGraph(snapshot, dexes, reserves)

	var out []types.Opportunity
	for _, base := range baseTokens {
		for _, cycle := range findNegativeCycles(g, base, d.cfg.MaxPathLength) {
			opp, err := d.toOpportunity(cycle, snapshot)
			if err != nil {
				continue
			}
			out = append(out, opp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProfitUSDNet > out[j].ProfitUSDNet })
	return out
}

// findNegativeCycles runs an exhaustive DFS bounded by maxLen from start,
// pruning once the running product can no longer feasibly go negative —
// spec.md §4.5's baseline algorithm for a graph this small (hundreds of
// edges).
func findNegativeCycles(g graph, start common.Address, maxLen int) []cyclePath {
	var results []cyclePath

	var visit func(current common.Address, path []common.Address, edges []edge, weightSum float64)
	visit = func(current common.Address, path []common.Address, edges []edge, weightSum float64) {
		if len(path) > 1 && current == start {
			if weightSum < 0 {
				results = append(results, cyclePath{
					tokens:  append(append([]common.Address{}, path...)),
					edges:   append([]edge{}, edges...),
					product: math.Exp(-weightSum),
				})
			}
			return
		}
		if len(path) > maxLen {
			return
		}
		// Prune: once a cycle can't reach current before exceeding maxLen with
		// any chance of a negative total, continuing just wastes the search —
		// a full bound needs per-edge min-weight knowledge we don't track, so
		// this prune only catches the degenerate already-positive-and-long case.
		if weightSum > 0 && len(path) == maxLen {
			return
		}

		for _, e := range g[current] {
			if e.To == start && len(path) < 2 {
				continue // forbid a trivial 1-hop "cycle"
			}
			visit(e.To, append(path, e.To), append(edges, e), weightSum+e.Weight)
		}
	}

	visit(start, []common.Address{start}, nil, 0)
	return results
}

// toOpportunity converts a found cycle into a priced Opportunity, enforcing
// the single-router constraint for multi-DEX cycles.
func (d *TriangularDetector) toOpportunity(cycle cyclePath, snapshot types.ChainPriceSnapshot) (types.Opportunity, error) {
	router := cycle.edges[0].Router
	singleRouter := true
	dexNames := make([]string, len(cycle.edges))
	for i, e := range cycle.edges {
		dexNames[i] = e.Dex
		if e.Router != router {
			singleRouter = false
		}
	}

	kind := types.KindTriangular
	if !allSameDex(dexNames) {
		kind = types.KindCrossDexTriangular
		if !singleRouter {
			return types.Opportunity{}, ErrCrossDexTriangularUnsupported
		}
	}

	amountIn, profit := d.optimalCycleTradeSize(cycle.edges)
	if profit <= 0 {
		return types.Opportunity{}, fmt.Errorf("unprofitable after sizing")
	}

	return types.Opportunity{
		Kind:    kind,
		ChainID: snapshot.ChainID,
		Triangular: &types.TriangularPayload{
			Dexes:         dexNames,
			Legs:          cycle.tokens,
			CycleProduct:  cycle.product,
			OptimalAmount: amountIn,
		},
		ProfitUSDNet: profit,
		TradeSizeUSD: amountIn,
		BlockNumber:  snapshot.BlockNumber,
		TimestampMs:  snapshot.TimestampMs,
	}, nil
}

func allSameDex(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i] != names[0] {
			return false
		}
	}
	return true
}

// optimalCycleTradeSize searches amount_in over a coarse grid in
// [max(min_trade_usd, max_amount/50), max_amount] (clamped to 1 if
// max_amount/50 rounds to 0), computing each leg's output with that leg's
// DEX fee and subtracting the flash-loan fee once at the end — spec.md
// §4.5's explicit "never at each hop" rule.
func (d *TriangularDetector) optimalCycleTradeSize(edges []edge) (float64, float64) {
	lo := d.cfg.MaxTradeSizeUSD / 50
	if lo < 1 {
		lo = 1
	}
	if lo < d.cfg.MinTradeUSD {
		lo = d.cfg.MinTradeUSD
	}

	bestAmount, bestProfit := 0.0, 0.0
	for _, amountIn := range logGrid(lo, d.cfg.MaxTradeSizeUSD, d.cfg.GridSteps) {
		out := amountIn
		for _, e := range edges {
			out = v2Out(out, e.ReserveIn, e.ReserveOut, e.Fee)
			if out <= 0 {
				break
			}
		}
		flashFee := amountIn * d.cfg.FlashLoanFeeFraction
		profit := bigmath.NewUSD(out).
			Sub(bigmath.NewUSD(amountIn)).
			Sub(bigmath.NewUSD(flashFee)).
			Sub(bigmath.NewUSD(d.cfg.GasCostUSD)).
			Float64()
		if profit > bestProfit {
			bestProfit, bestAmount = profit, amountIn
		}
	}
	return bestAmount, bestProfit
}
