// Package coordinator owns every chain worker, fans their snapshots into
// the cross-chain detector, and multiplexes every opportunity onto one
// outbound stream, per spec.md §4.8.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChoSanghyuk/dexarb/pkg/detector"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/worker"
)

// BridgeCostLookup resolves a bridge cost between two chain names, matching
// configs.Config.BridgeCost's signature so the coordinator can wrap it
// without pkg/coordinator depending on the configs package.
type BridgeCostLookup func(fromName, toName string) (costUSD float64, minutes float64)

// Stats is a value-type snapshot of the coordinator's aggregate counters.
type Stats struct {
	Chains             int
	TotalBlocksProcessed uint64
	TotalOpportunities   uint64
	CrossChainOpportunities uint64
	PerChain           map[uint64]worker.Stats
}

// Coordinator runs N chain workers as independent errgroup tasks and
// layers cross-chain detection over their snapshot stream.
type Coordinator struct {
	workers    []*worker.ChainWorker
	crossChain *detector.CrossChainDetector

	events chan types.Event
	logger *zap.Logger

	shutdownTimeout time.Duration

	mu      sync.Mutex
	latest  map[uint64]types.ChainPriceSnapshot
	symbols map[uint64]map[string]string // chainID -> token address string -> symbol

	crossChainOpps uint64
}

// New builds a coordinator over workers, wiring bridgeCost (a chain-name
// keyed lookup, e.g. configs.Config.BridgeCost) into the cross-chain
// detector via a chain_id -> name adapter.
func New(workers []*worker.ChainWorker, chainNames map[uint64]string, cfg detector.CrossChainConfig, bridgeCost BridgeCostLookup, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	adapted := func(fromID, toID uint64) (float64, float64) {
		from, to := chainNames[fromID], chainNames[toID]
		return bridgeCost(from, to)
	}

	return &Coordinator{
		workers:         workers,
		crossChain:      detector.NewCrossChainDetector(cfg, adapted),
		events:          make(chan types.Event, 1024),
		logger:          logger,
		shutdownTimeout: 30 * time.Second,
		latest:          make(map[uint64]types.ChainPriceSnapshot),
		symbols:         make(map[uint64]map[string]string),
	}
}

// Events returns the unified opportunity/tick-crossing stream across every
// chain plus cross-chain detections.
func (c *Coordinator) Events() <-chan types.Event { return c.events }

// Run starts every chain worker as an errgroup task and relays their
// events, until ctx is cancelled. Per
// chain, a failing worker does not stop the others — spec.md §5's "each
// worker is a failure domain" — so worker errors are logged, not
// propagated through the group.
func (c *Coordinator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range c.workers {
		w := w
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && gctx.Err() == nil {
				c.logger.Error("chain worker exited", zap.Uint64("chain_id", w.ChainID()), zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			c.relayEvents(gctx, w)
			return nil
		})
		g.Go(func() error {
			c.relaySnapshots(gctx, w)
			return nil
		})
	}

	return g.Wait()
}

func (c *Coordinator) relayEvents(ctx context.Context, w *worker.ChainWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			c.publish(ev)
		}
	}
}

func (c *Coordinator) relaySnapshots(ctx context.Context, w *worker.ChainWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-w.Snapshots():
			if !ok {
				return
			}
			c.onSnapshot(w.ChainID(), snap)
		}
	}
}

// onSnapshot records snap as chainID's latest and re-runs cross-chain
// detection over every chain's latest known snapshot, per spec.md §4.8.
func (c *Coordinator) onSnapshot(chainID uint64, snap types.ChainPriceSnapshot) {
	c.mu.Lock()
	c.latest[chainID] = snap
	registry := c.buildRegistryLocked()
	c.mu.Unlock()

	opps := c.crossChain.DetectAll(registry, snap.TimestampMs)
	for i := range opps {
		c.mu.Lock()
		c.crossChainOpps++
		c.mu.Unlock()
		c.publish(types.Event{Opportunity: &opps[i]})
	}
}

// buildRegistryLocked turns every chain's latest snapshot into the
// token-symbol -> per-chain-price registry detector.CrossChainDetector
// needs, using each pair's quote-token USD price
// (pricefetcher.Fetcher.buildQuote's convention: PriceUSD is the non-base
// token's USD value). Caller must hold c.mu.
func (c *Coordinator) buildRegistryLocked() map[string][]detector.TokenChainPrice {
	registry := make(map[string][]detector.TokenChainPrice)

	for chainID, snap := range c.latest {
		symbolOf, ok := c.symbols[chainID]
		if !ok {
			continue
		}
		for pair, byDex := range snap.Quotes {
			symbol, ok := symbolOf[pair[1].Hex()]
			if !ok {
				continue
			}
			best, ok := bestQuote(byDex)
			if !ok {
				continue
			}
			registry[symbol] = append(registry[symbol], detector.TokenChainPrice{
				ChainID:     chainID,
				PriceUSD:    best.PriceUSD,
				TimestampMs: best.TimestampMs,
			})
		}
	}
	return registry
}

// bestQuote picks the highest-liquidity quote among a pair's per-DEX
// quotes, since a deep pool's price is the more reliable reference.
func bestQuote(byDex map[string]types.PriceQuote) (types.PriceQuote, bool) {
	var best types.PriceQuote
	found := false
	for _, q := range byDex {
		if !q.Valid() || q.PriceUSD <= 0 {
			continue
		}
		if !found || q.LiquidityUSDFloor > best.LiquidityUSDFloor {
			best = q
			found = true
		}
	}
	return best, found
}

// RegisterChainTokens records chainID's address->symbol map so incoming
// snapshots can be resolved to cross-chain-comparable token symbols. Must
// be called once per chain before Run, typically from the same ChainSpec
// used to build each ChainWorker.
func (c *Coordinator) RegisterChainTokens(chainID uint64, tokens map[string]types.TokenSpec) {
	symbolOf := make(map[string]string, len(tokens))
	for symbol, t := range tokens {
		symbolOf[t.Address.Hex()] = symbol
	}
	c.mu.Lock()
	c.symbols[chainID] = symbolOf
	c.mu.Unlock()
}

// Stats returns an aggregate snapshot of every chain worker's counters
// plus the coordinator's own cross-chain opportunity count.
func (c *Coordinator) Stats() Stats {
	perChain := make(map[uint64]worker.Stats, len(c.workers))
	var totalBlocks, totalOpps uint64
	for _, w := range c.workers {
		s := w.Stats()
		perChain[w.ChainID()] = s
		totalBlocks += s.BlocksProcessed
		totalOpps += s.OpportunitiesFound
	}

	c.mu.Lock()
	crossChainOpps := c.crossChainOpps
	c.mu.Unlock()

	return Stats{
		Chains:                  len(c.workers),
		TotalBlocksProcessed:    totalBlocks,
		TotalOpportunities:      totalOpps + crossChainOpps,
		CrossChainOpportunities: crossChainOpps,
		PerChain:                perChain,
	}
}

func (c *Coordinator) publish(ev types.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("coordinator event channel full, dropping event")
	}
}

// Shutdown cascades a cancellation-driven stop to every chain worker,
// waiting up to its configured timeout for them to close down — spec.md
// §4.8 and §5's "joins all workers with a timeout".
func (c *Coordinator) Shutdown() {
	done := make(chan struct{})
	go func() {
		for _, w := range c.workers {
			w.Shutdown()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(c.shutdownTimeout):
		c.logger.Warn("coordinator shutdown timed out waiting for chain workers")
	}
	close(c.events)
}
