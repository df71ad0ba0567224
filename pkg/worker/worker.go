// Package worker implements the per-chain task of spec.md §4.7: subscribe
// to new blocks, fetch a price snapshot, run the cross-DEX, triangular,
// and V3 fee-tier detectors over it, and publish the results (plus
// tick-crossing events) on a single event stream.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ChoSanghyuk/dexarb/pkg/contractclient"
	"github.com/ChoSanghyuk/dexarb/pkg/detector"
	"github.com/ChoSanghyuk/dexarb/pkg/pricefetcher"
	"github.com/ChoSanghyuk/dexarb/pkg/transport"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/v3analyzer"
)

// Config bundles every detector's tunables for one chain worker.
type Config struct {
	CrossDex               detector.CrossDexConfig
	Triangular             detector.TriangularConfig
	V3FeeTier              detector.V3FeeTierConfig
	V3Analyzer             v3analyzer.Config
	WSManager              transport.WSManagerConfig
	BlockProcessingTimeout time.Duration
}

// DefaultConfig matches each sub-config's own defaults, plus spec.md §5's
// default block-processing timeout.
func DefaultConfig() Config {
	return Config{
		CrossDex:   detector.DefaultCrossDexConfig(),
		Triangular: detector.DefaultTriangularConfig(),
		V3FeeTier:  detector.DefaultV3FeeTierConfig(),
		V3Analyzer: v3analyzer.Config{
			CacheMaxAge:           v3analyzer.DefaultCacheMaxAge,
			TickCrossingThreshold: v3analyzer.DefaultTickCrossingThreshold,
			JitWindow:             v3analyzer.DefaultJitWindow,
			JitThreshold:          v3analyzer.DefaultJitThreshold,
			JitTickSpacingK:       1,
			TickWindow:            10,
		},
		WSManager:              transport.DefaultWSManagerConfig(),
		BlockProcessingTimeout: 5 * time.Second,
	}
}

// Stats is a point-in-time, value-type snapshot of one chain worker's
// counters — spec.md §4.7 point 3's "tracks its own stats", whose read-side
// contract isn't otherwise specified.
type Stats struct {
	BlocksProcessed     uint64
	LastFetchDurationMs int64
	OpportunitiesFound  uint64
	DroppedQuotes       uint64
}

// ChainWorker is the self-contained per-chain task spec.md §4.7 describes.
type ChainWorker struct {
	chain types.ChainSpec
	cfg   Config

	httpPool  *transport.HTTPPool
	wsManager *transport.WSManager

	resolver *pricefetcher.PoolResolver
	reader   *contractclient.PoolStateReader
	fetcher  *pricefetcher.Fetcher

	crossDex   *detector.CrossDexDetector
	triangular *detector.TriangularDetector
	v3FeeTier  *detector.V3FeeTierDetector
	analyzer   *v3analyzer.Analyzer

	tokenByAddr    map[common.Address]types.TokenSpec
	baseTokenAddrs []common.Address

	events    chan types.Event
	snapshots chan types.ChainPriceSnapshot
	logger    *zap.Logger

	mu          sync.Mutex
	stats       Stats
	lastBlockNo uint64

	shutdownOnce sync.Once
}

// New builds a chain worker: dials the HTTP pool, builds the WS manager
// (not yet started), and wires every fetcher/detector against chain.
func New(ctx context.Context, chain types.ChainSpec, cfg Config, logger *zap.Logger) (*ChainWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpPool, err := transport.NewHTTPPool(ctx, chain.RPC, logger)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", chain.Name, err)
	}

	var wsManager *transport.WSManager
	if len(chain.RPC.WS) > 0 {
		wsManager, err = transport.NewWSManager(chain.RPC.WS, cfg.WSManager, logger)
		if err != nil {
			httpPool.Shutdown()
			return nil, fmt.Errorf("chain %s: %w", chain.Name, err)
		}
	}

	resolver := pricefetcher.NewPoolResolver(httpPool)
	reader := contractclient.NewPoolStateReader(httpPool)
	fetcher := pricefetcher.NewFetcher(chain, resolver, reader)

	tokenByAddr := make(map[common.Address]types.TokenSpec, len(chain.Tokens))
	for _, t := range chain.Tokens {
		tokenByAddr[t.Address] = t
	}
	var baseTokenAddrs []common.Address
	for _, sym := range chain.BaseTokens {
		if t, ok := chain.Tokens[sym]; ok {
			baseTokenAddrs = append(baseTokenAddrs, t.Address)
		}
	}

	tickFetcher := contractclient.NewV3TickFetcher(httpPool)

	return &ChainWorker{
		chain:          chain,
		cfg:            cfg,
		httpPool:       httpPool,
		wsManager:      wsManager,
		resolver:       resolver,
		reader:         reader,
		fetcher:        fetcher,
		crossDex:       detector.NewCrossDexDetector(cfg.CrossDex),
		triangular:     detector.NewTriangularDetector(cfg.Triangular),
		v3FeeTier:      detector.NewV3FeeTierDetector(cfg.V3FeeTier),
		analyzer:       v3analyzer.NewAnalyzer(tickFetcher, cfg.V3Analyzer),
		tokenByAddr:    tokenByAddr,
		baseTokenAddrs: baseTokenAddrs,
		events:         make(chan types.Event, 256),
		snapshots:      make(chan types.ChainPriceSnapshot, 16),
		logger:         logger.With(zap.String("chain", chain.Name), zap.Uint64("chain_id", chain.ChainID)),
	}, nil
}

// Events returns the unified opportunity/tick-crossing stream for this
// chain, consumed by the coordinator.
func (w *ChainWorker) Events() <-chan types.Event { return w.events }

// Snapshots returns the per-block ChainPriceSnapshot stream, consumed by
// the coordinator to drive cross-chain detection — spec.md §4.8's
// `chain_id -> latest ChainPriceSnapshot` map.
func (w *ChainWorker) Snapshots() <-chan types.ChainPriceSnapshot { return w.snapshots }

// ChainID returns the chain this worker serves.
func (w *ChainWorker) ChainID() uint64 { return w.chain.ChainID }

// Stats returns a copy of the worker's current counters.
func (w *ChainWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run subscribes to new blocks and processes each one until ctx is
// cancelled or Shutdown is called, per spec.md §4.7 points 1-2.
func (w *ChainWorker) Run(ctx context.Context) error {
	if w.wsManager == nil {
		return fmt.Errorf("chain %s: no ws endpoints configured", w.chain.Name)
	}
	w.wsManager.Start(ctx)

	timeout := w.cfg.BlockProcessingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-w.wsManager.Blocks():
			if !ok {
				return nil
			}
			blockCtx, cancel := context.WithTimeout(ctx, timeout)
			w.processBlock(blockCtx, block.Number)
			cancel()
		}
	}
}

// processBlock fetches one block's snapshot and runs every detector over
// it, publishing results and updating stats. Errors are logged, not
// propagated — spec.md §7's per-call isolation applies at the block level
// too; one bad block must not stop the worker.
func (w *ChainWorker) processBlock(ctx context.Context, blockNumber uint64) {
	start := time.Now()
	snapshot, err := w.fetcher.FetchSnapshot(ctx, blockNumber)
	elapsed := time.Since(start)

	w.mu.Lock()
	w.stats.BlocksProcessed++
	w.stats.LastFetchDurationMs = elapsed.Milliseconds()
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("fetch snapshot failed", zap.Uint64("block", blockNumber), zap.Error(err))
		return
	}

	w.mu.Lock()
	stale := blockNumber <= w.lastBlockNo && w.lastBlockNo != 0
	if !stale {
		w.lastBlockNo = blockNumber
	} else {
		w.stats.DroppedQuotes++
	}
	w.mu.Unlock()
	if stale {
		w.logger.Debug("dropping out-of-order snapshot", zap.Uint64("block", blockNumber), zap.Uint64("last", w.lastBlockNo))
		return
	}

	select {
	case w.snapshots <- snapshot:
	default:
		w.logger.Warn("chain worker snapshot channel full, dropping snapshot")
	}

	opps := w.crossDex.Detect(snapshot, w.chain.Dexes, w.reserveLookup)
	if w.chain.Triangular.Enabled {
		opps = append(opps, w.triangular.Detect(snapshot, w.chain.Dexes, w.reserveLookup, w.baseTokenAddrs)...)
	}

	var ticksByAddr map[common.Address][]types.Tick
	if w.chain.V3.Enabled {
		w.analyzer.EvictStaleCache()
		ticksByAddr = w.fetchV3TickWindows(ctx)
		opps = append(opps, w.v3FeeTierOpportunities(snapshot, ticksByAddr)...)
	}

	for i := range opps {
		w.publish(types.Event{Opportunity: &opps[i]})
	}
	if len(opps) > 0 {
		w.mu.Lock()
		w.stats.OpportunitiesFound += uint64(len(opps))
		w.mu.Unlock()
	}

	for _, crossing := range w.tickCrossings(snapshot.TimestampMs) {
		c := crossing
		w.publish(types.Event{TickCrossing: &c})
	}
}

// fetchV3TickWindows asks the analyzer for a tick window around every V3
// pool's current tick — cached per spec.md §4.2's 30s TTL, only reaching
// the RPC layer via contractclient.V3TickFetcher on a cache miss. Errors
// are swallowed per-pool (the analyzer falls back to a stale cache entry
// or nil), matching spec.md §7's per-call isolation.
func (w *ChainWorker) fetchV3TickWindows(ctx context.Context) map[common.Address][]types.Tick {
	addresses := w.fetcher.LastAddresses()
	out := make(map[common.Address][]types.Tick)
	for key, state := range w.fetcher.LastStates() {
		if !state.IsV3() {
			continue
		}
		addr, ok := addresses[key]
		if !ok {
			continue
		}
		tickSpacing := v3analyzer.TickSpacingForFee(state.V3.FeeTier)
		ticks := w.analyzer.Ticks(ctx, addr, state.V3.Tick, tickSpacing)
		if len(ticks) > 0 {
			out[addr] = ticks
		}
	}
	return out
}

// reserveLookup adapts the fetcher's last raw V2 pool states into the
// shape detector.ReserveLookup needs; see adaptReserves.
func (w *ChainWorker) reserveLookup(pair [2]common.Address, dex string) (detector.PairReserves, bool) {
	return adaptReserves(pair, dex, w.fetcher.LastStates(), w.tokenByAddr)
}

// v3FeeTierOpportunities groups every V3 pool state by (pair, dex) across
// fee tiers, attaches each tier's tick window (ticksByAddr, from this
// block's fetchV3TickWindows), and runs the fee-tier-arbitrage detector on
// each group.
func (w *ChainWorker) v3FeeTierOpportunities(snapshot types.ChainPriceSnapshot, ticksByAddr map[common.Address][]types.Tick) []types.Opportunity {
	referenceTradeSizeUSD := w.cfg.V3FeeTier.TradeSizeUSD
	if referenceTradeSizeUSD <= 0 {
		referenceTradeSizeUSD = detector.DefaultV3TradeSizeUSD
	}
	groups := groupV3Quotes(w.fetcher.LastStates(), w.tokenByAddr, w.fetcher.LastAddresses(), ticksByAddr, w.chain.Native, referenceTradeSizeUSD)

	var out []types.Opportunity
	for gk, quotes := range groups {
		opp, ok := w.v3FeeTier.Detect(gk.pair, gk.dex, quotes, w.chain.ChainID, snapshot.BlockNumber, snapshot.TimestampMs)
		if ok {
			out = append(out, opp)
		}
	}
	return out
}

// tickCrossings observes every V3 pool's current tick through the
// analyzer's tick-crossing tracker and returns any crossing events
// produced, per spec.md §4.2/§9 ("published, not just computed").
func (w *ChainWorker) tickCrossings(nowMs int64) []types.TickCrossing {
	return observeTickCrossings(w.fetcher.LastStates(), w.fetcher.LastAddresses(), w.analyzer.ObserveTick, nowMs)
}

func (w *ChainWorker) publish(ev types.Event) {
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("chain worker event channel full, dropping event")
	}
}

// Shutdown cancels in-flight work and closes the transport pools, per
// spec.md §4.7 point 4 and §5's cancellation cascade.
func (w *ChainWorker) Shutdown() {
	w.shutdownOnce.Do(func() {
		if w.wsManager != nil {
			w.wsManager.Shutdown()
		}
		w.httpPool.Shutdown()
		close(w.events)
		close(w.snapshots)
	})
}
