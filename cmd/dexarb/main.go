// Command dexarb wires together the per-chain workers and the cross-chain
// coordinator described in spec.md §4.7-4.8: load config, build one
// ChainWorker per configured chain, run them all under a Coordinator, and
// serve their aggregate state as Prometheus metrics until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ChoSanghyuk/dexarb/configs"
	"github.com/ChoSanghyuk/dexarb/internal/logging"
	"github.com/ChoSanghyuk/dexarb/internal/metrics"
	"github.com/ChoSanghyuk/dexarb/pkg/coordinator"
	"github.com/ChoSanghyuk/dexarb/pkg/detector"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/worker"
)

func main() {
	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("dexarb exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// .env is optional; a missing file is not an error, matching the
	// teacher's test-time secret loading convention.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	configPath := "configs/config.yml"
	if v := os.Getenv("DEXARB_CONFIG"); v != "" {
		configPath = v
	}

	conf, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	chainSpecs, err := conf.ChainSpecs()
	if err != nil {
		return fmt.Errorf("build chain specs: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	chainNames := make(map[uint64]string, len(chainSpecs))
	workers := make([]*worker.ChainWorker, 0, len(chainSpecs))
	for _, spec := range chainSpecs {
		chainNames[spec.ChainID] = spec.Name
		if !spec.Enabled {
			logger.Info("chain disabled, skipping", zap.String("chain", spec.Name))
			continue
		}

		w, err := worker.New(ctx, spec, workerConfig(spec), logger)
		if err != nil {
			return fmt.Errorf("chain %s: %w", spec.Name, err)
		}
		workers = append(workers, w)
	}

	crossChainCfg := detector.CrossChainConfig{
		Enabled:       conf.CrossChain.Enabled,
		MinProfitUSD:  conf.CrossChain.MinProfitUSD,
		MaxPriceAgeMs: conf.CrossChain.MaxPriceAgeMs,
		MinSpreadPct:  conf.CrossChain.MinSpreadPct,
		TradeSizeUSD:  10000,
	}

	coord := coordinator.New(workers, chainNames, crossChainCfg, conf.BridgeCost, logger)
	for chainID, spec := range specsByChainID(chainSpecs) {
		coord.RegisterChainTokens(chainID, spec.Tokens)
	}

	httpSrv := &http.Server{
		Addr:    metricsAddr(),
		Handler: promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}),
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range coord.Events() {
			logEvent(logger, ev)
			if ev.Opportunity != nil {
				reg.ObserveOpportunity(*ev.Opportunity)
			}
		}
	}()
	go reportStats(ctx, coord, reg)

	runErr := coord.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}
	coord.Shutdown()
	<-done

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("coordinator: %w", runErr)
	}
	return nil
}

// workerConfig builds a worker.Config from the detector-level defaults,
// overridden by spec's per-chain knobs where the config schema carries them.
func workerConfig(spec types.ChainSpec) worker.Config {
	cfg := worker.DefaultConfig()

	cfg.Triangular.MaxPathLength = spec.Triangular.MaxPathLength
	cfg.Triangular.MinLiquidityUSD = spec.Triangular.MinLiquidityUSD
	cfg.Triangular.MaxTradeSizeUSD = spec.Triangular.MaxTradeSizeUSD

	if spec.V3.MinProfitPct > 0 {
		cfg.V3FeeTier.SpreadThresholdPct = spec.V3.MinProfitPct
	}

	if spec.Monitoring.BlockProcessingTimeoutMs > 0 {
		cfg.BlockProcessingTimeout = time.Duration(spec.Monitoring.BlockProcessingTimeoutMs) * time.Millisecond
	}
	return cfg
}

// specsByChainID indexes chainSpecs for RegisterChainTokens lookups.
func specsByChainID(chainSpecs []types.ChainSpec) map[uint64]types.ChainSpec {
	out := make(map[uint64]types.ChainSpec, len(chainSpecs))
	for _, s := range chainSpecs {
		out[s.ChainID] = s
	}
	return out
}

func metricsAddr() string {
	if v := os.Getenv("DEXARB_METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}

func logEvent(logger *zap.Logger, ev types.Event) {
	switch {
	case ev.Opportunity != nil:
		logger.Info("opportunity detected",
			zap.String("kind", string(ev.Opportunity.Kind)),
			zap.Uint64("chain_id", ev.Opportunity.ChainID),
			zap.Float64("profit_usd_net", ev.Opportunity.ProfitUSDNet),
		)
	case ev.TickCrossing != nil:
		logger.Debug("tick crossing observed",
			zap.String("pool", ev.TickCrossing.Pool.Hex()),
			zap.Int32("ticks_crossed", ev.TickCrossing.TicksCrossed),
		)
	case ev.JitLiquidity != nil:
		logger.Info("jit liquidity event observed", zap.String("pool", ev.JitLiquidity.Pool.Hex()))
	}
}

// reportStats periodically pushes the coordinator's aggregate stats into
// the metrics registry, independent of the per-event ObserveOpportunity
// calls in the event loop above.
func reportStats(ctx context.Context, coord *coordinator.Coordinator, reg *metrics.Registry) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.ObserveCoordinator(coord.Stats())
		}
	}
}
