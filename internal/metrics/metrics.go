// Package metrics exposes the blocks-processed, opportunities-found,
// fetch-duration and endpoint-health surfaces spec.md §4.7/§4.1 describe as
// worker/pool-internal state, via prometheus/client_golang instruments.
package metrics

import (
	"strconv"

	"github.com/ChoSanghyuk/dexarb/pkg/coordinator"
	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every counter/gauge this repo reports, one Registry per
// process, registered against its own prometheus.Registry so tests can
// construct one without touching the global default registry.
type Registry struct {
	reg *prometheus.Registry

	blocksProcessed    *prometheus.CounterVec
	opportunitiesFound *prometheus.CounterVec
	droppedQuotes      *prometheus.CounterVec
	fetchDurationMs    *prometheus.GaugeVec
	crossChainFound    prometheus.Counter

	endpointHealthScore *prometheus.GaugeVec
	endpointFailures    *prometheus.GaugeVec
}

// NewRegistry builds a Registry with every instrument registered.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.blocksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dexarb",
		Name:      "blocks_processed_total",
		Help:      "Blocks handled by a chain worker, including ones whose snapshot fetch failed.",
	}, []string{"chain_id"})

	r.opportunitiesFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dexarb",
		Name:      "opportunities_found_total",
		Help:      "Arbitrage opportunities detected, by chain and kind.",
	}, []string{"chain_id", "kind"})

	r.droppedQuotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dexarb",
		Name:      "dropped_quotes_total",
		Help:      "Stale or out-of-order snapshots dropped by a chain worker.",
	}, []string{"chain_id"})

	r.fetchDurationMs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dexarb",
		Name:      "last_fetch_duration_ms",
		Help:      "Duration of the most recent per-block snapshot fetch.",
	}, []string{"chain_id"})

	r.crossChainFound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dexarb",
		Name:      "cross_chain_opportunities_total",
		Help:      "Cross-chain arbitrage opportunities detected by the coordinator.",
	})

	r.endpointHealthScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dexarb",
		Name:      "endpoint_health_score",
		Help:      "Health score (0-100) of one RPC endpoint.",
	}, []string{"url", "kind"})

	r.endpointFailures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dexarb",
		Name:      "endpoint_failure_count",
		Help:      "Consecutive failure count of one RPC endpoint.",
	}, []string{"url", "kind"})

	r.reg.MustRegister(
		r.blocksProcessed,
		r.opportunitiesFound,
		r.droppedQuotes,
		r.fetchDurationMs,
		r.crossChainFound,
		r.endpointHealthScore,
		r.endpointFailures,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for the metrics HTTP
// handler (promhttp.HandlerFor) in cmd/dexarb.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveWorker records one chain worker's latest stats snapshot.
func (r *Registry) ObserveWorker(chainID uint64, stats worker.Stats) {
	id := chainIDLabel(chainID)
	r.blocksProcessed.WithLabelValues(id).Add(float64(stats.BlocksProcessed))
	r.fetchDurationMs.WithLabelValues(id).Set(float64(stats.LastFetchDurationMs))
	r.droppedQuotes.WithLabelValues(id).Add(float64(stats.DroppedQuotes))
}

// ObserveOpportunity increments the per-chain, per-kind opportunity counter.
// Cross-chain opportunities (not scoped to one chain) go to the separate
// cross_chain_opportunities_total counter instead.
func (r *Registry) ObserveOpportunity(opp types.Opportunity) {
	if opp.Kind == types.KindCrossChain {
		r.crossChainFound.Inc()
		return
	}
	r.opportunitiesFound.WithLabelValues(chainIDLabel(opp.ChainID), string(opp.Kind)).Inc()
}

// ObserveCoordinator records the coordinator's aggregate stats, useful as a
// periodic snapshot independent of the per-event ObserveOpportunity calls.
func (r *Registry) ObserveCoordinator(stats coordinator.Stats) {
	for chainID, ws := range stats.PerChain {
		r.ObserveWorker(chainID, ws)
	}
}

// ObserveEndpointHealth records one pool's endpoint health snapshots.
func (r *Registry) ObserveEndpointHealth(health []types.EndpointHealth) {
	for _, h := range health {
		r.endpointHealthScore.WithLabelValues(h.URL, string(h.Kind)).Set(float64(h.Score))
		r.endpointFailures.WithLabelValues(h.URL, string(h.Kind)).Set(float64(h.FailureCount))
	}
}

func chainIDLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
