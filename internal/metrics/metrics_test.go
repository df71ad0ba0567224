package metrics

import (
	"testing"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
	"github.com/ChoSanghyuk/dexarb/pkg/worker"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestObserveWorker_IncrementsBlocksProcessedAndDroppedQuotes(t *testing.T) {
	r := NewRegistry()
	r.ObserveWorker(1, worker.Stats{BlocksProcessed: 3, LastFetchDurationMs: 120, DroppedQuotes: 1})
	r.ObserveWorker(1, worker.Stats{BlocksProcessed: 2, LastFetchDurationMs: 80, DroppedQuotes: 0})

	mf, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := findMetric(t, mf, "dexarb_blocks_processed_total", "chain_id", "1")
	if got.GetCounter().GetValue() != 5 {
		t.Fatalf("blocks_processed_total = %v, want 5", got.GetCounter().GetValue())
	}

	dropped := findMetric(t, mf, "dexarb_dropped_quotes_total", "chain_id", "1")
	if dropped.GetCounter().GetValue() != 1 {
		t.Fatalf("dropped_quotes_total = %v, want 1", dropped.GetCounter().GetValue())
	}

	fetchMs := findMetric(t, mf, "dexarb_last_fetch_duration_ms", "chain_id", "1")
	if fetchMs.GetGauge().GetValue() != 80 {
		t.Fatalf("last_fetch_duration_ms = %v, want 80 (last observation wins)", fetchMs.GetGauge().GetValue())
	}
}

func TestObserveOpportunity_RoutesCrossChainToDedicatedCounter(t *testing.T) {
	r := NewRegistry()
	r.ObserveOpportunity(types.Opportunity{Kind: types.KindCrossDex, ChainID: 1})
	r.ObserveOpportunity(types.Opportunity{Kind: types.KindCrossChain})

	mf, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	crossDex := findMetric(t, mf, "dexarb_opportunities_found_total", "chain_id", "1")
	if crossDex.GetCounter().GetValue() != 1 {
		t.Fatalf("opportunities_found_total = %v, want 1", crossDex.GetCounter().GetValue())
	}

	var crossChainFamily *io_prometheus_client.MetricFamily
	for _, fam := range mf {
		if fam.GetName() == "dexarb_cross_chain_opportunities_total" {
			crossChainFamily = fam
		}
	}
	if crossChainFamily == nil || len(crossChainFamily.Metric) != 1 || crossChainFamily.Metric[0].GetCounter().GetValue() != 1 {
		t.Fatalf("cross_chain_opportunities_total not incremented as expected: %+v", crossChainFamily)
	}
}

func TestObserveEndpointHealth_SetsScorePerURL(t *testing.T) {
	r := NewRegistry()
	r.ObserveEndpointHealth([]types.EndpointHealth{
		{URL: "https://rpc.example/1", Kind: types.EndpointHTTP, Score: 80, FailureCount: 1},
		{URL: "wss://rpc.example/ws", Kind: types.EndpointWS, Score: 100, FailureCount: 0},
	})

	mf, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	score := findMetric(t, mf, "dexarb_endpoint_health_score", "url", "https://rpc.example/1")
	if score.GetGauge().GetValue() != 80 {
		t.Fatalf("endpoint_health_score = %v, want 80", score.GetGauge().GetValue())
	}
}

func findMetric(t *testing.T, mf []*io_prometheus_client.MetricFamily, family, label, value string) *io_prometheus_client.Metric {
	t.Helper()
	for _, fam := range mf {
		if fam.GetName() != family {
			continue
		}
		for _, m := range fam.Metric {
			for _, lp := range m.Label {
				if lp.GetName() == label && lp.GetValue() == value {
					return m
				}
			}
		}
	}
	t.Fatalf("metric family %s with label %s=%s not found", family, label, value)
	return nil
}
