package transport

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// selfHealProbeInterval and selfHealProbeTimeout are spec.md §4.1's
// defaults: every 5 minutes, probe unhealthy endpoints with a 5s-timeout
// trivial call.
const (
	selfHealProbeInterval = 5 * time.Minute
	selfHealProbeTimeout  = 5 * time.Second
)

// runHealer is the self-healing background task named but not otherwise
// specified by spec.md §4.1 — one goroutine per HTTP pool, cancelled on
// Shutdown. It is started once by NewHTTPPool.
func (p *HTTPPool) runHealer() {
	ticker := time.NewTicker(selfHealProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.healerDone:
			return
		case <-ticker.C:
			p.probeUnhealthy()
		}
	}
}

// probeUnhealthy issues a trivial block-number query against every
// unhealthy endpoint; success restores health and score.
func (p *HTTPPool) probeUnhealthy() {
	p.mu.Lock()
	candidates := make([]*provider, 0)
	for _, prov := range p.providers {
		if !prov.health.Healthy() {
			candidates = append(candidates, prov)
		}
	}
	p.mu.Unlock()

	for _, prov := range candidates {
		if p.shutdownFlag.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), selfHealProbeTimeout)
		_, err := prov.client.BlockNumber(ctx)
		cancel()
		if err != nil {
			p.logger.Debug("self-heal probe failed", zap.String("url", prov.url), zap.Error(err))
			continue
		}
		prov.health.Restore()
		p.logger.Info("self-heal probe restored endpoint", zap.String("url", prov.url))
	}
}
