// Package transport implements the resilient RPC transport layer: an HTTP
// JSON-RPC sub-pool with round-robin selection, two-level rate limiting,
// cooldown and circuit breaking, and a WebSocket sub-pool with an explicit
// per-endpoint state machine and a primary/failover manager.
package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// healthTracker wraps a types.EndpointHealth with the mutation operations
// the pool needs, guarded by a single mutex — the one shared-mutable
// structure each transport pool owns per the concurrency model's
// "single-writer" policy.
type healthTracker struct {
	mu     sync.Mutex
	health types.EndpointHealth
}

func newHealthTracker(url string, kind types.EndpointKind) *healthTracker {
	return &healthTracker{health: types.EndpointHealth{URL: url, Kind: kind, Score: 100}}
}

// Snapshot returns a copy of the current health, safe to read by callers
// outside the pool (e.g. internal/metrics).
func (h *healthTracker) Snapshot() types.EndpointHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Healthy reports whether this endpoint is currently eligible for
// rotation, per the data model's healthy predicate.
func (h *healthTracker) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health.Healthy(nowMs())
}

// RecordSuccess applies a +5 score bump (capped at 100), resets the
// failure count, and clears cooldown.
func (h *healthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.Score += 5
	if h.health.Score > 100 {
		h.health.Score = 100
	}
	h.health.FailureCount = 0
	h.health.CooldownUntil = 0
	h.health.UnhealthySince = 0
	h.health.LastCheck = nowMs()
}

// RecordFailure applies a -20 score penalty (floor 0) and increments the
// failure count; three consecutive failures mark the endpoint unhealthy.
func (h *healthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.Score -= 20
	if h.health.Score < 0 {
		h.health.Score = 0
	}
	h.health.FailureCount++
	if h.health.FailureCount >= 3 && h.health.UnhealthySince == 0 {
		h.health.UnhealthySince = nowMs()
	}
	h.health.LastCheck = nowMs()
}

// Cooldown places the endpoint in cooldown for at least d (>=60s per
// spec.md §4.1) and increments its failure count.
func (h *healthTracker) Cooldown(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.CooldownUntil = nowMs() + d.Milliseconds()
	h.health.FailureCount++
	h.health.LastCheck = nowMs()
}

// Restore clears failure state after a successful self-healing probe.
func (h *healthTracker) Restore() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.FailureCount = 0
	h.health.UnhealthySince = 0
	h.health.CooldownUntil = 0
	h.health.Score = 100
	h.health.LastCheck = nowMs()
}

// ResetAllFailures is used by the pool's degraded-mode recovery: when every
// endpoint is unhealthy, failure counts are reset and the pool returns to
// service.
func (h *healthTracker) ResetAllFailures() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.FailureCount = 0
	h.health.UnhealthySince = 0
	h.health.CooldownUntil = 0
}

// rateLimitMessage reports whether an error message matches the
// rate-limit predicate from spec.md §4.1.
func rateLimitMessage(msg string) bool {
	patterns := []string{"rate limit", "too many requests", "quota exceeded", "capacity", "429"}
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
