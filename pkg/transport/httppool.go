package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ChoSanghyuk/dexarb/pkg/types"
)

// provider bundles one HTTP endpoint's dialed client, health, per-endpoint
// rate limiter, and circuit breaker.
type provider struct {
	url     string
	client  *ethclient.Client
	health  *healthTracker
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
}

// HTTPPool is the HTTP sub-pool from spec.md §4.1: round-robin selection
// across healthy, non-cooldown, under-budget endpoints, two-level rate
// limiting, exponential-backoff retry, and a self-healing background
// probe.
type HTTPPool struct {
	mu            sync.Mutex
	providers     []*provider
	rrIndex       int
	globalLimiter *rate.Limiter

	requestDelay  time.Duration
	lastRequestAt time.Time

	retryAttempts int
	retryDelay    time.Duration

	logger *zap.Logger

	shutdownFlag atomic.Bool
	shutdownOnce sync.Once
	healerDone   chan struct{}
}

// NewHTTPPool dials every configured HTTP endpoint and starts the
// self-healing probe. Dial failures for individual endpoints are logged
// and that endpoint starts unhealthy rather than failing pool
// construction outright — a pool with at least one working endpoint
// should still serve.
func NewHTTPPool(ctx context.Context, params types.RPCParams, logger *zap.Logger) (*HTTPPool, error) {
	if len(params.HTTP) == 0 {
		return nil, fmt.Errorf("%w: no http endpoints configured", types.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rpm := params.MaxRequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	perEndpointRPM := make([]int, len(params.HTTP))
	for i := range params.HTTP {
		perEndpointRPM[i] = rpm
	}

	pool := &HTTPPool{
		globalLimiter: newPerMinuteLimiter(globalBudget(perEndpointRPM)),
		requestDelay:  durationOrDefault(params.RequestDelayMs, 50*time.Millisecond),
		retryAttempts: intOrDefault(params.RetryAttempts, 3),
		retryDelay:    durationOrDefault(params.RetryDelayMs, 500*time.Millisecond),
		logger:        logger,
		healerDone:    make(chan struct{}),
	}

	for _, url := range params.HTTP {
		client, err := ethclient.DialContext(ctx, url)
		health := newHealthTracker(url, types.EndpointHTTP)
		if err != nil {
			logger.Warn("http endpoint dial failed at startup", zap.String("url", url), zap.Error(err))
			health.RecordFailure()
			health.RecordFailure()
			health.RecordFailure()
		}

		breakerSettings := gobreaker.Settings{
			Name:        url,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}

		pool.providers = append(pool.providers, &provider{
			url:     url,
			client:  client,
			health:  health,
			limiter: newPerMinuteLimiter(rpm),
			breaker: gobreaker.NewCircuitBreaker[any](breakerSettings),
		})
	}

	go pool.runHealer()
	return pool, nil
}

func durationOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// selectProvider implements round-robin selection across healthy,
// non-cooldown endpoints. If every endpoint is unhealthy, failure counts
// are reset pool-wide and the pool returns to degraded-mode service
// (spec.md §4.1's "If every endpoint is unhealthy ... returns to service").
func (p *HTTPPool) selectProvider() (*provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.providers) == 0 {
		return nil, types.ErrTransportExhausted
	}

	for i := 0; i < len(p.providers); i++ {
		idx := (p.rrIndex + i) % len(p.providers)
		cand := p.providers[idx]
		if cand.health.Healthy() {
			p.rrIndex = (idx + 1) % len(p.providers)
			return cand, nil
		}
	}

	// Degraded mode: every endpoint unhealthy, reset and retry once.
	for _, cand := range p.providers {
		cand.health.ResetAllFailures()
	}
	p.logger.Warn("all http endpoints unhealthy, resetting to degraded-mode service")
	idx := p.rrIndex % len(p.providers)
	p.rrIndex = (idx + 1) % len(p.providers)
	return p.providers[idx], nil
}

// throttle blocks until request_delay has elapsed since the last request
// issued by this pool, enforced by a monotonic clock.
func (p *HTTPPool) throttle() {
	p.mu.Lock()
	wait := time.Until(p.lastRequestAt.Add(p.requestDelay))
	if wait > 0 {
		p.mu.Unlock()
		time.Sleep(wait)
		p.mu.Lock()
	}
	p.lastRequestAt = time.Now()
	p.mu.Unlock()
}

// WithRetry implements spec.md §4.1's with_retry(F): select a provider,
// throttle, execute fn, and on failure retry up to retry_attempts with
// exponential backoff. Returns ErrTransportExhausted only after every
// retry has failed.
func WithRetry[T any](ctx context.Context, p *HTTPPool, fn func(ctx context.Context, client *ethclient.Client) (T, error)) (T, error) {
	var zero T
	if p.shutdownFlag.Load() {
		return zero, types.ErrShutdownRequested
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = p.retryDelay
	backoffPolicy.Multiplier = 2

	operation := func() (T, error) {
		if p.shutdownFlag.Load() {
			return zero, backoff.Permanent(types.ErrShutdownRequested)
		}

		prov, err := p.selectProvider()
		if err != nil {
			return zero, fmt.Errorf("%w: %v", types.ErrTransportExhausted, err)
		}

		if !prov.limiter.Allow() || !p.globalLimiter.Allow() {
			return zero, fmt.Errorf("%w: rate budget exhausted for %s", types.ErrTransportRateLimited, prov.url)
		}

		p.throttle()

		out, err := prov.breaker.Execute(func() (any, error) {
			return fn(ctx, prov.client)
		})
		if err != nil {
			if rateLimitMessage(err.Error()) {
				prov.health.Cooldown(60 * time.Second)
				p.logger.Warn("http endpoint rate limited, cooling down", zap.String("url", prov.url), zap.Error(err))
				return zero, fmt.Errorf("%w: %v", types.ErrTransportRateLimited, err)
			}
			prov.health.RecordFailure()
			return zero, fmt.Errorf("%w: %v", types.ErrTransportTransient, err)
		}

		prov.health.RecordSuccess()
		result, ok := out.(T)
		if !ok {
			return zero, fmt.Errorf("%w: unexpected result type from provider %s", types.ErrTransportTransient, prov.url)
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(uint(p.retryAttempts)),
	)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", types.ErrTransportExhausted, err)
	}
	return result, nil
}

// Health returns a snapshot of every HTTP endpoint's health, for
// internal/metrics.
func (p *HTTPPool) Health() []types.EndpointHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EndpointHealth, 0, len(p.providers))
	for _, prov := range p.providers {
		out = append(out, prov.health.Snapshot())
	}
	return out
}

// Shutdown is idempotent: it sets the shutdown flag (gating all further
// scheduled retries and the healer loop) and closes every client.
func (p *HTTPPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.shutdownFlag.Store(true)
		close(p.healerDone)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, prov := range p.providers {
			if prov.client != nil {
				prov.client.Close()
			}
		}
	})
}
