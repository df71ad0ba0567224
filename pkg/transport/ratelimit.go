package transport

import (
	"math"

	"golang.org/x/time/rate"
)

// newPerMinuteLimiter builds a token-bucket limiter that refills to
// rpm tokens over a 60-second window, burst-capped at rpm — the
// per-endpoint sliding-window counter from spec.md §4.1.
func newPerMinuteLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		rpm = 60
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
}

// globalBudget computes the aggregate rate-limit cap from spec.md §4.1:
// min(sum of per-endpoint rpm * 0.8, 1000).
func globalBudget(perEndpointRPM []int) int {
	sum := 0
	for _, v := range perEndpointRPM {
		sum += v
	}
	budget := int(math.Floor(float64(sum) * 0.8))
	if budget > 1000 {
		budget = 1000
	}
	if budget <= 0 {
		budget = 1
	}
	return budget
}
