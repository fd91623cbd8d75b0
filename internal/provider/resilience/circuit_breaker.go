// Package resilience wraps outbound HTTP calls to upstream data providers with
// a timeout, optional retries, a rate limit and a circuit breaker.
package resilience

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls the circuit breaker that guards the attempts of
// one request.
type BreakerConfig struct {
	// Threshold is the number of consecutive failed attempts that opens the
	// breaker. Zero never opens it.
	Threshold uint32

	// Cooldown is how long the breaker stays open before a single trial
	// attempt is let through. Default: 60 seconds
	Cooldown time.Duration
}

const (
	minFailureThreshold = 3
	maxFailureThreshold = 5
	defaultCooldown     = time.Minute
)

// BreakerForRetries sizes the breaker to a budget of maxRetries+1 attempts.
// Once a majority of the budget has failed in a row the remaining retries are
// skipped and the caller gets the last upstream answer. Budgets too small to
// skip anything get a breaker that never opens.
func BreakerForRetries(maxRetries uint64) BreakerConfig {
	attempts := maxRetries + 1

	threshold := attempts/2 + 1
	threshold = max(threshold, minFailureThreshold)
	threshold = min(threshold, maxFailureThreshold)

	if threshold >= attempts {
		return BreakerConfig{}
	}
	return BreakerConfig{Threshold: uint32(threshold), Cooldown: defaultCooldown}
}

func newBreaker(name string, cfg BreakerConfig, onStateChange func(string, gobreaker.State, gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.Threshold > 0 && counts.ConsecutiveFailures >= cfg.Threshold
		},
		OnStateChange: onStateChange,
	})
}
