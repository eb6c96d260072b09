package sync

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/socrates8300/openchime/internal/logging"
)

// breakerProfile holds the per-provider circuit breaker defaults:
// Google (3/2/30s), ICS (5/3/60s) — failure threshold, recovery
// success threshold, and the Open→HalfOpen timeout.
type breakerProfile struct {
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
}

var breakerProfiles = map[string]breakerProfile{
	"google": {failureThreshold: 3, successThreshold: 2, timeout: 30 * time.Second},
	"ics":    {failureThreshold: 5, successThreshold: 3, timeout: 60 * time.Second},
}

// newBreaker constructs a gobreaker instance for provider, grounded on
// tomtom215-cartographus's JellyfinCircuitBreakerClient wiring:
// ReadyToTrip on consecutive failures, OnStateChange logged, MaxRequests
// in the half-open state doubling as the recovery success threshold.
func newBreaker(provider string) *gobreaker.CircuitBreaker[[]ProviderEvent] {
	profile, ok := breakerProfiles[provider]
	if !ok {
		profile = breakerProfile{failureThreshold: 3, successThreshold: 2, timeout: 30 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:        "sync." + provider,
		MaxRequests: profile.successThreshold,
		Interval:    time.Minute,
		Timeout:     profile.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= profile.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return gobreaker.NewCircuitBreaker[[]ProviderEvent](settings)
}
