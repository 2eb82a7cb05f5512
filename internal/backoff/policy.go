// Package backoff computes retry delays with jitter for agentmesh's two
// bounded-retry call sites: the Gateway Transport client's reconnect loop
// and the A2A client's idempotent-request retries.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// InitialMs is the initial backoff duration in milliseconds.
	InitialMs float64
	// MaxMs is the maximum backoff duration in milliseconds.
	MaxMs float64
	// Factor is the exponential factor applied to each attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to the backoff.
	Jitter float64
}

// ComputeDelay calculates the backoff duration for a given attempt number.
// The formula is: base = initialMs * factor^(attempt-1), jitter = base * jitter * random()
// Returns min(maxMs, base + jitter) as a time.Duration.
// Attempt numbers start at 1.
func ComputeDelay(policy Policy, attempt int) time.Duration {
	return ComputeDelayWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// ComputeDelayWithRand calculates the backoff duration using a provided
// random value, for deterministic tests. randomValue should be in [0.0, 1.0).
func ComputeDelayWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)

	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)

	return time.Duration(math.Round(total)) * time.Millisecond
}

// GatewayReconnectPolicy is the Gateway Transport client's reconnect delay
// schedule (§5 of the Gateway protocol: start at 500ms, double each attempt,
// cap at 30s, full jitter).
func GatewayReconnectPolicy() Policy {
	return Policy{
		InitialMs: 500,
		MaxMs:     30000,
		Factor:    2,
		Jitter:    1.0,
	}
}

// CardFetchRetryPolicy bounds the A2A client/card cache's retries of a
// transient (network-level, not HTTP-status) Agent Card or RPC fetch
// failure: three quick attempts rather than the slower reconnect schedule.
func CardFetchRetryPolicy() Policy {
	return Policy{
		InitialMs: 100,
		MaxMs:     2000,
		Factor:    2,
		Jitter:    0.2,
	}
}
