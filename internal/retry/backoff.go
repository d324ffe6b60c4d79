package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff defines the interface for backoff strategies.
type Backoff interface {
	// Next returns the duration to wait before retry number attempt
	// (starting at 1).
	Next(attempt int) time.Duration
}

// ConstantBackoff waits the same interval before every retry.
type ConstantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff creates a new constant backoff.
func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	if interval < 0 {
		interval = 0
	}
	return &ConstantBackoff{
		interval: interval,
	}
}

// Next implements Backoff.
func (b *ConstantBackoff) Next(int) time.Duration {
	return b.interval
}

// ExponentialBackoff doubles the interval on every retry, capped at max,
// with optional jitter.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
}

// NewExponentialBackoff creates a new exponential backoff. jitter is the
// fraction (0.0 to 1.0) of the computed interval added at random.
func NewExponentialBackoff(initial, max time.Duration, jitter float64) *ExponentialBackoff {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if max < initial {
		max = initial
	}
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		jitter:  jitter,
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(b.initial) * math.Pow(2, float64(attempt-1))

	if b.jitter > 0 {
		//nolint:gosec // G404: jitter for retry timing is not security-sensitive
		backoff += backoff * b.jitter * rand.Float64()
	}

	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	return time.Duration(backoff)
}

// BackoffType represents the type of backoff strategy.
type BackoffType string

const (
	// BackoffTypeConstant uses constant backoff.
	BackoffTypeConstant BackoffType = "constant"

	// BackoffTypeExponential uses exponential backoff with jitter.
	BackoffTypeExponential BackoffType = "exponential"
)

// NewBackoff creates a Backoff of the given type. Unknown or empty types
// select constant backoff.
func NewBackoff(kind BackoffType, interval, max time.Duration) Backoff {
	switch kind {
	case BackoffTypeExponential:
		return NewExponentialBackoff(interval, max, DefaultJitterFactor)
	default:
		return NewConstantBackoff(interval)
	}
}
