package retry

import (
	"context"
	"time"
)

// Default retry configuration constants.
const (
	// DefaultMaxRetries is the default number of retries after the first
	// attempt.
	DefaultMaxRetries = 2

	// DefaultBackoff is the default wait between attempts.
	DefaultBackoff = 200 * time.Millisecond

	// DefaultJitterFactor is the jitter applied by exponential backoff.
	DefaultJitterFactor = 0.2
)

// Config contains retry configuration parameters.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retries.
	MaxRetries int

	// Backoff computes the wait before each retry. Nil selects a constant
	// DefaultBackoff.
	Backoff Backoff
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: DefaultMaxRetries,
		Backoff:    NewConstantBackoff(DefaultBackoff),
	}
}

// Attempts returns the total number of attempts the config allows.
func (c *Config) Attempts() int {
	if c == nil {
		return DefaultMaxRetries + 1
	}
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

func (c *Config) backoff() Backoff {
	if c == nil || c.Backoff == nil {
		return NewConstantBackoff(DefaultBackoff)
	}
	return c.Backoff
}

// RetryableFunc is one attempt. attempt starts at 1.
type RetryableFunc func(ctx context.Context, attempt int) error

// ShouldRetryFunc decides whether a failed attempt is retried.
type ShouldRetryFunc func(attempt int, err error) bool

// OnRetryFunc is called after a failed attempt and before the wait that
// precedes the next one.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Options contains optional retry behavior configuration.
type Options struct {
	// ShouldRetry determines if an error should trigger a retry.
	// If nil, all errors are retried.
	ShouldRetry ShouldRetryFunc

	// OnRetry is called before each retry wait.
	OnRetry OnRetryFunc
}

// Do runs fn until it succeeds, a failure is not retryable, or the
// attempts are exhausted, in which case the last error is returned. A
// context cancelled while waiting returns the context error.
func Do(ctx context.Context, cfg *Config, fn RetryableFunc, opts *Options) error {
	attempts := cfg.Attempts()
	backoff := cfg.backoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}
		if opts != nil && opts.ShouldRetry != nil && !opts.ShouldRetry(attempt, lastErr) {
			return lastErr
		}

		wait := backoff.Next(attempt)
		if opts != nil && opts.OnRetry != nil {
			opts.OnRetry(attempt, lastErr, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
