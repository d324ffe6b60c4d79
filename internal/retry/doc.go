// Package retry provides the retry loop, backoff strategies, and error
// classification used when forwarding requests to the proxy core.
//
// # Features
//
//   - Bounded attempts (MaxRetries retries after the first attempt)
//   - Constant and exponential backoff strategies
//   - Context-aware waiting between attempts
//   - Classification of transport errors into not-ready and transient
//
// # Usage
//
//	cfg := retry.DefaultConfig()
//	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
//	    return exchange(ctx)
//	}, &retry.Options{
//	    ShouldRetry: func(attempt int, err error) bool {
//	        return retry.ShouldRetry(attempt, cfg.MaxRetries, err)
//	    },
//	})
//
// # Classification
//
// A not-ready error means the core endpoint does not exist or refuses
// connections, which is the normal state while the core is starting or
// stopped. Such errors are never retried. A transient error is a broken
// pipe, reset, or other OS-level failure on an established connection,
// which a fresh connection usually cures.
package retry
