// Package pool provides a bounded FIFO pool of idle connections to the
// proxy core, together with a periodic health checker that evicts stale
// entries.
//
// # Features
//
//   - FIFO reuse: connections are taken from the front and returned to
//     the back
//   - Hard capacity bound; releases beyond it close the connection
//   - Idle-age and liveness checks on every reuse
//   - Full flush, used before each forwarder retry
//   - Non-blocking health sweeps that skip a round when the pool is busy
//
// # Usage
//
//	p := pool.NewConnectionPool(pool.DefaultPoolConfig(),
//	    pool.WithLogger(logger),
//	    pool.WithMetrics(metrics),
//	)
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	// ... exchange on conn ...
//	p.Release(conn)
//
// A connection is owned either by the pool or by exactly one caller.
// Callers that observe an error on a connection close it instead of
// releasing it.
package pool
