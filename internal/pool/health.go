package pool

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// HealthChecker periodically sweeps a ConnectionPool.
type HealthChecker struct {
	pool      *ConnectionPool
	interval  time.Duration
	logger    observability.Logger
	metrics   *observability.Metrics
	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
	mu        sync.Mutex
}

// HealthCheckOption is a functional option for configuring the health checker.
type HealthCheckOption func(*HealthChecker)

// WithHealthCheckLogger sets the logger for the health checker.
func WithHealthCheckLogger(logger observability.Logger) HealthCheckOption {
	return func(hc *HealthChecker) {
		hc.logger = logger
	}
}

// WithHealthCheckMetrics sets the metrics sink for the health checker.
func WithHealthCheckMetrics(m *observability.Metrics) HealthCheckOption {
	return func(hc *HealthChecker) {
		hc.metrics = m
	}
}

// NewHealthChecker creates a new health checker. A non-positive interval
// selects DefaultHealthCheckInterval.
func NewHealthChecker(p *ConnectionPool, interval time.Duration, opts ...HealthCheckOption) *HealthChecker {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}

	hc := &HealthChecker{
		pool:     p,
		interval: interval,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(hc)
	}

	hc.logger = hc.logger.With(observability.String("component", "pool-health"))

	return hc
}

// Start starts the health checker. The first sweep happens one interval
// after Start. A stopped checker can be started again.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.running {
		return
	}
	hc.running = true
	hc.stopCh = make(chan struct{})
	hc.stoppedCh = make(chan struct{})

	go hc.run(ctx, hc.stopCh, hc.stoppedCh)
}

// Stop stops the health checker and waits for the loop to exit.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	stopCh, stoppedCh := hc.stopCh, hc.stoppedCh
	hc.mu.Unlock()

	close(stopCh)
	<-stoppedCh
}

// run is the main health check loop.
func (hc *HealthChecker) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			hc.Check()
		}
	}
}

// Check runs one health round and reports how many connections were
// evicted. ok is false when the round was skipped because the pool was
// busy.
func (hc *HealthChecker) Check() (evicted int, ok bool) {
	evicted, ok = hc.pool.Sweep()
	if !ok {
		hc.logger.Debug("pool busy, health check skipped")
		if hc.metrics != nil {
			hc.metrics.RecordHealthSweep(observability.SweepSkipped, 0)
		}
		return 0, false
	}

	if hc.metrics != nil {
		hc.metrics.RecordHealthSweep(observability.SweepCompleted, evicted)
	}

	remaining := hc.pool.Len()
	switch {
	case evicted > 0:
		hc.logger.Info("evicted stale connections",
			observability.Int("evicted", evicted),
			observability.Int("remaining", remaining),
		)
	case remaining > 0:
		hc.logger.Debug("all pooled connections healthy",
			observability.Int("size", remaining),
		)
	}

	return evicted, true
}
