package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// DefaultQueueSize is the default dispatcher queue capacity.
const DefaultQueueSize = 1024

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Task is a unit of work run by the dispatcher.
type Task func(ctx context.Context)

// DispatcherConfig contains dispatcher configuration.
type DispatcherConfig struct {
	// Workers is the number of worker goroutines. Zero runs every task on
	// its own goroutine.
	Workers int

	// QueueSize bounds the number of tasks waiting for a worker.
	QueueSize int
}

// Dispatcher runs tasks on a bounded set of workers.
type Dispatcher struct {
	workers int
	queue   chan Task
	stop    chan struct{}
	logger  observability.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	ctx       context.Context
	started   bool
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(cfg DispatcherConfig, logger observability.Logger, metrics *observability.Metrics) *Dispatcher {
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Dispatcher{
		workers: cfg.Workers,
		queue:   make(chan Task, cfg.QueueSize),
		stop:    make(chan struct{}),
		logger:  logger.With(observability.String("component", "dispatcher")),
		metrics: metrics,
		ctx:     context.Background(),
	}
}

// Start launches the workers. Tasks receive ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true
	d.ctx = ctx

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	d.logger.Debug("dispatcher started",
		observability.Int("workers", d.workers),
		observability.Int("queue_size", cap(d.queue)),
	)
}

// Submit hands task to the dispatcher. It blocks while the queue is full
// until ctx is done or the dispatcher closes.
func (d *Dispatcher) Submit(ctx context.Context, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	if d.workers == 0 {
		d.wg.Add(1)
		go func(ctx context.Context) {
			defer d.wg.Done()
			task(ctx)
		}(d.ctx)
		return nil
	}

	select {
	case d.queue <- task:
		d.recordDepth()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrDispatcherClosed
	}
}

// Close stops accepting tasks, runs the queued ones, and waits for every
// task to return.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Dispatcher) close() {
	close(d.stop)

	d.mu.Lock()
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// No workers ever ran; drain so queued tasks are not lost.
		for task := range d.queue {
			task(d.ctx)
		}
	}

	d.wg.Wait()
	d.recordDepth()
}

// Pending returns the number of queued tasks.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for task := range d.queue {
		d.recordDepth()
		task(d.ctx)
	}
}

func (d *Dispatcher) recordDepth() {
	if d.metrics != nil {
		d.metrics.SetQueueDepth(len(d.queue))
	}
}
