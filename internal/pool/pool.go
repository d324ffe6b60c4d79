package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/transport"
)

// Pool default configuration constants.
const (
	// DefaultMaxSize is the default maximum number of idle connections.
	DefaultMaxSize = 300

	// DefaultIdleTimeout is the default age after which an idle
	// connection is no longer reused.
	DefaultIdleTimeout = 500 * time.Millisecond

	// DefaultHealthCheckInterval is the default interval between
	// health sweeps.
	DefaultHealthCheckInterval = 30 * time.Second
)

var (
	// ErrDial is returned, wrapped together with the transport error,
	// when a fresh connection to the core cannot be established.
	ErrDial = errors.New("dial core endpoint")

	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("connection pool closed")
)

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	Endpoint    string
	MaxSize     int
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Endpoint:    transport.DefaultEndpoint,
		MaxSize:     DefaultMaxSize,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// PooledConnection is an idle connection resident in the pool.
type PooledConnection struct {
	conn     net.Conn
	lastUsed time.Time
}

// Conn returns the underlying connection.
func (pc *PooledConnection) Conn() net.Conn {
	return pc.conn
}

// LastUsed returns the time the connection was returned to the pool.
func (pc *PooledConnection) LastUsed() time.Time {
	return pc.lastUsed
}

// PoolStats is a snapshot of the pool state.
type PoolStats struct {
	Idle        int           `json:"idle"`
	MaxSize     int           `json:"maxSize"`
	IdleTimeout time.Duration `json:"idleTimeout"`
	Endpoint    string        `json:"endpoint"`
}

// ConnectionPool manages idle connections to the core endpoint.
type ConnectionPool struct {
	mu          sync.Mutex
	idle        []*PooledConnection
	closed      bool
	maxSize     int
	idleTimeout time.Duration
	endpoint    string

	transport transport.Transport
	logger    observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option is a functional option for configuring the pool.
type Option func(*ConnectionPool)

// WithTransport sets the transport used to dial and probe connections.
func WithTransport(t transport.Transport) Option {
	return func(p *ConnectionPool) {
		p.transport = t
	}
}

// WithLogger sets the logger for the pool.
func WithLogger(logger observability.Logger) Option {
	return func(p *ConnectionPool) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink for the pool.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *ConnectionPool) {
		p.metrics = m
	}
}

// WithNowFunc overrides the clock used for idle-age decisions.
func WithNowFunc(now func() time.Time) Option {
	return func(p *ConnectionPool) {
		p.now = now
	}
}

// NewConnectionPool creates a new connection pool. Zero values in cfg are
// replaced by the defaults.
func NewConnectionPool(cfg PoolConfig, opts ...Option) *ConnectionPool {
	if cfg.Endpoint == "" {
		cfg.Endpoint = transport.DefaultEndpoint
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	p := &ConnectionPool{
		maxSize:     cfg.MaxSize,
		idleTimeout: cfg.IdleTimeout,
		endpoint:    cfg.Endpoint,
		transport:   transport.Default(),
		logger:      observability.NopLogger(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With(observability.String("component", "pool"))

	return p
}

// Acquire returns a connection owned by the caller. Pooled connections are
// tried front to back; entries that are too old or fail the liveness probe
// are closed and skipped. When none is usable a new connection is dialed.
func (p *ConnectionPool) Acquire(ctx context.Context) (net.Conn, error) {
	for {
		pc, remaining, err := p.popFront()
		if err != nil {
			return nil, err
		}
		if pc == nil {
			break
		}
		p.setSize(remaining)

		if p.reusable(pc) {
			p.recordAcquire(observability.AcquirePooled)
			return pc.conn, nil
		}

		_ = pc.conn.Close()
		p.recordAcquire(observability.AcquireDiscarded)
	}

	conn, err := p.transport.Dial(ctx, p.endpoint)
	if err != nil {
		p.recordAcquire(observability.AcquireFailed)
		return nil, fmt.Errorf("%w %s: %w", ErrDial, p.endpoint, err)
	}

	p.recordAcquire(observability.AcquireDialed)
	p.logger.Debug("dialed new connection", observability.String("endpoint", p.endpoint))

	return conn, nil
}

// popFront removes the oldest idle entry. It returns nil when the pool is
// empty.
func (p *ConnectionPool) popFront() (*PooledConnection, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, 0, ErrPoolClosed
	}
	if len(p.idle) == 0 {
		return nil, 0, nil
	}

	pc := p.idle[0]
	p.idle[0] = nil
	p.idle = p.idle[1:]

	return pc, len(p.idle), nil
}

// reusable reports whether a popped entry may be handed out.
func (p *ConnectionPool) reusable(pc *PooledConnection) bool {
	if p.now().Sub(pc.lastUsed) >= p.idleTimeout {
		return false
	}
	return p.transport.Probe(pc.conn) == transport.ReadinessOpen
}

// Release returns a connection to the back of the pool. When the pool is
// at capacity or closed the connection is closed instead.
func (p *ConnectionPool) Release(conn net.Conn) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	if p.closed || len(p.idle) >= p.maxSize {
		size := len(p.idle)
		p.mu.Unlock()

		_ = conn.Close()
		p.recordRelease(observability.ReleaseDropped)
		p.logger.Debug("pool at capacity, connection dropped",
			observability.Int("size", size),
		)
		return
	}

	p.idle = append(p.idle, &PooledConnection{conn: conn, lastUsed: p.now()})
	size := len(p.idle)
	p.mu.Unlock()

	p.setSize(size)
	p.recordRelease(observability.ReleaseReturned)
}

// Flush closes and removes every pooled connection and returns how many
// were removed.
func (p *ConnectionPool) Flush() int {
	p.mu.Lock()
	drained := p.idle
	p.idle = nil
	p.mu.Unlock()

	closeAll(drained)
	p.setSize(0)
	if p.metrics != nil {
		p.metrics.RecordFlush(len(drained))
	}

	return len(drained)
}

// Sweep evicts entries that are too old or fail the liveness probe. It
// never waits for the pool lock: when the pool is in use ok is false and
// nothing is evicted.
func (p *ConnectionPool) Sweep() (removed int, ok bool) {
	if !p.mu.TryLock() {
		return 0, false
	}

	now := p.now()
	kept := p.idle[:0]
	var evicted []*PooledConnection
	for _, pc := range p.idle {
		if now.Sub(pc.lastUsed) < p.idleTimeout && p.transport.Probe(pc.conn) == transport.ReadinessOpen {
			kept = append(kept, pc)
			continue
		}
		evicted = append(evicted, pc)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	size := len(p.idle)
	p.mu.Unlock()

	closeAll(evicted)
	p.setSize(size)

	return len(evicted), true
}

// Len returns the number of idle connections.
func (p *ConnectionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// MaxSize returns the current capacity.
func (p *ConnectionPool) MaxSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSize
}

// SetMaxSize changes the capacity. Shrinking below the current length
// closes the oldest entries. Non-positive values are ignored.
func (p *ConnectionPool) SetMaxSize(n int) {
	if n <= 0 {
		return
	}

	p.mu.Lock()
	p.maxSize = n
	var trimmed []*PooledConnection
	if excess := len(p.idle) - n; excess > 0 {
		trimmed = make([]*PooledConnection, excess)
		copy(trimmed, p.idle[:excess])
		p.idle = append(p.idle[:0], p.idle[excess:]...)
	}
	size := len(p.idle)
	p.mu.Unlock()

	closeAll(trimmed)
	p.setSize(size)

	if len(trimmed) > 0 {
		p.logger.Info("pool capacity reduced",
			observability.Int("max_size", n),
			observability.Int("trimmed", len(trimmed)),
		)
	}
}

// Stats returns a snapshot of the pool state.
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Idle:        len(p.idle),
		MaxSize:     p.maxSize,
		IdleTimeout: p.idleTimeout,
		Endpoint:    p.endpoint,
	}
}

// Endpoint returns the core endpoint the pool dials.
func (p *ConnectionPool) Endpoint() string {
	return p.endpoint
}

// Close flushes the pool and rejects further acquisitions. Releases after
// Close close the connection.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.Flush()
	return nil
}

func closeAll(entries []*PooledConnection) {
	for _, pc := range entries {
		_ = pc.conn.Close()
	}
}

func (p *ConnectionPool) setSize(n int) {
	if p.metrics != nil {
		p.metrics.SetPoolSize(n)
	}
}

func (p *ConnectionPool) recordAcquire(source string) {
	if p.metrics != nil {
		p.metrics.RecordAcquire(source)
	}
}

func (p *ConnectionPool) recordRelease(result string) {
	if p.metrics != nil {
		p.metrics.RecordRelease(result)
	}
}
