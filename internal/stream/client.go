package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/retry"
	"github.com/vyrodovalexey/coreipc/internal/transport"
)

// Client default configuration constants.
const (
	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultBreakerFailures is the number of consecutive connect failures
	// that opens the breaker.
	DefaultBreakerFailures = 5

	// DefaultBreakerTimeout is how long the breaker stays open.
	DefaultBreakerTimeout = 10 * time.Second

	// closeGracePeriod bounds writing the close frame on disconnect.
	closeGracePeriod = time.Second
)

var (
	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("stream client closed")

	// ErrBreakerOpen is returned by Connect while the breaker rejects
	// attempts.
	ErrBreakerOpen = errors.New("stream connect circuit open")
)

// Handle identifies one subscription. Zero is never a valid handle.
type Handle uint32

// BreakerConfig configures the connect circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// subscription is one live WebSocket connection.
type subscription struct {
	handle  Handle
	path    string
	conn    *websocket.Conn
	done    chan struct{}
	closing atomic.Bool
}

// Client dials WebSocket subscriptions to the core.
type Client struct {
	endpoint  string
	transport transport.Transport
	dialer    *websocket.Dialer
	breaker   *gobreaker.CircuitBreaker
	breakerCf BreakerConfig
	logger    observability.Logger

	mu     sync.Mutex
	next   uint32
	subs   map[Handle]*subscription
	closed bool
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*Client)

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger observability.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientTransport sets the transport used to reach the core.
func WithClientTransport(t transport.Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithBreaker sets the connect circuit breaker configuration.
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakerCf = cfg
	}
}

// NewClient creates a new client for endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:  endpoint,
		transport: transport.Default(),
		breakerCf: BreakerConfig{
			MaxFailures: DefaultBreakerFailures,
			OpenTimeout: DefaultBreakerTimeout,
		},
		logger: observability.NopLogger(),
		subs:   make(map[Handle]*subscription),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(observability.String("component", "stream-client"))

	c.dialer = &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.transport.Dial(ctx, c.endpoint)
		},
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	maxFailures := c.breakerCf.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerFailures
	}
	openTimeout := c.breakerCf.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = DefaultBreakerTimeout
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stream-connect",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A core that is still starting is polled through, not tripped on.
		IsSuccessful: func(err error) bool {
			return err == nil || retry.IsNotReady(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return c
}

// Connect opens a subscription to path and delivers every text or binary
// message to onMessage from a dedicated goroutine until the subscription
// ends. onMessage must not call Disconnect, DisconnectAll, or Close.
func (c *Client) Connect(ctx context.Context, path string, onMessage func([]byte)) (Handle, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClientClosed
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		conn, resp, err := c.dialer.DialContext(ctx, "ws://localhost"+path, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("connect %s: %w", path, ErrBreakerOpen)
		}
		return 0, fmt.Errorf("connect %s: %w", path, err)
	}
	conn := out.(*websocket.Conn)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return 0, ErrClientClosed
	}
	c.next++
	if c.next == 0 {
		c.next++
	}
	sub := &subscription{
		handle: Handle(c.next),
		path:   path,
		conn:   conn,
		done:   make(chan struct{}),
	}
	c.subs[sub.handle] = sub
	c.mu.Unlock()

	c.logger.Info("stream connected",
		observability.String("path", path),
		observability.Uint32("handle", uint32(sub.handle)),
	)

	go c.read(sub, onMessage)

	return sub.handle, nil
}

// read delivers messages until the connection fails or is closed.
func (c *Client) read(sub *subscription, onMessage func([]byte)) {
	defer close(sub.done)

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if !sub.closing.Load() {
				c.logger.Warn("stream ended by core",
					observability.String("path", sub.path),
					observability.Uint32("handle", uint32(sub.handle)),
					observability.Error(err),
				)
			}
			break
		}
		onMessage(data)
	}

	c.mu.Lock()
	if c.subs[sub.handle] == sub {
		delete(c.subs, sub.handle)
	}
	c.mu.Unlock()
	_ = sub.conn.Close()
}

// Disconnect ends the subscription identified by h and waits until its
// delivery goroutine has exited. It reports whether h was live.
func (c *Client) Disconnect(h Handle) bool {
	c.mu.Lock()
	sub, ok := c.subs[h]
	if ok {
		delete(c.subs, h)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	c.shutdown(sub)
	c.logger.Info("stream disconnected",
		observability.String("path", sub.path),
		observability.Uint32("handle", uint32(h)),
	)
	return true
}

// DisconnectAll ends every subscription and returns how many were live.
func (c *Client) DisconnectAll() int {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for h, sub := range c.subs {
		subs = append(subs, sub)
		delete(c.subs, h)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		c.shutdown(sub)
	}
	return len(subs)
}

// Close disconnects everything and rejects further connects.
func (c *Client) Close() int {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return c.DisconnectAll()
}

// Active returns the number of live subscriptions.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// BreakerState returns the connect circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) shutdown(sub *subscription) {
	sub.closing.Store(true)
	_ = sub.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod),
	)
	_ = sub.conn.Close()
	<-sub.done
}
