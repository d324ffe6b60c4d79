package stream

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/coreipc/internal/coretest"
	"github.com/vyrodovalexey/coreipc/internal/transport"
)

// collector gathers delivered messages.
type collector struct {
	mu   sync.Mutex
	msgs []string
}

func (c *collector) add(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, string(data))
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func absentEndpoint(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "st")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "absent.sock")
}

func TestClient_ConnectDeliversMessages(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	feed := core.Stream("/traffic")

	c := NewClient(core.Endpoint)
	t.Cleanup(func() { c.Close() })

	var got collector
	h, err := c.Connect(context.Background(), "/traffic", got.add)
	require.NoError(t, err)
	assert.NotZero(t, h)
	assert.Equal(t, 1, c.Active())

	feed.WaitSubscribers(t, 1)
	assert.Equal(t, 1, feed.Send(`{"up":1,"down":2}`))
	assert.Equal(t, 1, feed.Send(`{"up":3,"down":4}`))

	require.Eventually(t, func() bool {
		return len(got.all()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"up":1,"down":2}`, `{"up":3,"down":4}`}, got.all())
}

func TestClient_DisconnectStopsDelivery(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	feed := core.Stream("/logs")

	c := NewClient(core.Endpoint)
	t.Cleanup(func() { c.Close() })

	var got collector
	h, err := c.Connect(context.Background(), "/logs?level=info", got.add)
	require.NoError(t, err)
	feed.WaitSubscribers(t, 1)

	assert.True(t, c.Disconnect(h))
	assert.False(t, c.Disconnect(h), "second disconnect of the same handle")
	assert.Equal(t, 0, c.Active())

	feed.WaitSubscribers(t, 0)
	assert.Equal(t, 0, feed.Send(`{"payload":"late"}`))
	assert.Empty(t, got.all())
}

func TestClient_HandlesAreUnique(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	feed := core.Stream("/traffic")

	c := NewClient(core.Endpoint)
	t.Cleanup(func() { c.Close() })

	seen := make(map[Handle]bool)
	for i := 0; i < 3; i++ {
		h, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
		require.NoError(t, err)
		assert.NotZero(t, h)
		assert.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
	}

	feed.WaitSubscribers(t, 3)
	assert.Equal(t, 3, c.DisconnectAll())
	assert.Equal(t, 0, c.Active())
	feed.WaitSubscribers(t, 0)
}

func TestClient_RemoteCloseRemovesSubscription(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	feed := core.Stream("/traffic")

	c := NewClient(core.Endpoint)
	t.Cleanup(func() { c.Close() })

	_, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
	require.NoError(t, err)
	feed.WaitSubscribers(t, 1)

	core.Close()

	require.Eventually(t, func() bool {
		return c.Active() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ConnectFailsWithoutCore(t *testing.T) {
	t.Parallel()

	c := NewClient(absentEndpoint(t))

	h, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
	require.Error(t, err)
	assert.Zero(t, h)
	assert.Equal(t, 0, c.Active())
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	core.HandleFunc("/traffic", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upgrade refused", http.StatusInternalServerError)
	})

	c := NewClient(core.Endpoint, WithBreaker(BreakerConfig{
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}))

	for i := 0; i < 2; i++ {
		_, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}

	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

// redirectTransport dials whichever endpoint is current, so a test can
// bring the core up after the client was created.
type redirectTransport struct {
	mu       sync.Mutex
	endpoint string
}

func (r *redirectTransport) set(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoint = endpoint
}

func (r *redirectTransport) Dial(ctx context.Context, _ string) (net.Conn, error) {
	r.mu.Lock()
	endpoint := r.endpoint
	r.mu.Unlock()
	return transport.Dial(ctx, endpoint)
}

func (r *redirectTransport) Probe(conn net.Conn) transport.Readiness {
	return transport.Probe(conn)
}

func TestClient_NotReadyFailuresKeepBreakerClosed(t *testing.T) {
	t.Parallel()

	tr := &redirectTransport{endpoint: absentEndpoint(t)}
	c := NewClient("core", WithClientTransport(tr), WithBreaker(BreakerConfig{
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}))
	t.Cleanup(func() { c.Close() })

	for i := 0; i < 5; i++ {
		_, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())

	core := coretest.NewServer(t)
	feed := core.Stream("/traffic")
	tr.set(core.Endpoint)

	h, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
	require.NoError(t, err)
	assert.NotZero(t, h)
	feed.WaitSubscribers(t, 1)
}

func TestClient_CloseRejectsConnect(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	feed := core.Stream("/traffic")

	c := NewClient(core.Endpoint)
	_, err := c.Connect(context.Background(), "/traffic", func([]byte) {})
	require.NoError(t, err)
	feed.WaitSubscribers(t, 1)

	assert.Equal(t, 1, c.Close())

	_, err = c.Connect(context.Background(), "/traffic", func([]byte) {})
	assert.ErrorIs(t, err, ErrClientClosed)
}
