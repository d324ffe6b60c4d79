package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Readiness is the result of probing an idle connection.
type Readiness int

const (
	// ReadinessOpen means the peer is connected and nothing is pending.
	ReadinessOpen Readiness = iota
	// ReadinessClosed means the peer closed the connection.
	ReadinessClosed
	// ReadinessFailed means the probe itself failed.
	ReadinessFailed
)

// String returns the readiness name.
func (r Readiness) String() string {
	switch r {
	case ReadinessOpen:
		return "open"
	case ReadinessClosed:
		return "closed"
	case ReadinessFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// probeDeadline bounds the fallback probe read.
const probeDeadline = time.Millisecond

// Transport dials the core endpoint and probes idle connections.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (net.Conn, error)
	Probe(conn net.Conn) Readiness
}

// localTransport is the platform transport.
type localTransport struct{}

// Default returns the platform transport.
func Default() Transport {
	return localTransport{}
}

// Dial connects to endpoint.
func (localTransport) Dial(ctx context.Context, endpoint string) (net.Conn, error) {
	return dial(ctx, endpoint)
}

// Probe checks an idle connection without blocking.
func (localTransport) Probe(conn net.Conn) Readiness {
	return probe(conn)
}

// Dial connects to endpoint with the platform transport.
func Dial(ctx context.Context, endpoint string) (net.Conn, error) {
	return dial(ctx, endpoint)
}

// Probe checks an idle connection with the platform transport.
func Probe(conn net.Conn) Readiness {
	return probe(conn)
}

// deadlineProbe reads one byte with a short deadline. A byte that does
// arrive is consumed, which is acceptable only because idle pooled
// connections never carry unread data. The read blocks for up to
// probeDeadline on a healthy connection.
func deadlineProbe(conn net.Conn) Readiness {
	var buf [1]byte

	if err := conn.SetReadDeadline(time.Now().Add(probeDeadline)); err != nil {
		if !isClosedErr(err) {
			return ReadinessFailed
		}
		// Some conns refuse deadlines once either end has closed. The read
		// then returns at once and tells the two ends apart.
		n, rerr := conn.Read(buf[:])
		return classifyRead(n, rerr)
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	n, err := conn.Read(buf[:])
	return classifyRead(n, err)
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}

func classifyRead(n int, err error) Readiness {
	switch {
	case n > 0:
		return ReadinessOpen
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ReadinessOpen
	case errors.Is(err, io.EOF):
		return ReadinessClosed
	case err != nil:
		return ReadinessFailed
	default:
		return ReadinessClosed
	}
}
