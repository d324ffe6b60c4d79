// Package transport provides the platform local-IPC capability used to
// reach the proxy core: a Unix domain socket on Unix-like systems and a
// named pipe on Windows.
//
// # Features
//
//   - Context-aware dialing of the core endpoint
//   - Non-destructive liveness probing of idle connections
//   - Platform default endpoints
//
// # Usage
//
//	conn, err := transport.Dial(ctx, transport.DefaultEndpoint)
//	if err != nil {
//	    return err
//	}
//	if transport.Probe(conn) != transport.ReadinessOpen {
//	    _ = conn.Close()
//	}
//
// On Linux and the BSDs Probe peeks one byte with MSG_PEEK|MSG_DONTWAIT,
// so a pooled connection is never consumed by the check. Elsewhere it
// falls back to a one-byte read bounded by a short deadline.
package transport
