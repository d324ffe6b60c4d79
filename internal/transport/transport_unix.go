//go:build !windows

package transport

import (
	"context"
	"net"
)

// DefaultEndpoint is the core's Unix domain socket path.
const DefaultEndpoint = "/tmp/coreipc.sock"

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}
