//go:build windows

package transport

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// DefaultEndpoint is the core's named pipe.
const DefaultEndpoint = `\\.\pipe\coreipc`

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, endpoint)
}
