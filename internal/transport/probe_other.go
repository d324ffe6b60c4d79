//go:build !(linux || darwin || freebsd || openbsd || netbsd || dragonfly)

package transport

import "net"

func probe(conn net.Conn) Readiness {
	return deadlineProbe(conn)
}
