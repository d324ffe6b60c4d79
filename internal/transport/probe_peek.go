//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package transport

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func probe(conn net.Conn) Readiness {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return deadlineProbe(conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return ReadinessFailed
	}

	state := ReadinessOpen
	var buf [1]byte
	// Returning true from the callback tells the poller not to wait.
	rerr := raw.Read(func(fd uintptr) bool {
		n, _, err := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
			state = ReadinessOpen
		case err != nil:
			state = ReadinessFailed
		case n == 0:
			state = ReadinessClosed
		default:
			state = ReadinessOpen
		}
		return true
	})
	if rerr != nil {
		return ReadinessFailed
	}
	return state
}
