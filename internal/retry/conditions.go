package retry

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// notReadySignatures are message fragments that identify a core endpoint
// that is absent or not accepting connections. The numeric forms cover
// errors relayed from the core's own runtime; the last two are the
// zh-CN Windows renderings of file-not-found and connection-refused.
var notReadySignatures = []string{
	"os error 2",
	"os error 61",
	"os error 111",
	"connection refused",
	"no such file or directory",
	"cannot find the file",
	"系统找不到指定的文件",
	"拒绝连接",
}

// transientSignatures are message fragments of failures on an established
// connection.
var transientSignatures = []string{
	"broken pipe",
	"connection reset",
	"os error",
}

// IsNotReady reports whether err means the core endpoint is missing or
// refusing connections.
func IsNotReady(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, os.ErrNotExist) {
		return true
	}

	return containsAny(err.Error(), notReadySignatures)
}

// IsTransient reports whether err is an OS-level failure that a fresh
// connection is likely to cure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}

	return containsAny(err.Error(), transientSignatures)
}

// ShouldRetry reports whether a request that failed on attempt (starting
// at 1) with err gets another attempt under maxRetries. Not-ready errors
// are never retried.
func ShouldRetry(attempt, maxRetries int, err error) bool {
	if attempt > maxRetries {
		return false
	}
	if IsNotReady(err) {
		return false
	}
	return IsTransient(err)
}

func containsAny(msg string, fragments []string) bool {
	msg = strings.ToLower(msg)
	for _, f := range fragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
