package forwarder

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/coreipc/internal/retry"
)

// Operations reported in ForwardError.Op.
const (
	OpGate     = "gate"
	OpAcquire  = "acquire"
	OpExchange = "exchange"
)

// ErrUnexpectedStatus is matched by StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ForwardError describes a request that could not be completed.
type ForwardError struct {
	Op       string // Operation that failed
	Method   string
	Path     string
	Attempts int   // Attempts made before giving up
	Cause    error // Underlying error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	switch e.Op {
	case OpAcquire:
		return fmt.Sprintf("acquire connection failed: %v", e.Cause)
	case OpGate:
		return fmt.Sprintf("acquire mutation lock failed: %v", e.Cause)
	default:
		return fmt.Sprintf("IPC request failed: %v", e.Cause)
	}
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ForwardError) Is(target error) bool {
	_, ok := target.(*ForwardError)
	return ok || errors.Is(e.Cause, target)
}

// NotReady reports whether the failure means the core endpoint is not
// accepting connections yet.
func (e *ForwardError) NotReady() bool {
	return retry.IsNotReady(e.Cause)
}

// IsNotReady reports whether err is a not-ready failure.
func IsNotReady(err error) bool {
	var fe *ForwardError
	if errors.As(err, &fe) {
		return fe.NotReady()
	}
	return retry.IsNotReady(err)
}

// StatusError is returned by Get for responses outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Is matches ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}
