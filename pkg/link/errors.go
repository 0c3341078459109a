package link

import (
	"errors"
	"fmt"
)

// Link errors.
var (
	// ErrNotReady indicates an operation was invoked while no link is
	// established.
	ErrNotReady = errors.New("link not ready")

	// ErrLinkClosed indicates the link has been torn down.
	ErrLinkClosed = errors.New("link closed")
)

// RejectedError reports that the platform refused a connect request
// outright. Rejection is non-transient: retrying with the same peer
// identity will not succeed.
type RejectedError struct {
	// Cause is the underlying platform error.
	Cause error
}

// Error returns the error message.
func (e *RejectedError) Error() string {
	if e.Cause == nil {
		return "connection rejected"
	}
	return fmt.Sprintf("connection rejected: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RejectedError) Unwrap() error { return e.Cause }

// ConnectFailedError reports a transient connect failure (peer
// unreachable, timeout). Retrying is safe.
type ConnectFailedError struct {
	// Cause is the underlying transport error.
	Cause error
}

// Error returns the error message.
func (e *ConnectFailedError) Error() string {
	if e.Cause == nil {
		return "connection failed"
	}
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ConnectFailedError) Unwrap() error { return e.Cause }

// IsRejected reports whether err is (or wraps) a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsConnectFailed reports whether err is (or wraps) a ConnectFailedError.
func IsConnectFailed(err error) bool {
	var ce *ConnectFailedError
	return errors.As(err, &ce)
}
