package errors

import (
	"context"
	stderrs "errors"
	"net"
)

// Retryable reports whether the error is worth retrying.
// Only transport failures, timeouts, and rate limiting qualify; a legitimate
// not-found or sealed result can never change on retry
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeNetworkFailure, ErrorCodeTimeout, ErrorCodeRateLimited:
		return true
	case ErrorCodeUnknown:
		// foreign errors: inspect the transport layer
		return isTransientTransport(err)
	default:
		return false
	}
}

// isTransientTransport classifies raw net/context errors from external calls
func isTransientTransport(err error) bool {
	if stderrs.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if stderrs.As(err, &ne) {
		return ne.Timeout()
	}
	var oe *net.OpError
	return stderrs.As(err, &oe)
}

// Classify converts a foreign error into a coded *Error without losing the cause.
// Already-coded errors pass through unchanged
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrorCodeTimeout, "deadline exceeded")
	}
	if stderrs.Is(err, context.Canceled) {
		return Wrap(err, ErrorCodeTimeout, "canceled")
	}
	if isTransientTransport(err) {
		return Wrap(err, ErrorCodeNetworkFailure, "transport failure")
	}
	return Wrap(err, ErrorCodeUnknown, "unclassified failure")
}
