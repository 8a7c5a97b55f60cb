package expo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Match them with errors.Is against any error returned by the
// client.
var (
	// ErrEmpty is returned by the single-chunk primitives for an empty input.
	ErrEmpty = errors.New("empty input")
	// ErrSerialization means a message or id could not be encoded.
	ErrSerialization = errors.New("serialization failed")
	// ErrTransport covers connection failures, timeouts and non-2xx replies.
	ErrTransport = errors.New("transport failed")
	// ErrDecode means the response did not match the expected envelope.
	ErrDecode = errors.New("decoding failed")
	// ErrCompression means the gzip encoder failed on the request body.
	ErrCompression = errors.New("compression failed")
	// ErrInvalidToken is returned by ParsePushToken.
	ErrInvalidToken = errors.New("invalid push token")
)

// Error is the typed error returned by every Client operation.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Op names the operation that failed, e.g. "send" or "getReceipts".
	Op string
	// StatusCode is the HTTP status for non-2xx replies, zero otherwise.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := "expo: " + e.Op + ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether a failed call may succeed if repeated as is.
// Only transport failures qualify, and not those caused by the caller's
// context or by a 4xx rejection of the request itself.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrTransport {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode == http.StatusTooManyRequests
	}
	return true
}
