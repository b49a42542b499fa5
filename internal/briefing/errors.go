package briefing

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failure so stages can decide between retrying,
// degrading and failing
type ErrorKind string

const (
	// Fetch stage
	KindAuth        ErrorKind = "auth_error"
	KindRateLimited ErrorKind = "rate_limited"
	KindNetwork     ErrorKind = "network_error"
	KindParse       ErrorKind = "parse_error"
	KindEmpty       ErrorKind = "empty_result"

	// Consolidation stage
	KindAIBackend ErrorKind = "ai_backend_error"

	// Synthesis stage
	KindTTSBackend    ErrorKind = "tts_backend_error"
	KindInputTooLarge ErrorKind = "input_too_large"

	// Delivery stage
	KindStorageWrite ErrorKind = "storage_write_error"
)

// Error is the typed error returned across every stage boundary
type Error struct {
	Kind      ErrorKind
	Op        string // e.g. "newsapi.fetch", "tts.cartesia"
	Temporary bool   // transient even if Kind alone is not
	Err       error
}

// NewError creates a new typed error
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewTemporaryError creates a typed error that the retry policy treats as transient
func NewTemporaryError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Temporary: true, Err: err}
}

// Errorf creates a typed error with a formatted message
func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Timeouts and cancellations are network
// errors; anything unrecognised returns the fallback kind.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	if err == nil {
		return ""
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return fallback
}

// IsTransient reports whether err may succeed when retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var typed *Error
	if errors.As(err, &typed) {
		if typed.Temporary {
			return true
		}
		return typed.Kind == KindNetwork || typed.Kind == KindRateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
