package remote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a remote call failed.
type Kind int

const (
	// KindNone means the call succeeded.
	KindNone Kind = iota
	// KindRejected means the backend understood the request and declined it
	// (authorization, validation, permission policy).
	KindRejected
	// KindUnreachable means the request never got a verdict: transport
	// failure, timeout, 5xx.
	KindUnreachable
	// KindNotFound means the addressed record does not exist remotely.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRejected:
		return "rejected"
	case KindUnreachable:
		return "unreachable"
	case KindNotFound:
		return "not_found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type returned by Adapter implementations.
type Error struct {
	Op      string // adapter operation, e.g. "update order status"
	Kind    Kind
	Status  int // HTTP status when one was received
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Rejected builds a KindRejected error.
func Rejected(op, message string) *Error {
	return &Error{Op: op, Kind: KindRejected, Message: message}
}

// Unreachable builds a KindUnreachable error.
func Unreachable(op string, cause error) *Error {
	return &Error{Op: op, Kind: KindUnreachable, Cause: cause}
}

// NotFound builds a KindNotFound error.
func NotFound(op, key string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Message: key}
}

// KindOf classifies any error returned by an adapter. Errors that are not
// *Error (including context deadlines) count as unreachable: no verdict
// was received.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnreachable
}

// IsRejected reports whether err is a backend rejection.
func IsRejected(err error) bool {
	return KindOf(err) == KindRejected
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ctxError converts a done context into an unreachable error.
func ctxError(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return Unreachable(op, err)
	}
	return nil
}
