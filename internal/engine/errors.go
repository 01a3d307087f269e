package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/kiosksync/internal/order"
)

// Caller errors returned by Pipeline. Remote failures are never returned;
// they become fallbacks recorded in Outcome.
var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrTerminalState     = errors.New("order is in a terminal state")
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnresolvedOrder   = errors.New("order number cannot be resolved while the backend is unavailable")
)

// TransitionError describes a refused status change.
//
// It wraps one of the sentinel errors above, so callers can match with
// errors.Is and still report which order and statuses were involved.
type TransitionError struct {
	OrderID string
	From    order.Status
	To      order.Status
	Err     error
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("%s: %q (order=%s)", e.Err, e.To, e.OrderID)
	}
	return fmt.Sprintf("%s: %s -> %s (order=%s)", e.Err, e.From, e.To, e.OrderID)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsCallerError reports whether err is one of the Pipeline's caller errors.
// Uses errors.Is to handle wrapped errors.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrTerminalState) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrUnresolvedOrder)
}
