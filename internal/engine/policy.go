package engine

import (
	"fmt"

	"github.com/roach88/kiosksync/internal/order"
)

// TerminalPolicy decides whether an order may leave a terminal status.
type TerminalPolicy int

const (
	// TerminalReject refuses any change away from delivered, arrived or
	// cancelled. Re-applying the same terminal status is still allowed.
	TerminalReject TerminalPolicy = iota
	// TerminalAllow lets staff correct a terminal order, including moving it
	// backwards.
	TerminalAllow
)

// ParseTerminalPolicy accepts "reject" (or "") and "allow".
func ParseTerminalPolicy(s string) (TerminalPolicy, error) {
	switch s {
	case "", "reject":
		return TerminalReject, nil
	case "allow":
		return TerminalAllow, nil
	}
	return TerminalReject, fmt.Errorf("unknown terminal policy %q (want reject or allow)", s)
}

func (p TerminalPolicy) String() string {
	if p == TerminalAllow {
		return "allow"
	}
	return "reject"
}

// Check validates moving an order from one status to another.
func (p TerminalPolicy) Check(orderID string, from, to order.Status) error {
	if !to.Valid() {
		return &TransitionError{OrderID: orderID, From: from, To: to, Err: ErrInvalidStatus}
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		if p == TerminalAllow {
			return nil
		}
		return &TransitionError{OrderID: orderID, From: from, To: to, Err: ErrTerminalState}
	}
	if !from.CanTransition(to) {
		return &TransitionError{OrderID: orderID, From: from, To: to, Err: ErrInvalidTransition}
	}
	return nil
}
