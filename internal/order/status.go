package order

import "fmt"

// Status is the order lifecycle state.
type Status string

const (
	StatusNew            Status = "new"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusArrived        Status = "arrived"
	StatusCancelled      Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusNew,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusArrived,
	StatusCancelled,
}

// rank orders the forward path. cancelled sits outside it.
var rank = map[Status]int{
	StatusNew:            0,
	StatusPreparing:      1,
	StatusReady:          2,
	StatusOutForDelivery: 2,
	StatusDelivered:      3,
	StatusArrived:        3,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no further lifecycle change is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusArrived, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next follows the forward-only
// machine. Re-applying the current status is allowed so retries stay
// idempotent.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return rank[next] > rank[s]
}

func (s Status) String() string {
	return string(s)
}
