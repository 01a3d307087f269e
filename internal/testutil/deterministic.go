package testutil

import (
	"github.com/roach88/kiosksync/internal/order"
)

// DefaultSeed seeds the order-number generator of NewDeterministic.
const DefaultSeed uint64 = 20260314

// Deterministic bundles the time, id and order-number sources a test needs
// to produce identical results on every run.
type Deterministic struct {
	Clock   *DeterministicClock
	IDs     *order.SequentialIDs
	Numbers *order.NumberGenerator
}

// NewDeterministic returns sources whose ids look like "<prefix>-1",
// "<prefix>-2" and so on.
func NewDeterministic(prefix string, seed uint64) *Deterministic {
	return &Deterministic{
		Clock:   NewDeterministicClock(),
		IDs:     order.NewSequentialIDs(prefix),
		Numbers: order.NewSeededNumberGenerator(seed),
	}
}
