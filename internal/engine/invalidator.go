package engine

import (
	"sync"

	"github.com/roach88/kiosksync/internal/metrics"
)

// Invalidation sources, used as metric labels.
const (
	InvalidateFeed      = "feed"
	InvalidateBroadcast = "broadcast"
)

// Invalidator tells views that their data may be stale.
//
// Signals coalesce: the channel has a buffer of one, so any number of
// notifications before a view re-reads collapse into a single wakeup. A view
// only needs to know that something changed, not what or how often.
type Invalidator struct {
	mu      sync.Mutex
	closed  bool
	signal  chan struct{}
	metrics *metrics.Metrics
}

// NewInvalidator creates an open invalidator.
func NewInvalidator(m *metrics.Metrics) *Invalidator {
	return &Invalidator{
		signal:  make(chan struct{}, 1),
		metrics: m,
	}
}

// Notify records a change from source. Never blocks. Returns false after Close.
func (i *Invalidator) Notify(source string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false
	}
	i.metrics.Invalidation(source)

	select {
	case i.signal <- struct{}{}:
	default:
	}
	return true
}

// C returns the channel that receives coalesced signals. It is closed by
// Close, which wakes every waiter.
func (i *Invalidator) C() <-chan struct{} {
	return i.signal
}

// Close stops accepting notifications.
// Idempotent: safe to call multiple times.
func (i *Invalidator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}
	i.closed = true
	close(i.signal)
}
