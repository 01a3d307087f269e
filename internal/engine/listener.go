package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/kiosksync/internal/feed"
)

// resubscribeDelay is how long the listener waits before reopening a
// subscription that ended with an error.
const resubscribeDelay = time.Second

// ErrListenerRunning is returned by Start on a listener already started.
var ErrListenerRunning = errors.New("listener already running")

// Listener subscribes to the backend change feed and reports every event.
//
// It never reads or writes the overlay. With a nil source (simulated mode)
// Start and Stop do nothing.
type Listener struct {
	source      feed.Source
	collections []string
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a listener on the orders and order_items collections.
func NewListener(source feed.Source, opts ...Option) *Listener {
	o := buildOptions(opts)
	return &Listener{
		source:      source,
		collections: feed.Watched,
		logger:      o.logger,
	}
}

// Enabled reports whether the listener has a feed to subscribe to.
func (l *Listener) Enabled() bool {
	return l.source != nil
}

// Start opens the subscription in the background and calls onChange for
// every event until Stop or ctx ends.
func (l *Listener) Start(ctx context.Context, onChange func(feed.Event)) error {
	if l.source == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return ErrListenerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, onChange, l.done)
	return nil
}

func (l *Listener) run(ctx context.Context, onChange func(feed.Event), done chan struct{}) {
	defer close(done)
	// Ending through the parent context leaves the listener startable again.
	defer l.release(done)
	l.logger.Debug("change feed listener started", "collections", l.collections)
	for {
		err := l.source.Subscribe(ctx, l.collections, onChange)
		if ctx.Err() != nil {
			l.logger.Debug("change feed listener stopped")
			return
		}
		l.logger.Warn("change feed subscription ended, retrying", "error", err, "delay", resubscribeDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

// release forgets the run that owns done, unless Stop already did.
func (l *Listener) release(done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != done {
		return
	}
	l.cancel()
	l.cancel, l.done = nil, nil
}

// Stop tears the subscription down and waits for it to finish.
// Idempotent: safe to call multiple times.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
