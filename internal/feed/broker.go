package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// subscriberBuffer bounds how far a slow subscriber can fall behind before
// events are dropped for it.
const subscriberBuffer = 256

// Broker is an in-memory Source and Sink. The reference backend emits into
// it; in-process listeners subscribe to it.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	logger *slog.Logger
}

type subscriber struct {
	collections []string
	events      chan Event
}

var (
	_ Source = (*Broker)(nil)
	_ Sink   = (*Broker)(nil)
)

// NewBroker creates a broker. A nil logger discards.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broker{subs: make(map[int]*subscriber), logger: logger}
}

// Emit delivers ev to every subscriber of its collection without blocking.
func (b *Broker) Emit(_ context.Context, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		if !wants(s.collections, ev.Collection) {
			continue
		}
		select {
		case s.events <- ev:
		default:
			b.logger.Warn("feed subscriber lagging, event dropped", "subscriber", id, "collection", ev.Collection)
		}
	}
}

// Subscribe implements Source.
func (b *Broker) Subscribe(ctx context.Context, collections []string, fn Handler) error {
	s := &subscriber{
		collections: append([]string(nil), collections...),
		events:      make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			fn(ev)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
