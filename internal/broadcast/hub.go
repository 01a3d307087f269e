package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
)

// Hub connects contexts living in one process. Each context joins and gets
// its own Endpoint.
//
// Delivery is synchronous: Publish returns after every other endpoint's
// handlers ran. Handlers must not publish back on the same endpoint.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]*Endpoint)}
}

// Join attaches a new context to the hub.
func (h *Hub) Join(m *metrics.Metrics) *Endpoint {
	ep := &Endpoint{
		hub:     h,
		origin:  uuid.Must(uuid.NewV7()).String(),
		metrics: m,
	}
	h.mu.Lock()
	h.endpoints[ep.origin] = ep
	h.mu.Unlock()
	return ep
}

// Size returns the number of attached endpoints.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

func (h *Hub) fanOut(msg Message) {
	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.endpoints))
	for origin, ep := range h.endpoints {
		if origin != msg.Origin {
			targets = append(targets, ep)
		}
	}
	h.mu.RUnlock()

	for _, ep := range targets {
		ep.deliver(msg)
	}
}

func (h *Hub) leave(origin string) {
	h.mu.Lock()
	delete(h.endpoints, origin)
	h.mu.Unlock()
}

// Endpoint is one context's Channel on a Hub.
type Endpoint struct {
	hub     *Hub
	origin  string
	metrics *metrics.Metrics

	mu       sync.RWMutex
	handlers []Handler
	closed   bool
}

var _ Channel = (*Endpoint)(nil)

// Origin returns the endpoint's context id.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Publish fans set out to every other endpoint on the hub.
func (e *Endpoint) Publish(set order.PatchSet) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return
	}
	e.metrics.Broadcast("sent")
	e.hub.fanOut(Message{Kind: KindOverlayUpdate, Origin: e.origin, Map: set.Clone()})
}

// Subscribe registers h.
func (e *Endpoint) Subscribe(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Close detaches the endpoint. Further publishes are dropped.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.hub.leave(e.origin)
	return nil
}

func (e *Endpoint) deliver(msg Message) {
	if msg.Kind != KindOverlayUpdate || msg.Origin == e.origin {
		return
	}
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	handlers := append([]Handler(nil), e.handlers...)
	e.mu.RUnlock()

	e.metrics.Broadcast("received")
	for _, h := range handlers {
		h(msg.Map.Clone())
	}
}
