// Package broadcast keeps independent execution contexts of one kiosk
// installation (windows, worker processes) looking at the same overlay
// without a round trip through the backend.
//
// Every message carries the entire overlay map, never a diff. Delivery is
// best-effort; a late or duplicated message can at worst show an older full
// snapshot until the next one supersedes it. A context never receives its
// own publishes.
package broadcast

import (
	"github.com/roach88/kiosksync/internal/order"
)

// KindOverlayUpdate tags a full overlay snapshot.
const KindOverlayUpdate = "overlay_update"

// Message is the wire shape shared by every channel implementation.
type Message struct {
	Kind   string         `json:"kind"`
	Origin string         `json:"origin"`
	Map    order.PatchSet `json:"map"`
}

// Handler receives a snapshot published by another context.
type Handler func(set order.PatchSet)

// Channel is one context's handle on the broadcast medium.
type Channel interface {
	// Publish sends set to every other live context. Never blocks on delivery.
	Publish(set order.PatchSet)
	// Subscribe registers h for snapshots from other contexts.
	Subscribe(h Handler)
	// Origin identifies this context on the channel.
	Origin() string
	// Close detaches from the medium.
	Close() error
}
