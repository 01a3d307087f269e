// Package feed carries row-level change notifications from the backend to
// every running kiosk process.
//
// Events say only that something changed; consumers re-read through the
// reconciler rather than trusting event payloads.
package feed

import (
	"context"
	"time"
)

// Collections watched by the realtime listener.
const (
	CollectionOrders     = "orders"
	CollectionOrderItems = "order_items"
)

// Watched is the default subscription set.
var Watched = []string{CollectionOrders, CollectionOrderItems}

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one change notification.
type Event struct {
	Collection string    `json:"collection"`
	Op         Op        `json:"op"`
	RecordID   string    `json:"record_id"`
	At         time.Time `json:"at"`
}

// Handler receives events for subscribed collections.
type Handler func(Event)

// Source is the subscribing side of a change feed.
type Source interface {
	// Subscribe delivers events for collections to fn until ctx is done.
	// It blocks; a nil return means ctx ended.
	Subscribe(ctx context.Context, collections []string, fn Handler) error
}

// Sink is the publishing side.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

func wants(collections []string, c string) bool {
	if len(collections) == 0 {
		return true
	}
	for _, want := range collections {
		if want == c {
			return true
		}
	}
	return false
}
