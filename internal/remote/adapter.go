// Package remote is the boundary to the authoritative order backend.
//
// Two Adapter implementations exist: Client talks HTTP to a configured
// backend, Simulated keeps an in-process collection for development and
// offline demos. The composition root picks one; nothing else branches on
// the mode.
//
// Adapters fail loudly. They return *Error with a Kind instead of
// substituting data; deciding to fall back is the write pipeline's job.
package remote

import (
	"context"

	"github.com/roach88/kiosksync/internal/order"
)

// Operation names used in errors and metrics.
const (
	OpCreate = "create order"
	OpList   = "list orders"
	OpGet    = "get order"
	OpUpdate = "update order status"
)

// Adapter is the narrow contract the sync core needs from the backend.
type Adapter interface {
	// CreateOrder persists a new order and returns the stored record.
	CreateOrder(ctx context.Context, payload order.Create) (order.Order, error)
	// ListOrders returns orders matching filter.
	ListOrders(ctx context.Context, filter order.Filter) ([]order.Order, error)
	// GetOrder looks an order up by id or order number. A missing order is
	// (nil, nil), not an error.
	GetOrder(ctx context.Context, key string) (*order.Order, error)
	// UpdateOrderStatus applies patch to order id. A rejected write must
	// return an error, never a silent no-op.
	UpdateOrderStatus(ctx context.Context, id string, patch order.Patch) (order.Order, error)
}
