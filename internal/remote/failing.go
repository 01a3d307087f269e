package remote

import (
	"context"

	"github.com/roach88/kiosksync/internal/order"
)

// FailingUpdates wraps an Adapter and rejects every status update, the way
// a backend with a misconfigured permission policy does. Reads and creates
// pass through.
type FailingUpdates struct {
	Adapter
	Message string
}

// UpdateOrderStatus always fails with KindRejected.
func (f FailingUpdates) UpdateOrderStatus(ctx context.Context, id string, _ order.Patch) (order.Order, error) {
	if err := ctxError(ctx, OpUpdate); err != nil {
		return order.Order{}, err
	}
	msg := f.Message
	if msg == "" {
		msg = "permission denied for table orders"
	}
	return order.Order{}, Rejected(OpUpdate, msg+" ("+id+")")
}
