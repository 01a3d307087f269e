package remote

import (
	"time"

	"github.com/roach88/kiosksync/internal/order"
)

// SampleOrders returns a representative set of orders for simulated mode,
// created shortly before now and spread across the lifecycle.
func SampleOrders(now time.Time) []order.Order {
	at := func(minutesAgo int) time.Time {
		return now.UTC().Add(-time.Duration(minutesAgo) * time.Minute).Truncate(time.Second)
	}
	ptr := func(t time.Time) *time.Time { return &t }

	burger := order.Item{ProductID: "classic-burger", Name: "Classic Burger", Quantity: 1, UnitPrice: 1150}
	fries := order.Item{ProductID: "fries-large", Name: "Large Fries", Quantity: 1, UnitPrice: 450}
	shake := order.Item{ProductID: "vanilla-shake", Name: "Vanilla Shake", Quantity: 2, UnitPrice: 525}
	wrap := order.Item{ProductID: "chicken-wrap", Name: "Chicken Wrap", Quantity: 1, UnitPrice: 975, Options: []string{"no onion"}}
	combo := order.Item{ProductID: "family-combo", Name: "Family Combo", Quantity: 1, UnitPrice: 3499, Options: []string{"4 drinks", "2 large fries"}}

	orders := []order.Order{
		{
			ID:          "sample-0001",
			Number:      "9Y-KT42",
			Status:      order.StatusNew,
			Fulfillment: order.FulfillmentPickup,
			Customer:    order.Customer{Name: "Maya Chen", Phone: "555-0142"},
			Items:       []order.Item{burger, fries},
			CreatedAt:   at(3),
		},
		{
			ID:          "sample-0002",
			Number:      "9Y-PR17",
			Status:      order.StatusPreparing,
			Fulfillment: order.FulfillmentPickup,
			Customer:    order.Customer{Name: "Luis Ortega", Phone: "555-0117"},
			Items:       []order.Item{shake, wrap},
			CreatedAt:   at(9),
			PreparedAt:  ptr(at(7)),
		},
		{
			ID:          "sample-0003",
			Number:      "9Y-DX80",
			Status:      order.StatusOutForDelivery,
			Fulfillment: order.FulfillmentDelivery,
			Customer:    order.Customer{Name: "Priya Nair", Phone: "555-0180", Address: "12 Harbor St"},
			Items:       []order.Item{combo},
			DeliveryFee: 299,
			CreatedAt:   at(31),
			PreparedAt:  ptr(at(28)),
			ReadyAt:     ptr(at(15)),
		},
		{
			ID:          "sample-0004",
			Number:      "9Y-WB05",
			Status:      order.StatusReady,
			Fulfillment: order.FulfillmentPickup,
			Customer:    order.Customer{Name: "Tom Becker"},
			Items:       []order.Item{burger, shake},
			CreatedAt:   at(18),
			PreparedAt:  ptr(at(16)),
			ReadyAt:     ptr(at(6)),
		},
		{
			ID:          "sample-0005",
			Number:      "9Y-HM63",
			Status:      order.StatusDelivered,
			Fulfillment: order.FulfillmentPickup,
			Customer:    order.Customer{Name: "Aiko Tanaka", Email: "aiko@example.com"},
			Items:       []order.Item{wrap, fries},
			CreatedAt:   at(55),
			PreparedAt:  ptr(at(52)),
			ReadyAt:     ptr(at(44)),
			DeliveredAt: ptr(at(40)),
		},
		{
			ID:          "sample-0006",
			Number:      "9Y-CN29",
			Status:      order.StatusCancelled,
			Fulfillment: order.FulfillmentDelivery,
			Customer:    order.Customer{Name: "Sam Okafor", Phone: "555-0129"},
			Items:       []order.Item{combo},
			DeliveryFee: 299,
			CreatedAt:   at(70),
			CancelledAt: ptr(at(66)),
		},
	}
	for i := range orders {
		var sub int64
		for _, it := range orders[i].Items {
			sub += it.LineTotal()
		}
		orders[i].Subtotal = sub
		orders[i].Total = sub + orders[i].DeliveryFee
	}
	return orders
}
