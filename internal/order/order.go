package order

import (
	"time"
)

// Fulfillment is how the order leaves the kiosk.
type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "pickup"
	FulfillmentDelivery Fulfillment = "delivery"
)

// Customer holds the contact fields captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Item is one order line. Prices are in minor currency units.
type Item struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"`
	Options   []string `json:"options,omitempty"`
}

// LineTotal returns quantity * unit price.
func (i Item) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Order is the record kept in sync between the backend, the overlay and
// every open context. ID is the primary key; Number is only for humans.
type Order struct {
	ID          string      `json:"id"`
	Number      string      `json:"order_number"`
	Status      Status      `json:"status"`
	Fulfillment Fulfillment `json:"fulfillment"`
	Customer    Customer    `json:"customer"`
	Items       []Item      `json:"items"`
	Notes       string      `json:"notes,omitempty"`

	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	Total       int64 `json:"total"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	PreparedAt  *time.Time `json:"prepared_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		for i, it := range o.Items {
			c.Items[i] = it
			if it.Options != nil {
				c.Items[i].Options = append([]string(nil), it.Options...)
			}
		}
	}
	c.UpdatedAt = cloneTime(o.UpdatedAt)
	c.PreparedAt = cloneTime(o.PreparedAt)
	c.ReadyAt = cloneTime(o.ReadyAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return c
}

// Create is the payload for a new order.
type Create struct {
	Fulfillment Fulfillment `json:"fulfillment"`
	Customer    Customer    `json:"customer"`
	Items       []Item      `json:"items"`
	Notes       string      `json:"notes,omitempty"`
	DeliveryFee int64       `json:"delivery_fee,omitempty"`
}

// Subtotal sums the item lines.
func (c Create) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.LineTotal()
	}
	return sum
}

// Build materializes the payload into a new order with status new.
func (c Create) Build(id, number string, now time.Time) Order {
	fulfillment := c.Fulfillment
	if fulfillment == "" {
		fulfillment = FulfillmentPickup
	}
	subtotal := c.Subtotal()
	o := Order{
		ID:          id,
		Number:      number,
		Status:      StatusNew,
		Fulfillment: fulfillment,
		Customer:    c.Customer,
		Notes:       c.Notes,
		Subtotal:    subtotal,
		DeliveryFee: c.DeliveryFee,
		Total:       subtotal + c.DeliveryFee,
		CreatedAt:   now.UTC(),
	}
	if len(c.Items) > 0 {
		o.Items = append([]Item(nil), c.Items...)
	}
	return o
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
