package order

import (
	"fmt"
	"time"
)

// Patch is an overlay entry: the subset of order fields a mutation changed.
// Nil fields are absent.
type Patch struct {
	Status      *Status    `json:"status,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	PreparedAt  *time.Time `json:"prepared_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// PatchSet is the durable overlay map keyed by order id.
type PatchSet map[string]Patch

// Clone copies the set. Patch values are immutable once stored, so a shallow
// copy of each entry is enough.
func (ps PatchSet) Clone() PatchSet {
	out := make(PatchSet, len(ps))
	for id, p := range ps {
		out[id] = p
	}
	return out
}

// StatusPatch builds the full patch for entering status at time now: the
// status, the one timestamp that status owns, and the update marker.
func StatusPatch(status Status, now time.Time) (Patch, error) {
	if !status.Valid() {
		return Patch{}, fmt.Errorf("status patch: unknown status %q", status)
	}
	at := now.UTC()
	st := status
	p := Patch{Status: &st, UpdatedAt: &at}
	switch status {
	case StatusPreparing:
		p.PreparedAt = &at
	case StatusReady, StatusOutForDelivery:
		p.ReadyAt = &at
	case StatusDelivered, StatusArrived:
		p.DeliveredAt = &at
	case StatusCancelled:
		p.CancelledAt = &at
	}
	return p, nil
}

// Merge overlays next onto p field by field; present fields in next win.
func (p Patch) Merge(next Patch) Patch {
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.UpdatedAt != nil {
		p.UpdatedAt = next.UpdatedAt
	}
	if next.PreparedAt != nil {
		p.PreparedAt = next.PreparedAt
	}
	if next.ReadyAt != nil {
		p.ReadyAt = next.ReadyAt
	}
	if next.DeliveredAt != nil {
		p.DeliveredAt = next.DeliveredAt
	}
	if next.CancelledAt != nil {
		p.CancelledAt = next.CancelledAt
	}
	return p
}

// Apply returns o with every present patch field written over it.
func (p Patch) Apply(o Order) Order {
	o = o.Clone()
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.UpdatedAt != nil {
		o.UpdatedAt = cloneTime(p.UpdatedAt)
	}
	if p.PreparedAt != nil {
		o.PreparedAt = cloneTime(p.PreparedAt)
	}
	if p.ReadyAt != nil {
		o.ReadyAt = cloneTime(p.ReadyAt)
	}
	if p.DeliveredAt != nil {
		o.DeliveredAt = cloneTime(p.DeliveredAt)
	}
	if p.CancelledAt != nil {
		o.CancelledAt = cloneTime(p.CancelledAt)
	}
	return o
}

// IsZero reports whether the patch carries no fields.
func (p Patch) IsZero() bool {
	return p.Status == nil && p.UpdatedAt == nil && p.PreparedAt == nil &&
		p.ReadyAt == nil && p.DeliveredAt == nil && p.CancelledAt == nil
}

// StatusValue returns the patched status, or "" when the patch leaves it alone.
func (p Patch) StatusValue() Status {
	if p.Status == nil {
		return ""
	}
	return *p.Status
}

// Equal compares two patches field by field.
func (p Patch) Equal(other Patch) bool {
	return p.StatusValue() == other.StatusValue() &&
		timeEqual(p.UpdatedAt, other.UpdatedAt) &&
		timeEqual(p.PreparedAt, other.PreparedAt) &&
		timeEqual(p.ReadyAt, other.ReadyAt) &&
		timeEqual(p.DeliveredAt, other.DeliveredAt) &&
		timeEqual(p.CancelledAt, other.CancelledAt)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
