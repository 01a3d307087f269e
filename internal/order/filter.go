package order

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Filter narrows a list of orders. Zero values match everything.
type Filter struct {
	Statuses   []Status  `json:"statuses,omitempty"`
	From       time.Time `json:"from,omitempty"` // inclusive created_at bound
	To         time.Time `json:"to,omitempty"`   // exclusive created_at bound
	SearchText string    `json:"search_text,omitempty"`
}

// WithoutStatus returns a copy of f with the status predicate removed.
func (f Filter) WithoutStatus() Filter {
	f.Statuses = nil
	return f
}

// HasStatus reports whether f restricts by status.
func (f Filter) HasStatus() bool {
	return len(f.Statuses) > 0
}

// Match reports whether o satisfies every predicate in f.
func (f Filter) Match(o Order) bool {
	if f.HasStatus() {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	if f.SearchText != "" {
		needle := foldText(f.SearchText)
		if needle == "" {
			return true
		}
		for _, hay := range []string{o.Number, o.Customer.Name, o.Customer.Phone} {
			if strings.Contains(foldText(hay), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// Apply returns the orders that match f, preserving order.
func (f Filter) Apply(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// foldText normalizes to NFC and case-folds so "ZOË" matches "zoë" whichever
// way the accent was typed.
func foldText(s string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(s)))
}
