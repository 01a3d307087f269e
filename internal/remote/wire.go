package remote

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/kiosksync/internal/order"
)

// ErrorBody is the JSON error envelope of the backend HTTP contract.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusUpdate is the PATCH /orders/{id}/status request body.
type StatusUpdate struct {
	Patch order.Patch `json:"patch"`
}

// EncodeFilter renders f as query parameters for GET /orders.
func EncodeFilter(f order.Filter) url.Values {
	q := url.Values{}
	if f.HasStatus() {
		parts := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			parts[i] = string(s)
		}
		q.Set("status", strings.Join(parts, ","))
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339Nano))
	}
	if f.SearchText != "" {
		q.Set("q", f.SearchText)
	}
	return q
}

// DecodeFilter parses the query produced by EncodeFilter.
func DecodeFilter(q url.Values) (order.Filter, error) {
	var f order.Filter
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := order.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				return order.Filter{}, err
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	var err error
	if f.From, err = parseBound(q, "from"); err != nil {
		return order.Filter{}, err
	}
	if f.To, err = parseBound(q, "to"); err != nil {
		return order.Filter{}, err
	}
	f.SearchText = q.Get("q")
	return f, nil
}

func parseBound(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s bound %q: %w", name, raw, err)
	}
	return t, nil
}
