package remote

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/order"
)

func TestFilterQuery_RoundTrip(t *testing.T) {
	f := order.Filter{
		Statuses:   []order.Status{order.StatusNew, order.StatusPreparing},
		From:       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		SearchText: "Zoë",
	}
	q := EncodeFilter(f)
	assert.Equal(t, "new,preparing", q.Get("status"))

	got, err := DecodeFilter(q)
	require.NoError(t, err)
	assert.Equal(t, f.Statuses, got.Statuses)
	assert.True(t, f.From.Equal(got.From))
	assert.True(t, f.To.Equal(got.To))
	assert.Equal(t, f.SearchText, got.SearchText)
}

func TestEncodeFilter_Empty(t *testing.T) {
	assert.Empty(t, EncodeFilter(order.Filter{}))
}

func TestDecodeFilter_Invalid(t *testing.T) {
	_, err := DecodeFilter(url.Values{"status": {"teleported"}})
	assert.Error(t, err)

	_, err = DecodeFilter(url.Values{"from": {"yesterday"}})
	assert.Error(t, err)
}
