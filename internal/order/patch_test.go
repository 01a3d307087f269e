package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestStatusPatch_SetsOwnedTimestamp(t *testing.T) {
	tests := []struct {
		status Status
		field  func(Patch) *time.Time
	}{
		{StatusPreparing, func(p Patch) *time.Time { return p.PreparedAt }},
		{StatusReady, func(p Patch) *time.Time { return p.ReadyAt }},
		{StatusOutForDelivery, func(p Patch) *time.Time { return p.ReadyAt }},
		{StatusDelivered, func(p Patch) *time.Time { return p.DeliveredAt }},
		{StatusArrived, func(p Patch) *time.Time { return p.DeliveredAt }},
		{StatusCancelled, func(p Patch) *time.Time { return p.CancelledAt }},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p, err := StatusPatch(tt.status, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.status, p.StatusValue())
			require.NotNil(t, p.UpdatedAt)
			require.NotNil(t, tt.field(p))
			assert.True(t, tt.field(p).Equal(testNow))
		})
	}
}

func TestStatusPatch_NewSetsOnlyMarker(t *testing.T) {
	p, err := StatusPatch(StatusNew, testNow)
	require.NoError(t, err)
	assert.Nil(t, p.PreparedAt)
	assert.Nil(t, p.ReadyAt)
	assert.NotNil(t, p.UpdatedAt)
}

func TestStatusPatch_Unknown(t *testing.T) {
	_, err := StatusPatch(Status("lost"), testNow)
	require.Error(t, err)
}

func TestPatch_MergeLastWriteWins(t *testing.T) {
	first, _ := StatusPatch(StatusPreparing, testNow)
	second, _ := StatusPatch(StatusReady, testNow.Add(time.Minute))

	merged := first.Merge(second)
	assert.Equal(t, StatusReady, merged.StatusValue())
	assert.True(t, merged.PreparedAt.Equal(testNow), "field absent from second patch is kept")
	assert.True(t, merged.ReadyAt.Equal(testNow.Add(time.Minute)))
	assert.True(t, merged.UpdatedAt.Equal(testNow.Add(time.Minute)))
}

func TestPatch_MergeIdempotent(t *testing.T) {
	p, _ := StatusPatch(StatusPreparing, testNow)
	once := Patch{}.Merge(p)
	twice := once.Merge(p)
	assert.True(t, once.Equal(twice))
}

func TestPatch_ApplyIgnoresBaseValue(t *testing.T) {
	p, _ := StatusPatch(StatusOutForDelivery, testNow)

	stale := Order{ID: "a", Status: StatusNew}
	fresh := Order{ID: "a", Status: StatusPreparing, PreparedAt: &testNow}

	fromStale := p.Apply(stale)
	fromFresh := p.Apply(fresh)
	assert.Equal(t, StatusOutForDelivery, fromStale.Status)
	assert.Equal(t, fromStale.Status, fromFresh.Status)
	assert.True(t, fromStale.ReadyAt.Equal(*fromFresh.ReadyAt))
}

func TestPatch_ApplyDoesNotAliasBase(t *testing.T) {
	base := Order{ID: "a", Status: StatusNew, Items: []Item{{ProductID: "p1", Quantity: 1}}}
	p, _ := StatusPatch(StatusPreparing, testNow)

	out := p.Apply(base)
	out.Items[0].Quantity = 9
	assert.Equal(t, 1, base.Items[0].Quantity)
	assert.Equal(t, StatusNew, base.Status)
}

func TestPatch_JSONOmitsAbsentFields(t *testing.T) {
	st := StatusReady
	data, err := json.Marshal(Patch{Status: &st})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready"}`, string(data))

	var back Patch
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(Patch{Status: &st}))
	assert.False(t, back.IsZero())
	assert.True(t, Patch{}.IsZero())
}
