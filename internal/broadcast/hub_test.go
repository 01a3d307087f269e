package broadcast

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
)

func readyPatchSet(id string) order.PatchSet {
	st := order.StatusReady
	return order.PatchSet{id: {Status: &st}}
}

func TestHub_DeliversToOthers(t *testing.T) {
	hub := NewHub()
	a := hub.Join(nil)
	b := hub.Join(nil)
	c := hub.Join(nil)

	var gotB, gotC []order.PatchSet
	b.Subscribe(func(set order.PatchSet) { gotB = append(gotB, set) })
	c.Subscribe(func(set order.PatchSet) { gotC = append(gotC, set) })

	a.Publish(readyPatchSet("o1"))

	require.Len(t, gotB, 1)
	require.Len(t, gotC, 1)
	assert.Equal(t, order.StatusReady, gotB[0]["o1"].StatusValue())
}

func TestHub_NoEcho(t *testing.T) {
	hub := NewHub()
	a := hub.Join(nil)
	_ = hub.Join(nil)

	echoed := 0
	a.Subscribe(func(order.PatchSet) { echoed++ })

	a.Publish(readyPatchSet("o1"))
	assert.Zero(t, echoed)
}

func TestHub_ReceiverOwnsCopy(t *testing.T) {
	hub := NewHub()
	a := hub.Join(nil)
	b := hub.Join(nil)

	var got order.PatchSet
	b.Subscribe(func(set order.PatchSet) { got = set })

	sent := readyPatchSet("o1")
	a.Publish(sent)
	delete(sent, "o1")

	assert.Contains(t, got, "o1")
}

func TestHub_CloseDetaches(t *testing.T) {
	hub := NewHub()
	a := hub.Join(nil)
	b := hub.Join(nil)
	require.Equal(t, 2, hub.Size())

	received := 0
	b.Subscribe(func(order.PatchSet) { received++ })
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, hub.Size())

	a.Publish(readyPatchSet("o1"))
	assert.Zero(t, received)

	require.NoError(t, a.Close())
	assert.NotPanics(t, func() { a.Publish(readyPatchSet("o2")) })
}

func TestHub_Metrics(t *testing.T) {
	m := metrics.New()
	hub := NewHub()
	a := hub.Join(m)
	b := hub.Join(m)
	b.Subscribe(func(order.PatchSet) {})

	a.Publish(readyPatchSet("o1"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastMessages.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastMessages.WithLabelValues("received")))
}

func TestHub_OriginsUnique(t *testing.T) {
	hub := NewHub()
	assert.NotEqual(t, hub.Join(nil).Origin(), hub.Join(nil).Origin())
}
