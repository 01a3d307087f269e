package backend

import (
	"context"
	"net"
	"net/http"
	"sync"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/feed"
	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/remote"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recordingSink) Emit(_ context.Context, ev feed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []feed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feed.Event(nil), r.events...)
}

type testBackend struct {
	sim    *remote.Simulated
	sink   *recordingSink
	client *remote.Client
	url    string
}

func newTestBackend(t *testing.T, policy Policy) *testBackend {
	t.Helper()
	sim := remote.NewSimulated(
		remote.WithClock(func() time.Time { return testNow }),
		remote.WithIDGenerator(order.NewSequentialIDs("srv")),
		remote.WithOrders(remote.SampleOrders(testNow)...),
	)
	sink := &recordingSink{}
	srv := httptest.NewServer(NewServer(sim,
		WithSink(sink),
		WithPolicy(policy),
		WithMetrics(metrics.New()),
		WithClock(func() time.Time { return testNow }),
	))
	t.Cleanup(srv.Close)

	client, err := remote.NewClient(remote.ClientOptions{BaseURL: srv.URL, APIKey: policy.APIKey})
	require.NoError(t, err)
	return &testBackend{sim: sim, sink: sink, client: client, url: srv.URL}
}

func TestServer_ClientRoundTrip(t *testing.T) {
	b := newTestBackend(t, Policy{APIKey: "k"})
	ctx := context.Background()

	created, err := b.client.CreateOrder(ctx, order.Create{
		Customer: order.Customer{Name: "Rosa"},
		Items:    []order.Item{{ProductID: "p", Name: "Pie", Quantity: 2, UnitPrice: 300}},
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, int64(600), created.Total)

	got, err := b.client.GetOrder(ctx, created.Number)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	patch, err := order.StatusPatch(order.StatusPreparing, testNow)
	require.NoError(t, err)
	updated, err := b.client.UpdateOrderStatus(ctx, created.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, updated.Status)

	list, err := b.client.ListOrders(ctx, order.Filter{Statuses: []order.Status{order.StatusPreparing}})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestServer_EmitsFeedEvents(t *testing.T) {
	b := newTestBackend(t, Policy{})
	ctx := context.Background()

	created, err := b.client.CreateOrder(ctx, order.Create{
		Items: []order.Item{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 1}},
	})
	require.NoError(t, err)
	patch, err := order.StatusPatch(order.StatusReady, testNow)
	require.NoError(t, err)
	_, err = b.client.UpdateOrderStatus(ctx, created.ID, patch)
	require.NoError(t, err)

	var collections []string
	for _, ev := range b.sink.snapshot() {
		collections = append(collections, ev.Collection+":"+string(ev.Op))
		assert.Equal(t, created.ID, ev.RecordID)
	}
	assert.Equal(t, []string{
		"orders:insert",
		"order_items:insert",
		"order_items:insert",
		"orders:update",
	}, collections)
}

func TestServer_DenyStatusUpdates(t *testing.T) {
	b := newTestBackend(t, Policy{DenyStatusUpdates: true})
	patch, err := order.StatusPatch(order.StatusReady, testNow)
	require.NoError(t, err)

	_, err = b.client.UpdateOrderStatus(context.Background(), "sample-0001", patch)
	require.Error(t, err)
	assert.True(t, remote.IsRejected(err))

	stored, err := b.sim.GetOrder(context.Background(), "sample-0001")
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, stored.Status)
	assert.Empty(t, b.sink.snapshot())
}

func TestServer_BadAPIKeyIsRejected(t *testing.T) {
	b := newTestBackend(t, Policy{APIKey: "right"})
	wrong, err := remote.NewClient(remote.ClientOptions{BaseURL: b.url, APIKey: "wrong"})
	require.NoError(t, err)

	_, err = wrong.ListOrders(context.Background(), order.Filter{})
	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.KindRejected, re.Kind)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
}

func TestServer_Validation(t *testing.T) {
	b := newTestBackend(t, Policy{})
	ctx := context.Background()

	_, err := b.client.CreateOrder(ctx, order.Create{})
	assert.True(t, remote.IsRejected(err), "empty order")

	_, err = b.client.UpdateOrderStatus(ctx, "sample-0001", order.Patch{})
	assert.True(t, remote.IsRejected(err), "patch without status")

	patch, err := order.StatusPatch(order.StatusReady, testNow)
	require.NoError(t, err)
	_, err = b.client.UpdateOrderStatus(ctx, "missing", patch)
	assert.True(t, remote.IsNotFound(err))

	got, err := b.client.GetOrder(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestServer_BadFilter(t *testing.T) {
	b := newTestBackend(t, Policy{})
	resp, err := http.Get(b.url + "/orders?status=teleported")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	b := newTestBackend(t, Policy{APIKey: "k"})

	resp, err := http.Get(b.url + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(b.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_UnknownFieldsRejected(t *testing.T) {
	b := newTestBackend(t, Policy{})
	resp, err := http.Post(b.url+"/orders", "application/json", strings.NewReader(`{"items":[{"product_id":"x","quantity":1}],"discount":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	addrc := make(chan string, 1)
	go func() {
		done <- ListenAndServe(ctx, "127.0.0.1:0", NewServer(remote.NewSimulated()), func(a net.Addr) { addrc <- a.String() })
	}()

	addr := <-addrc
	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
