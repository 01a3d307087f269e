package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/backend"
	"github.com/roach88/kiosksync/internal/order"
)

func TestOrdersList_Simulated(t *testing.T) {
	k := newSimulatedKiosk(t)

	out, err := k.run(t, "orders", "list")
	require.NoError(t, err)
	for _, number := range []string{"9Y-KT42", "9Y-PR17", "9Y-DX80", "9Y-WB05", "9Y-HM63", "9Y-CN29"} {
		assert.Contains(t, out, number)
	}

	out, err = k.run(t, "orders", "list", "--status", "ready,preparing")
	require.NoError(t, err)
	assert.Contains(t, out, "9Y-PR17")
	assert.Contains(t, out, "9Y-WB05")
	assert.NotContains(t, out, "9Y-KT42")

	out, err = k.run(t, "orders", "list", "--search", "tanaka")
	require.NoError(t, err)
	assert.Contains(t, out, "9Y-HM63")
	assert.NotContains(t, out, "9Y-PR17")
}

func TestOrdersList_BadFlags(t *testing.T) {
	k := newSimulatedKiosk(t)

	_, err := k.run(t, "orders", "list", "--status", "lost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = k.run(t, "orders", "list", "--from", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOrdersGet(t *testing.T) {
	k := newSimulatedKiosk(t)

	out, err := k.run(t, "orders", "get", "9Y-DX80")
	require.NoError(t, err)
	assert.Contains(t, out, "Order 9Y-DX80 (sample-0003)")
	assert.Contains(t, out, "out_for_delivery")

	out, err = k.run(t, "orders", "get", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_NOT_FOUND")
}

func TestOrdersCreate(t *testing.T) {
	k := newSimulatedKiosk(t)

	out, err := k.run(t, "--format", "json", "orders", "create",
		"--customer", "Noor Haddad",
		"--item", "classic-burger:Classic Burger:2:1150",
		"--item", "fries-large:Large Fries:1:450",
	)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   WriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "remote", resp.Data.Source)
	assert.Equal(t, order.StatusNew, resp.Data.Order.Status)
	assert.Equal(t, int64(2750), resp.Data.Order.Total)
	assert.Regexp(t, order.NumberPattern, resp.Data.Order.Number)
}

func TestOrdersCreate_BadItem(t *testing.T) {
	k := newSimulatedKiosk(t)

	_, err := k.run(t, "orders", "create", "--customer", "X", "--item", "burger:2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = k.run(t, "orders", "create", "--customer", "X", "--item", "p:P:1:1", "--fulfillment", "drone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drone")
}

func TestParseItem(t *testing.T) {
	it, err := parseItem("combo:Combo: Large:2:3499")
	require.NoError(t, err)
	assert.Equal(t, order.Item{ProductID: "combo", Name: "Combo: Large", Quantity: 2, UnitPrice: 3499}, it)

	for _, bad := range []string{"", "a:b:c", "a:b:0:1", "a:b:x:1", "a:b:1:-5"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}

func TestOrdersTransition_Refusals(t *testing.T) {
	k := newSimulatedKiosk(t)

	out, err := k.run(t, "orders", "transition", "9Y-HM63", "preparing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_REFUSED")

	out, err = k.run(t, "orders", "transition", "sample-0001", "shipped")
	require.Error(t, err)
	assert.Contains(t, out, "E_INVALID")

	out, err = k.run(t, "orders", "cancel", "missing")
	require.Error(t, err)
	assert.Contains(t, out, "E_NOT_FOUND")
}

func TestOrdersTransition_Simulated(t *testing.T) {
	k := newSimulatedKiosk(t)

	out, err := k.run(t, "orders", "transition", "9Y-KT42", "preparing")
	require.NoError(t, err)
	assert.Equal(t, "9Y-KT42: preparing\n", out)

	out, err = k.run(t, "orders", "cancel", "9Y-WB05")
	require.NoError(t, err)
	assert.Equal(t, "9Y-WB05: cancelled\n", out)
}

// A backend that refuses status updates leaves the change in the overlay,
// where later invocations still see it.
func TestOverlayLifecycle_Connected(t *testing.T) {
	k, sim := newConnectedKiosk(t, backend.Policy{DenyStatusUpdates: true})

	out, err := k.run(t, "orders", "transition", "9Y-KT42", "preparing")
	require.NoError(t, err)
	assert.Equal(t, "9Y-KT42: preparing (kept overlay, backend rejected)\n", out)

	remoteCopy, err := sim.GetOrder(context.Background(), "sample-0001")
	require.NoError(t, err)
	assert.Equal(t, order.StatusNew, remoteCopy.Status)

	out, err = k.run(t, "overlay", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "sample-0001")
	assert.Contains(t, out, "preparing")

	out, err = k.run(t, "--format", "json", "orders", "get", "9Y-KT42")
	require.NoError(t, err)
	var resp struct {
		Data OrderDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, order.StatusPreparing, resp.Data.Order.Status)

	out, err = k.run(t, "orders", "list", "--status", "preparing")
	require.NoError(t, err)
	assert.Contains(t, out, "9Y-KT42")
	assert.Contains(t, out, "9Y-PR17")

	out, err = k.run(t, "overlay", "clear", "sample-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared overlay entry for sample-0001")

	out, err = k.run(t, "overlay", "clear", "sample-0001")
	require.Error(t, err)
	assert.Contains(t, out, "E_NOT_FOUND")

	out, err = k.run(t, "overlay", "show")
	require.NoError(t, err)
	assert.Equal(t, "Overlay is empty.\n", out)

	out, err = k.run(t, "orders", "get", "9Y-KT42")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:      new")
}

func TestOrdersTransition_ConnectedAccepted(t *testing.T) {
	k, sim := newConnectedKiosk(t, backend.Policy{})

	out, err := k.run(t, "orders", "transition", "sample-0002", "ready")
	require.NoError(t, err)
	assert.Equal(t, "9Y-PR17: ready\n", out)

	remoteCopy, err := sim.GetOrder(context.Background(), "sample-0002")
	require.NoError(t, err)
	assert.Equal(t, order.StatusReady, remoteCopy.Status)

	out, err = k.run(t, "overlay", "show")
	require.NoError(t, err)
	assert.Equal(t, "Overlay is empty.\n", out)
}
