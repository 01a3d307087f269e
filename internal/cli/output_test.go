package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/engine"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/remote"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(CodeRefused, "order is in a terminal state", map[string]string{"order": "o-1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRefused, resp.Error.Code)
	assert.Equal(t, "order is in a terminal state", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(CodeNotFound, "order x not found", "hidden"))
	assert.Equal(t, "Error [E_NOT_FOUND]: order x not found\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(CodeNotFound, "order x not found", "shown"))
	assert.Contains(t, buf.String(), "Details: shown")
}

func TestOutputFormatter_TextUsesRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(OrderList(nil)))
	assert.Equal(t, "No orders.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, diag.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", diag.String())
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "load", errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: load: boom", wrapped.Error())
}

func TestOrderList_RenderText(t *testing.T) {
	orders := remote.SampleOrders(testNow)[:2]

	buf := &bytes.Buffer{}
	require.NoError(t, OrderList(orders).RenderText(buf))

	out := buf.String()
	assert.Contains(t, out, "NUMBER")
	assert.Contains(t, out, "9Y-KT42")
	assert.Contains(t, out, "Maya Chen")
	assert.Contains(t, out, "preparing")
}

func TestOrderDetail_RenderText(t *testing.T) {
	o := order.Create{
		Customer: order.Customer{Name: "Noor", Phone: "555-0101"},
		Items: []order.Item{
			{ProductID: "chicken-wrap", Name: "Chicken Wrap", Quantity: 2, UnitPrice: 975, Options: []string{"no onion"}},
		},
		Notes: "extra napkins",
	}.Build("o-1", "9Y-AA11", testNow)

	buf := &bytes.Buffer{}
	require.NoError(t, OrderDetail{Order: o}.RenderText(buf))

	out := buf.String()
	assert.Contains(t, out, "Order 9Y-AA11 (o-1)")
	assert.Contains(t, out, "Noor, 555-0101")
	assert.Contains(t, out, "2x Chicken Wrap @ 9.75 (no onion)")
	assert.Contains(t, out, "extra napkins")
	assert.Contains(t, out, "Total:       19.50")
}

func TestWriteResult(t *testing.T) {
	o := order.Order{ID: "o-1", Number: "9Y-AA11", Status: order.StatusReady}

	remoteWrite := newWriteResult(engine.Outcome{Order: o, Source: engine.SourceRemote})
	assert.Empty(t, remoteWrite.Failure)
	buf := &bytes.Buffer{}
	require.NoError(t, remoteWrite.RenderText(buf))
	assert.Equal(t, "9Y-AA11: ready\n", buf.String())

	kept := newWriteResult(engine.Outcome{Order: order.Order{ID: "o-2", Status: order.StatusReady}, Source: engine.SourceOverlay, Failure: remote.KindRejected})
	assert.Equal(t, "overlay", kept.Source)
	assert.Equal(t, "rejected", kept.Failure)
	buf.Reset()
	require.NoError(t, kept.RenderText(buf))
	assert.Equal(t, "o-2: ready (kept overlay, backend rejected)\n", buf.String())
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", money(0))
	assert.Equal(t, "11.50", money(1150))
	assert.Equal(t, "0.05", money(5))
	assert.Equal(t, "-3.99", money(-399))
}
