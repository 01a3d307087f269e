package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestRun_RejectedUpdateKeptInOverlay(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_reject",
		Description: "rejected update",
		Steps: []Step{
			{Action: ActionRejectUpdates},
			{
				Action: ActionTransition,
				Order:  "9Y-KT42",
				Status: "preparing",
				Expect: &Expect{Status: "preparing", Source: "overlay", Failure: "rejected", Overlay: boolPtr(true)},
			},
		},
		Assertions: []Assertion{
			{Type: AssertOverlayEntry, Order: "sample-0001", Status: "preparing"},
			{Type: AssertDurableEntry, Order: "sample-0001", Status: "preparing"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "sample-0001", result.Trace[1].Order, "number resolves to id")
}

func TestRun_ExpectMismatchFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_mismatch",
		Description: "wrong expectation",
		Steps: []Step{
			{
				Action: ActionTransition,
				Order:  "sample-0001",
				Status: "preparing",
				Expect: &Expect{Source: "overlay"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected source "overlay", got "remote"`)
}

func TestRun_UnexpectedCallerErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_unexpected_error",
		Description: "a refused transition without an error expectation",
		Steps: []Step{
			{
				Action: ActionTransition,
				Order:  "sample-0005",
				Status: "ready",
				Expect: &Expect{Status: "ready"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "terminal_state", result.Trace[0].Error)
}

func TestRun_EmptyBackend(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_empty",
		Description: "no sample data",
		SampleData:  boolPtr(false),
		Steps: []Step{
			{Action: ActionList, Expect: &Expect{Count: intPtr(0)}},
			{Action: ActionRead, Order: "sample-0001", Expect: &Expect{Error: "not_found"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_CreateOnlineGetsRemoteID(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_create",
		Description: "online create",
		Steps: []Step{
			{
				Action:   ActionCreate,
				As:       "a",
				Customer: "Ana Lima",
				Items:    []ItemSpec{{ProductID: "fries-large", Name: "Large Fries", Quantity: 1, UnitPrice: 450}},
				Expect:   &Expect{Status: "new", Source: "remote"},
			},
			{Action: ActionList, Search: "lima", Expect: &Expect{Includes: []string{"$a"}, Count: intPtr(1)}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Action: ActionCreate, Order: "$a", Source: "remote"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "remote-1", result.Trace[0].Order)
}

func TestRun_SessionOrdersLostOnRestart(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_restart",
		Description: "local orders are session-scoped",
		Steps: []Step{
			{Action: ActionGoOffline},
			{
				Action: ActionCreate,
				As:     "gone",
				Items:  []ItemSpec{{ProductID: "p", Name: "P", Quantity: 1, UnitPrice: 100}},
			},
			{Action: ActionRestart},
			{Action: ActionRead, Order: "$gone", Expect: &Expect{Error: "unavailable"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_FailedAssertionReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline_assert",
		Description: "assertion fails",
		Steps:       []Step{{Action: ActionRead, Order: "sample-0001"}},
		Assertions: []Assertion{
			{Type: AssertOverlayEntry, Order: "sample-0001"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "overlay entry for sample-0001")
}
