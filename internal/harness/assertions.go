package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/kiosksync/internal/overlay"
)

// AssertionContext is the state assertions run against.
type AssertionContext struct {
	Ctx     context.Context
	Overlay *overlay.Store
	// Durable is nil when the context ran without storage.
	Durable overlay.Durable
	// Resolve maps $aliases to order ids.
	Resolve func(string) string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Action, event.Order)
			if event.Status != "" {
				fmt.Fprintf(&buf, " -> %s", event.Status)
			}
			if event.Source != "" {
				fmt.Fprintf(&buf, " (%s)", event.Source)
			}
			if event.Error != "" {
				fmt.Fprintf(&buf, " error=%s", event.Error)
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result.Trace, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluateAssertion(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOverlayEntry:
		return assertOverlayEntry(actx.Overlay, a, actx.Resolve(a.Order), AssertOverlayEntry)
	case AssertOverlayAbsent:
		id := actx.Resolve(a.Order)
		if p, ok := actx.Overlay.Get(id); ok {
			return &AssertionError{
				Type:     AssertOverlayAbsent,
				Expected: fmt.Sprintf("no overlay entry for %s", id),
				Actual:   fmt.Sprintf("entry with status %q", p.StatusValue()),
			}
		}
		return nil
	case AssertDurableEntry:
		if actx.Durable == nil {
			return &AssertionError{
				Type:     AssertDurableEntry,
				Expected: "durable storage",
				Actual:   "context ran memory-only",
			}
		}
		reloaded := overlay.New(actx.Durable)
		if err := reloaded.LoadAll(actx.Ctx); err != nil {
			return &AssertionError{
				Type:     AssertDurableEntry,
				Expected: "readable overlay document",
				Actual:   err.Error(),
			}
		}
		return assertOverlayEntry(reloaded, a, actx.Resolve(a.Order), AssertDurableEntry)
	case AssertTraceContains:
		return assertTraceContains(trace, a, actx.Resolve)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertOverlayEntry(ov *overlay.Store, a Assertion, id, kind string) error {
	p, ok := ov.Get(id)
	if !ok {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("overlay entry for %s", id),
			Actual:   "no entry",
		}
	}
	if a.Status != "" && string(p.StatusValue()) != a.Status {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("status %q for %s", a.Status, id),
			Actual:   fmt.Sprintf("status %q", p.StatusValue()),
		}
	}
	return nil
}

// assertTraceContains checks for an event with the given action whose
// order, status and source match where specified.
func assertTraceContains(trace []TraceEvent, a Assertion, resolve func(string) string) error {
	id := ""
	if a.Order != "" {
		id = resolve(a.Order)
	}
	for _, event := range trace {
		if event.Action != a.Action {
			continue
		}
		if id != "" && event.Order != id {
			continue
		}
		if a.Status != "" && event.Status != a.Status {
			continue
		}
		if a.Source != "" && event.Source != a.Source {
			continue
		}
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s order=%q status=%q source=%q", a.Action, id, a.Status, a.Source),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", a.Action, a.Count),
			Actual:   fmt.Sprintf("%s appears %d times", a.Action, count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that actions first appear in the given order.
// Intervening actions are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1 // 1-indexed for readability
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}
