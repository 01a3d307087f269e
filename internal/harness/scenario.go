package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kiosksync/internal/order"
)

// Scenario is one scripted run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TerminalPolicy is "reject" (default) or "allow".
	TerminalPolicy string `yaml:"terminal_policy,omitempty"`

	// SampleData seeds the backend with the sample orders. Defaults to true.
	SampleData *bool `yaml:"sample_data,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action against the kiosk context.
type Step struct {
	Action string `yaml:"action"`

	// Order is an id, an order number or a $alias.
	Order  string `yaml:"order,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Create fields.
	Customer    string     `yaml:"customer,omitempty"`
	Fulfillment string     `yaml:"fulfillment,omitempty"`
	Items       []ItemSpec `yaml:"items,omitempty"`
	As          string     `yaml:"as,omitempty"`

	// List fields.
	Statuses []string `yaml:"statuses,omitempty"`
	Search   string   `yaml:"search,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// ItemSpec is an order line in a create step.
type ItemSpec struct {
	ProductID string `yaml:"product_id"`
	Name      string `yaml:"name"`
	Quantity  int    `yaml:"quantity"`
	UnitPrice int64  `yaml:"unit_price"`
}

// Expect checks the event a step records. Empty fields are not checked.
type Expect struct {
	Status  string `yaml:"status,omitempty"`
	Source  string `yaml:"source,omitempty"`
	Failure string `yaml:"failure,omitempty"`
	// Error is the caller error class: invalid_status, terminal_state,
	// invalid_transition, not_found or unresolved.
	Error   string `yaml:"error,omitempty"`
	Overlay *bool  `yaml:"overlay,omitempty"`

	// List checks.
	Includes []string `yaml:"includes,omitempty"`
	Excludes []string `yaml:"excludes,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	Type    string   `yaml:"type"`
	Order   string   `yaml:"order,omitempty"`
	Status  string   `yaml:"status,omitempty"`
	Action  string   `yaml:"action,omitempty"`
	Source  string   `yaml:"source,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Step actions.
const (
	ActionCreate        = "create"
	ActionTransition    = "transition"
	ActionCancel        = "cancel"
	ActionRead          = "read"
	ActionList          = "list"
	ActionRestart       = "restart"
	ActionRejectUpdates = "reject_updates"
	ActionGoOffline     = "go_offline"
	ActionGoOnline      = "go_online"
	ActionBackendStatus = "backend_status"
)

// Assertion type constants.
const (
	AssertOverlayEntry  = "overlay_entry"
	AssertOverlayAbsent = "overlay_absent"
	AssertDurableEntry  = "durable_entry"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) sampleData() bool {
	return s.SampleData == nil || *s.SampleData
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	aliases := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, aliases); err != nil {
			return err
		}
		if step.As != "" {
			aliases[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, aliases map[string]bool) error {
	if alias, ok := strings.CutPrefix(step.Order, "$"); ok && !aliases[alias] {
		return fmt.Errorf("steps[%d]: unknown alias %q", i, step.Order)
	}
	if step.As != "" && step.Action != ActionCreate {
		return fmt.Errorf("steps[%d]: as is only valid on create", i)
	}

	switch step.Action {
	case ActionCreate:
		if len(step.Items) == 0 {
			return fmt.Errorf("steps[%d]: create needs at least one item", i)
		}
		for j, it := range step.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("steps[%d].items[%d]: quantity must be positive", i, j)
			}
		}
	case ActionTransition, ActionBackendStatus:
		if step.Order == "" {
			return fmt.Errorf("steps[%d]: order is required for %s", i, step.Action)
		}
		// transition deliberately accepts unknown statuses to exercise
		// the invalid_status error; backend_status does not.
		if step.Action == ActionBackendStatus {
			if _, err := order.ParseStatus(step.Status); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	case ActionCancel, ActionRead:
		if step.Order == "" {
			return fmt.Errorf("steps[%d]: order is required for %s", i, step.Action)
		}
	case ActionList:
		for _, st := range step.Statuses {
			if _, err := order.ParseStatus(st); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	case ActionRestart, ActionRejectUpdates, ActionGoOffline, ActionGoOnline:
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertOverlayEntry, AssertOverlayAbsent, AssertDurableEntry:
		if a.Order == "" {
			return fmt.Errorf("assertions[%d]: order is required for %s", index, a.Type)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
