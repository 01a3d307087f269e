package harness

// TraceEvent records what one step observed. Timestamps and order numbers
// are left out so traces compare equal across runs.
type TraceEvent struct {
	Seq     int      `json:"seq"`
	Action  string   `json:"action"`
	Order   string   `json:"order,omitempty"`
	Status  string   `json:"status,omitempty"`
	Source  string   `json:"source,omitempty"`
	Failure string   `json:"failure,omitempty"`
	Error   string   `json:"error,omitempty"`
	Overlay bool     `json:"overlay,omitempty"`
	Orders  []string `json:"orders,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion matched.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) record(ev TraceEvent) TraceEvent {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
	return ev
}
