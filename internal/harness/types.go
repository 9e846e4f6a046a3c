package harness

// TraceEvent is a snapshot of the engine taken after one scenario step.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	Step      string `json:"step"`
	State     string `json:"state"`
	Pending   int    `json:"pending"`
	InFlight  int    `json:"in_flight"`
	Sends     int    `json:"sends"`
	Probes    int    `json:"probes"`
	Available bool   `json:"available"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
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

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
