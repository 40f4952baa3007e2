package harness

// TraceEvent is the observable view state after one scenario step.
// Step 0 is the state right after the view is opened.
type TraceEvent struct {
	Step      int            `json:"step"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args,omitempty"`
	Total     int            `json:"total"`
	Filtered  int            `json:"filtered"`
	Active    []string       `json:"active"`
	SortBy    string         `json:"sort_by"`
	SortOrder string         `json:"sort_order"`
	IDs       []string       `json:"ids"`
	Error     string         `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains one event per step, preceded by the initial state.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Fingerprint is the view fingerprint of the final sorted records.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
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

// AddTrace appends a step snapshot to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// Last returns the most recent trace event, or the zero event if the trace
// is empty.
func (r *Result) Last() TraceEvent {
	if len(r.Trace) == 0 {
		return TraceEvent{}
	}
	return r.Trace[len(r.Trace)-1]
}
