package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type   string         `json:"type"`
	Action string         `json:"action,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Seq    int64          `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is false when an expect clause or an assertion failed.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// State is the store and config state after the flow, as captured by
	// captureState.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends an invocation.
func (r *Result) AddInvocationTrace(action string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace appends a completion.
func (r *Result) AddCompletionTrace(outcome string, result map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventCompletion,
		Case:   outcome,
		Result: result,
		Seq:    seq,
	})
}
