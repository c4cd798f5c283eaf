package harness

// Trace event kinds.
const (
	KindStep   = "step"
	KindCall   = "call"
	KindNotify = "notify"
)

// TraceEvent is one observable event of a scenario run: a scripted step,
// a remote call made by the engine or a save notification.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Kind    string         `json:"kind"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final visible rows ("rows") and remote rows
	// ("remote_rows"), flattened with the grid's id field.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends an event and returns its index.
func (r *Result) addEvent(kind, action string, args map[string]any) int {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    int64(len(r.Trace) + 1),
		Kind:   kind,
		Action: action,
		Args:   args,
	})
	return len(r.Trace) - 1
}
