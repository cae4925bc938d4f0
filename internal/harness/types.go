package harness

import "github.com/roach88/rewind/internal/diff"

// Phase names used in CallEvent.Phase.
const (
	PhaseRecord = "record"
	PhaseReplay = "replay"
)

// CallEvent is one operation call as observed by the handler.
//
// Exactly one of Return, Error and Code describes the result: Error holds
// the message of an error the operation returned (live or replayed), Code
// holds the engine.RuntimeErrorCode when replay itself failed.
type CallEvent struct {
	Phase     string `json:"phase"`
	Index     int    `json:"index"`
	Operation string `json:"operation"`
	Args      []any  `json:"args"`
	Return    any    `json:"return,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// CorrelationID is the id both phases ran under.
	CorrelationID string `json:"correlation_id"`

	// Trace lists record-phase calls, then replay-phase calls, each in
	// declaration order.
	Trace []CallEvent `json:"trace"`

	// Outcome is the label of a TEST replay, empty for other modes.
	Outcome string `json:"outcome,omitempty"`

	Diffs      []diff.Entry `json:"diffs,omitempty"`
	Unconsumed []string     `json:"unconsumed,omitempty"`

	// Recorded counts the stored entries per operation after both phases.
	Recorded map[string]int `json:"recorded"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []CallEvent{},
		Errors:   []string{},
		Recorded: make(map[string]int),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ReplayCalls returns the replay-phase events in declaration order.
func (r *Result) ReplayCalls() []CallEvent {
	var out []CallEvent
	for _, ev := range r.Trace {
		if ev.Phase == PhaseReplay {
			out = append(out, ev)
		}
	}
	return out
}
