package harness

import "github.com/roach88/renewal/internal/engine"

// TraceEvent is one line of a scenario trace: a per-entity decision or a
// run summary.
type TraceEvent struct {
	Type        string `json:"type"` // "decision" or "run"
	Run         int    `json:"run"`
	RunID       string `json:"run_id,omitempty"`
	EntityID    int64  `json:"entity_id,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Rule        string `json:"rule,omitempty"`
	Track       string `json:"track,omitempty"`
	RecordID    int64  `json:"record_id,omitempty"`
	CompareDate string `json:"compare_date,omitempty"`
	AlsoMark    bool   `json:"also_mark,omitempty"`
	Scanned     int    `json:"scanned,omitempty"`
	Triggered   int    `json:"triggered,omitempty"`
	Failed      int    `json:"failed,omitempty"`
}

// Trace event types.
const (
	EventDecision = "decision"
	EventRun      = "run"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every run expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds decisions in scan order, each run closed by its summary.
	Trace []TraceEvent `json:"trace"`

	// Runs holds the engine result of each run step.
	Runs []engine.RunResult `json:"runs"`

	// Errors contains validation error messages.
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

// Decision returns the decision event for entity in run, or nil.
func (r *Result) Decision(run int, entityID int64) *TraceEvent {
	for i := range r.Trace {
		ev := &r.Trace[i]
		if ev.Type == EventDecision && ev.Run == run && ev.EntityID == entityID {
			return ev
		}
	}
	return nil
}
