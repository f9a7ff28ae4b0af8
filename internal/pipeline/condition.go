package pipeline

import "fmt"

// ConditionKind classifies a phase predicate.
type ConditionKind string

// Condition kinds
const (
	ConditionAlways   ConditionKind = "always"
	ConditionFlag     ConditionKind = "flag"
	ConditionHardStop ConditionKind = "hard-stop"
)

// Action is what the sequencer does with a phase.
type Action string

// Actions
const (
	ActionRun  Action = "run"
	ActionSkip Action = "skip"
	ActionHalt Action = "halt"
)

// Decision is the result of evaluating a phase's condition.
type Decision struct {
	Action Action       `json:"action"`
	Reason string       `json:"reason,omitempty"`
	Gate   *GateOutcome `json:"gate,omitempty"`
}

// Condition is evaluated immediately before a phase would run.
type Condition[S any] struct {
	Kind ConditionKind
	// Name is the flag name for ConditionFlag and the gate name for ConditionHardStop.
	Name           string
	Enabled        func(s *S) bool
	Measure        func(s *S) float64
	Recommendation string
}

// Always runs the phase unconditionally.
func Always[S any]() Condition[S] {
	return Condition[S]{Kind: ConditionAlways}
}

// Flag runs the phase only when enabled reports true; otherwise the phase is
// skipped and its defaults are applied.
func Flag[S any](name string, enabled func(s *S) bool) Condition[S] {
	return Condition[S]{Kind: ConditionFlag, Name: name, Enabled: enabled}
}

// HardStop measures the state and checks it against the named gate. A failing
// blocking gate halts the run before the phase starts.
func HardStop[S any](gate string, measure func(s *S) float64, recommendation string) Condition[S] {
	return Condition[S]{Kind: ConditionHardStop, Name: gate, Measure: measure, Recommendation: recommendation}
}

// Evaluate decides whether the phase runs.
func (c Condition[S]) Evaluate(s *S, policy Policy) (Decision, error) {
	switch c.Kind {
	case ConditionAlways, "":
		return Decision{Action: ActionRun}, nil
	case ConditionFlag:
		if c.Enabled == nil || c.Enabled(s) {
			return Decision{Action: ActionRun}, nil
		}
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("%s is disabled", c.Name)}, nil
	case ConditionHardStop:
		outcome, err := policy.Check(c.Name, c.Measure(s))
		if err != nil {
			return Decision{}, err
		}
		if outcome.Blocks() {
			return Decision{
				Action: ActionHalt,
				Reason: fmt.Sprintf("%s requires at least %g, got %g", c.Name, outcome.Threshold, outcome.Value),
				Gate:   &outcome,
			}, nil
		}
		d := Decision{Action: ActionRun, Gate: &outcome}
		if !outcome.Passed {
			d.Reason = fmt.Sprintf("%s below %g (advisory)", c.Name, outcome.Threshold)
		}
		return d, nil
	default:
		return Decision{}, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}

// ConditionEntry is one row of a pipeline's condition table.
type ConditionEntry struct {
	Phase      string        `json:"phase"`
	Kind       ConditionKind `json:"kind"`
	Name       string        `json:"name,omitempty"`
	Checkpoint string        `json:"checkpoint,omitempty"`
	Computed   bool          `json:"computed,omitempty"`
	Revision   string        `json:"revision,omitempty"`
}
