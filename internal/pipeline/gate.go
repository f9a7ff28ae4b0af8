package pipeline

import (
	"fmt"
	"maps"
)

// GateMode says what a failed gate does to the run.
type GateMode string

// Gate modes
const (
	// ModeAdvisory records the failure and lets the run continue.
	ModeAdvisory GateMode = "advisory"
	// ModeBlocking fails the run.
	ModeBlocking GateMode = "blocking"
)

// Gate compares a computed value against a threshold. A value passes when it is
// greater than or equal to the threshold.
type Gate struct {
	Name        string   `yaml:"name" json:"name"`
	Threshold   float64  `yaml:"threshold" json:"threshold"`
	Mode        GateMode `yaml:"mode" json:"mode"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate checks the gate definition.
func (g Gate) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("gate name is required")
	}
	if g.Mode != ModeAdvisory && g.Mode != ModeBlocking {
		return fmt.Errorf("gate %s: mode must be %q or %q, got %q", g.Name, ModeAdvisory, ModeBlocking, g.Mode)
	}
	return nil
}

// GateOutcome is one evaluation of a gate.
type GateOutcome struct {
	Gate      string   `json:"gate"`
	Phase     string   `json:"phase"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Mode      GateMode `json:"mode"`
	Passed    bool     `json:"passed"`
}

// Blocks reports whether the outcome should fail the run.
func (o GateOutcome) Blocks() bool {
	return !o.Passed && o.Mode == ModeBlocking
}

// GateError is returned when a blocking gate fails.
type GateError struct {
	Outcome GateOutcome
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate %s blocked the run: %.1f is below the threshold of %.1f",
		e.Outcome.Gate, e.Outcome.Value, e.Outcome.Threshold)
}

// Policy is the set of named gates a run consults.
type Policy map[string]Gate

// Merge returns a copy of p with the gates in other replacing same-named ones.
func (p Policy) Merge(other Policy) Policy {
	out := make(Policy, len(p)+len(other))
	maps.Copy(out, p)
	maps.Copy(out, other)
	return out
}

// WithThreshold returns a copy of p with the named gate's threshold replaced.
func (p Policy) WithThreshold(name string, threshold float64) Policy {
	out := p.Merge(nil)
	g, ok := out[name]
	if !ok {
		g = Gate{Name: name, Mode: ModeAdvisory}
	}
	g.Threshold = threshold
	out[name] = g
	return out
}

// Validate checks every gate.
func (p Policy) Validate() error {
	for key, g := range p {
		if key != g.Name {
			return fmt.Errorf("gate %q is stored under key %q", g.Name, key)
		}
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Check evaluates value against the named gate.
func (p Policy) Check(name string, value float64) (GateOutcome, error) {
	g, ok := p[name]
	if !ok {
		return GateOutcome{}, fmt.Errorf("no policy defined for gate %q", name)
	}
	return GateOutcome{
		Gate:      name,
		Value:     value,
		Threshold: g.Threshold,
		Mode:      g.Mode,
		Passed:    value >= g.Threshold,
	}, nil
}
