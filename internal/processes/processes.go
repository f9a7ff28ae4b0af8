// Package processes runs the registered business processes from a run configuration.
package processes

import (
	"context"
	"fmt"

	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/pipeline/steps"
	"github.com/jonathan/process-pipelines/internal/processes/prioritization"
	"github.com/jonathan/process-pipelines/internal/processes/strategy"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Outcome is the process-independent view of a finished run.
type Outcome struct {
	RunID   string
	Process string
	Run     *pipeline.Run
	// Value is the composed result on success and the *types.Failure otherwise.
	Value   any
	Failure *types.Failure
	Err     error
}

// Success reports whether the run completed.
func (o Outcome) Success() bool {
	return o.Failure == nil
}

// Names returns the registered process identifiers.
func Names() []string {
	return []string{steps.ProcessStrategy, steps.ProcessPrioritization}
}

// Run validates cfg and executes its process. Errors are returned only for
// configuration problems; run failures come back as Outcome.Failure.
// When opts.Gates is nil the policy comes from cfg.
func Run(ctx context.Context, cfg *config.Config, opts pipeline.Options) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}

	policy := opts.Gates
	if policy == nil {
		p, err := cfg.Policy()
		if err != nil {
			return Outcome{}, err
		}
		policy = p
	}
	// The pipeline carries the policy; options only layer on top of it.
	opts.Gates = nil

	switch cfg.Process {
	case steps.ProcessStrategy:
		in, err := cfg.StrategyInputs()
		if err != nil {
			return Outcome{}, err
		}
		out := pipeline.Execute(ctx, strategy.New(*in, policy), strategy.NewState(*in), in, opts)
		return wrap(cfg.Process, out), nil

	case steps.ProcessPrioritization:
		in, err := cfg.PrioritizationInputs()
		if err != nil {
			return Outcome{}, err
		}
		out := pipeline.Execute(ctx, prioritization.New(*in, policy), prioritization.NewState(*in), in, opts)
		return wrap(cfg.Process, out), nil
	}
	return Outcome{}, fmt.Errorf("unknown process %q", cfg.Process)
}

// Conditions returns the condition table of a process with default inputs.
func Conditions(process string) ([]pipeline.ConditionEntry, error) {
	switch process {
	case steps.ProcessStrategy:
		return strategy.New(config.StrategyInputs{}, nil).Conditions(), nil
	case steps.ProcessPrioritization:
		return prioritization.New(config.PrioritizationInputs{}, nil).Conditions(), nil
	}
	return nil, fmt.Errorf("unknown process %q", process)
}

func wrap[R any](process string, out pipeline.Outcome[R]) Outcome {
	return Outcome{
		RunID:   out.RunID,
		Process: process,
		Run:     out.Run,
		Value:   out.Value(),
		Failure: out.Failure,
		Err:     out.Err,
	}
}
