package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/types"
)

// ValidationError reports input that does not meet a phase's precondition.
type ValidationError struct {
	Phase          string
	Gate           string
	Message        string
	Recommendation string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("phase %s: %s", e.Phase, e.Message)
}

// PhaseError attaches the failing phase to an underlying error.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Classify maps an error to a failure kind.
func Classify(err error) string {
	var validationErr *ValidationError
	var gateErr *GateError
	switch {
	case errors.As(err, &validationErr):
		return types.FailureValidation
	case errors.As(err, &gateErr):
		return types.FailureGate
	case errors.Is(err, task.ErrSchemaViolation):
		return types.FailureSchema
	case errors.Is(err, task.ErrTimeout):
		return types.FailureTimeout
	case errors.Is(err, task.ErrExecutorUnavailable):
		return types.FailureUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.FailureCancelled
	default:
		return types.FailureInternal
	}
}

// Recommend returns an actionable next step for a failure.
func Recommend(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) && validationErr.Recommendation != "" {
		return validationErr.Recommendation
	}
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		return fmt.Sprintf("Improve the output until %s reaches %.0f, or set the gate to advisory in the gate policy.",
			gateErr.Outcome.Gate, gateErr.Outcome.Threshold)
	}
	var sv *task.SchemaViolationError
	if errors.As(err, &sv) {
		return fmt.Sprintf("The executor returned output for %s that does not match its schema. Inspect %s/output.json and retry.",
			sv.Task, sv.EffectKey)
	}

	switch Classify(err) {
	case types.FailureValidation:
		return "Fix the run configuration and start a new run."
	case types.FailureSchema:
		return "Check the executor prompt and schema for the failing task, then retry."
	case types.FailureTimeout:
		return "The executor timed out. Retry once it is responsive or raise its timeout."
	case types.FailureUnavailable:
		return "The executor could not be reached. Check its credentials and connectivity, then retry."
	case types.FailureCancelled:
		return "The run was cancelled. Artifacts produced before cancellation are listed for inspection."
	default:
		return "Inspect the run log for details and retry."
	}
}
