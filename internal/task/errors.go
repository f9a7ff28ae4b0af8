package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/process-pipelines/internal/schemas"
)

// Sentinel errors for the invocation failure taxonomy. Match with errors.Is.
var (
	ErrSchemaViolation     = errors.New("executor output violates schema")
	ErrExecutorUnavailable = errors.New("executor unavailable")
	ErrTimeout             = errors.New("executor timed out")
)

// SchemaViolationError reports executor output that could not be accepted.
type SchemaViolationError struct {
	Task       string
	EffectKey  string
	Violations []schemas.FieldError
	Cause      error
}

func (e *SchemaViolationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("task %s (%s): %v: %v", e.Task, e.EffectKey, ErrSchemaViolation, e.Cause)
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("task %s (%s): %v: %s", e.Task, e.EffectKey, ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

// Is matches ErrSchemaViolation.
func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// ExecutorError reports an invocation that did not complete. A timeout also
// matches ErrExecutorUnavailable so callers can treat both the same way.
type ExecutorError struct {
	Task      string
	EffectKey string
	Timeout   bool
	Cause     error
}

func (e *ExecutorError) Error() string {
	kind := ErrExecutorUnavailable
	if e.Timeout {
		kind = ErrTimeout
	}
	return fmt.Sprintf("task %s (%s): %v: %v", e.Task, e.EffectKey, kind, e.Cause)
}

func (e *ExecutorError) Unwrap() error {
	return e.Cause
}

// Is matches ErrExecutorUnavailable, and ErrTimeout for timeouts.
func (e *ExecutorError) Is(target error) bool {
	if target == ErrExecutorUnavailable {
		return true
	}
	return e.Timeout && target == ErrTimeout
}
