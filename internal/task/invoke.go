// Package task wraps calls to the external executor that performs a phase's work.
//
// Every call gets a deterministic effect key derived from its position in the run,
// has its input and output handed to a storage collaborator under that key, and
// has its output validated against the task's declared schema before anything
// downstream can see it.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonathan/process-pipelines/internal/schemas"
	"github.com/jonathan/process-pipelines/internal/storage"
)

// Request is what an Executor receives.
type Request struct {
	Task      string          `json:"task"`
	EffectKey string          `json:"effectKey"`
	Input     json.RawMessage `json:"input"`
	Schema    *schemas.Schema `json:"-"`
}

// Executor performs one named task. It may fail, hang until ctx ends, or return
// output that does not match the schema.
type Executor interface {
	Execute(ctx context.Context, req Request) (json.RawMessage, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Invocation records one completed call.
type Invocation struct {
	Seq        int             `json:"seq"`
	Task       string          `json:"task"`
	EffectKey  string          `json:"effectKey"`
	InputPath  string          `json:"inputPath,omitempty"`
	OutputPath string          `json:"outputPath,omitempty"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	Duration   time.Duration   `json:"duration"`
}

// Invoker issues calls for a single run and numbers them in call order.
type Invoker struct {
	runID string
	exec  Executor
	store storage.Persister

	mu   sync.Mutex
	seq  int
	done []Invocation
}

// NewInvoker creates an Invoker. store may be nil, in which case nothing is persisted.
func NewInvoker(runID string, exec Executor, store storage.Persister) *Invoker {
	return &Invoker{runID: runID, exec: exec, store: store}
}

// EffectKey returns the storage key prefix for the seq-th call of a run.
func EffectKey(runID string, seq int, taskName string) string {
	return fmt.Sprintf("runs/%s/%02d-%s", runID, seq, taskName)
}

// Count returns the number of calls issued so far, successful or not.
func (iv *Invoker) Count() int {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.seq
}

// Invocations returns the successful calls in order.
func (iv *Invoker) Invocations() []Invocation {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	out := make([]Invocation, len(iv.done))
	copy(out, iv.done)
	return out
}

func (iv *Invoker) next() int {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.seq++
	return iv.seq
}

// Call marshals input, runs the task and validates the raw output against schema.
func (iv *Invoker) Call(ctx context.Context, taskName string, input any, schema *schemas.Schema) (*Invocation, error) {
	if iv.exec == nil {
		return nil, &ExecutorError{Task: taskName, Cause: errors.New("no executor configured")}
	}

	seq := iv.next()
	key := EffectKey(iv.runID, seq, taskName)

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input for %s: %w", taskName, err)
	}

	inv := &Invocation{
		Seq:       seq,
		Task:      taskName,
		EffectKey: key,
		Input:     payload,
		StartedAt: time.Now(),
	}
	inv.InputPath = iv.persist(ctx, key+"/input.json", payload)

	output, err := iv.exec.Execute(ctx, Request{Task: taskName, EffectKey: key, Input: payload, Schema: schema})
	inv.Duration = time.Since(inv.StartedAt)
	if err != nil {
		var sv *SchemaViolationError
		if errors.As(err, &sv) {
			return nil, err
		}
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout)
		return nil, &ExecutorError{Task: taskName, EffectKey: key, Timeout: timeout, Cause: err}
	}

	inv.Output = output
	inv.OutputPath = iv.persist(ctx, key+"/output.json", output)

	if schema != nil {
		if err := schema.Validate(output); err != nil {
			violation := &SchemaViolationError{Task: taskName, EffectKey: key, Cause: err}
			var ve *schemas.ValidationError
			if errors.As(err, &ve) {
				violation.Violations = ve.Errors
			}
			return nil, violation
		}
	}

	iv.mu.Lock()
	iv.done = append(iv.done, *inv)
	iv.mu.Unlock()
	return inv, nil
}

// persist hands payload to the store; failures are logged and do not fail the call.
func (iv *Invoker) persist(ctx context.Context, key string, payload []byte) string {
	if iv.store == nil {
		return ""
	}
	path, err := iv.store.Persist(ctx, key, payload)
	if err != nil {
		slog.Warn("failed to persist invocation payload", "key", key, "error", err)
		return ""
	}
	return path
}

// Invoke runs the named task with its embedded output schema and decodes the
// validated output into Out.
func Invoke[In any, Out any](ctx context.Context, iv *Invoker, taskName string, input In) (*Out, *Invocation, error) {
	schema, err := schemas.Load(taskName)
	if err != nil {
		return nil, nil, err
	}
	inv, err := iv.Call(ctx, taskName, input, schema)
	if err != nil {
		return nil, inv, err
	}

	var out Out
	if err := json.Unmarshal(inv.Output, &out); err != nil {
		return nil, inv, &SchemaViolationError{Task: taskName, EffectKey: inv.EffectKey, Cause: err}
	}
	return &out, inv, nil
}
