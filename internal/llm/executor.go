package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonathan/process-pipelines/internal/prompts"
	"github.com/jonathan/process-pipelines/internal/task"
)

// Defaults for TaskExecutor
const (
	DefaultAttempts = 2
	DefaultTimeout  = 3 * time.Minute
)

// TaskExecutor answers pipeline tasks by prompting a model for JSON. It retries
// failed or unparseable generations; schema validation is left to the caller.
type TaskExecutor struct {
	client   Client
	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

// ExecutorOption configures a TaskExecutor.
type ExecutorOption func(*TaskExecutor)

// WithAttempts sets how many generations are tried per call.
func WithAttempts(n int) ExecutorOption {
	return func(e *TaskExecutor) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithTimeout bounds each generation.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *TaskExecutor) { e.timeout = d }
}

// WithBackoff sets the pause between attempts.
func WithBackoff(d time.Duration) ExecutorOption {
	return func(e *TaskExecutor) { e.backoff = d }
}

// NewTaskExecutor wraps client as a task.Executor.
func NewTaskExecutor(client Client, opts ...ExecutorOption) *TaskExecutor {
	e := &TaskExecutor{
		client:   client,
		attempts: DefaultAttempts,
		timeout:  DefaultTimeout,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements task.Executor.
func (e *TaskExecutor) Execute(ctx context.Context, req task.Request) (json.RawMessage, error) {
	prompt, err := BuildTaskPrompt(req)
	if err != nil {
		return nil, err
	}
	tier := TierFor(req.Task)

	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying task", "task", req.Task, "effect_key", req.EffectKey, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.backoff):
			}
		}

		out, err := e.generate(ctx, prompt, tier)
		if err == nil {
			if json.Valid([]byte(out)) {
				return json.RawMessage(out), nil
			}
			lastErr = &task.SchemaViolationError{
				Task:      req.Task,
				EffectKey: req.EffectKey,
				Cause:     errors.New("model response is not valid JSON"),
			}
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *TaskExecutor) generate(ctx context.Context, prompt Prompt, tier ModelTier) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	out, err := e.client.GenerateJSON(ctx, prompt, tier)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %v", task.ErrTimeout, e.timeout, err)
	}
	return out, err
}

// BuildTaskPrompt renders the prompt for req from the embedded task templates.
// Top-level input fields fill the template's named placeholders.
func BuildTaskPrompt(req task.Request) (Prompt, error) {
	input, err := indent(req.Input)
	if err != nil {
		return Prompt{}, fmt.Errorf("task %s has invalid input: %w", req.Task, err)
	}

	schema := "{}"
	if req.Schema != nil {
		if s, err := indent(req.Schema.Raw); err == nil {
			schema = s
		}
	}

	var fields map[string]any
	_ = json.Unmarshal(req.Input, &fields)

	data := map[string]string{
		"Input":     input,
		"Schema":    schema,
		"Product":   stringField(fields, "productName", "the product"),
		"Timeframe": stringField(fields, "timeframe", "the planning horizon"),
		"Kind":      stringField(fields, "kind", "product"),
		"Threshold": stringField(fields, "threshold", "not set"),
	}
	rendered, err := prompts.Task(req.Task, data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: rendered.System, User: rendered.User}, nil
}

func indent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func stringField(fields map[string]any, key, fallback string) string {
	switch v := fields[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fallback
}
