package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/types"
)

func fixedOutput(out string) ExecutorFunc {
	return func(_ context.Context, _ Request) (json.RawMessage, error) {
		return json.RawMessage(out), nil
	}
}

func TestEffectKey(t *testing.T) {
	assert.Equal(t, "runs/r-1/03-quality-scoring", EffectKey("r-1", 3, "quality-scoring"))
	assert.Equal(t, "runs/r-1/12-revise-report", EffectKey("r-1", 12, "revise-report"))
}

func TestInvoke_Success(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	var seen []Request
	exec := ExecutorFunc(func(_ context.Context, req Request) (json.RawMessage, error) {
		seen = append(seen, req)
		return json.RawMessage(`{"score": 91, "dimensions": [], "recommendations": ["ship it"]}`), nil
	})
	iv := NewInvoker("run-1", exec, store)

	out, inv, err := Invoke[map[string]string, types.QualityScore](ctx, iv, "quality-scoring", map[string]string{"doc": "x"})
	require.NoError(t, err)
	assert.Equal(t, 91.0, out.Score)
	assert.Equal(t, []string{"ship it"}, out.Recommendations)

	assert.Equal(t, 1, inv.Seq)
	assert.Equal(t, "runs/run-1/01-quality-scoring", inv.EffectKey)
	assert.Equal(t, "mem://runs/run-1/01-quality-scoring/input.json", inv.InputPath)
	assert.Equal(t, "mem://runs/run-1/01-quality-scoring/output.json", inv.OutputPath)

	require.Len(t, seen, 1)
	assert.Equal(t, "quality-scoring", seen[0].Task)
	assert.NotNil(t, seen[0].Schema)
	assert.JSONEq(t, `{"doc":"x"}`, string(seen[0].Input))

	assert.Equal(t, []string{
		"runs/run-1/01-quality-scoring/input.json",
		"runs/run-1/01-quality-scoring/output.json",
	}, store.Keys())
}

func TestInvoke_KeysFollowCallOrder(t *testing.T) {
	ctx := context.Background()
	iv := NewInvoker("run-2", fixedOutput(`{"overrides": []}`), nil)

	for i := 1; i <= 3; i++ {
		_, inv, err := Invoke[struct{}, types.StrategicAlignment](ctx, iv, "strategic-alignment", struct{}{})
		require.NoError(t, err)
		assert.Equal(t, EffectKey("run-2", i, "strategic-alignment"), inv.EffectKey)
		assert.Empty(t, inv.InputPath, "no store configured")
	}
	assert.Equal(t, 3, iv.Count())
	assert.Len(t, iv.Invocations(), 3)
}

func TestInvoke_SchemaViolation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	iv := NewInvoker("run-3", fixedOutput(`{"score": "high"}`), store)

	out, _, err := Invoke[struct{}, types.QualityScore](ctx, iv, "quality-scoring", struct{}{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.NotErrorIs(t, err, ErrExecutorUnavailable)

	var sv *SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "quality-scoring", sv.Task)
	assert.NotEmpty(t, sv.Violations)

	// The rejected output is still stored for inspection.
	_, readErr := store.Read(ctx, "runs/run-3/01-quality-scoring/output.json")
	assert.NoError(t, readErr)
	assert.Empty(t, iv.Invocations())
}

func TestInvoke_NotJSON(t *testing.T) {
	iv := NewInvoker("run-4", fixedOutput(`here is your answer`), nil)

	_, _, err := Invoke[struct{}, types.QualityScore](context.Background(), iv, "quality-scoring", struct{}{})
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestInvoke_ExecutorUnavailable(t *testing.T) {
	exec := ExecutorFunc(func(_ context.Context, _ Request) (json.RawMessage, error) {
		return nil, errors.New("connection refused")
	})
	iv := NewInvoker("run-5", exec, nil)

	_, _, err := Invoke[struct{}, types.QualityScore](context.Background(), iv, "quality-scoring", struct{}{})
	assert.ErrorIs(t, err, ErrExecutorUnavailable)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 1, iv.Count())
}

func TestInvoke_TimeoutTreatedAsUnavailable(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, _ Request) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	iv := NewInvoker("run-6", exec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := Invoke[struct{}, types.QualityScore](ctx, iv, "quality-scoring", struct{}{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrExecutorUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_ExecutorReportedViolationPassesThrough(t *testing.T) {
	exec := ExecutorFunc(func(_ context.Context, req Request) (json.RawMessage, error) {
		return nil, &SchemaViolationError{Task: req.Task, EffectKey: req.EffectKey, Cause: errors.New("model refused")}
	})
	iv := NewInvoker("run-7", exec, nil)

	_, _, err := Invoke[struct{}, types.QualityScore](context.Background(), iv, "quality-scoring", struct{}{})
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.NotErrorIs(t, err, ErrExecutorUnavailable)
}

func TestInvoke_UnknownTask(t *testing.T) {
	iv := NewInvoker("run-8", fixedOutput(`{}`), nil)
	_, _, err := Invoke[struct{}, struct{}](context.Background(), iv, "no-such-task", struct{}{})
	require.Error(t, err)
	assert.Equal(t, 0, iv.Count())
}

func TestInvoker_NoExecutor(t *testing.T) {
	iv := NewInvoker("run-9", nil, nil)
	_, err := iv.Call(context.Background(), "quality-scoring", struct{}{}, nil)
	assert.ErrorIs(t, err, ErrExecutorUnavailable)
}
