package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/process-pipelines/internal/pipeline"
)

// -----------------------------------------------------------------------------
// Run Steps Methods
// -----------------------------------------------------------------------------

// UpsertRunStep writes the latest record of a phase. A phase is written each
// time its status changes, so later writes replace earlier ones.
func (db *DB) UpsertRunStep(ctx context.Context, runID string, rec pipeline.PhaseRecord) error {
	invocations, err := json.Marshal(rec.Invocations)
	if err != nil {
		return fmt.Errorf("failed to marshal invocations: %w", err)
	}

	var startedAt *time.Time
	if !rec.StartedAt.IsZero() {
		startedAt = &rec.StartedAt
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, step_index, step, status, reason, started_at, duration_ms, invocations, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (run_id, step) DO UPDATE
		 SET status = EXCLUDED.status, reason = EXCLUDED.reason,
		     started_at = COALESCE(EXCLUDED.started_at, run_steps.started_at),
		     duration_ms = EXCLUDED.duration_ms, invocations = EXCLUDED.invocations,
		     error_message = EXCLUDED.error_message, updated_at = NOW()`,
		runID, rec.Index, rec.Name, rec.Status, nullable(rec.Reason), startedAt, rec.DurationMs, invocations, nullable(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run step %s: %w", rec.Name, err)
	}
	return nil
}

// ListRunSteps retrieves the steps of a run in phase order, optionally filtered by status
func (db *DB) ListRunSteps(ctx context.Context, runID string, status *string) ([]RunStep, error) {
	query := `SELECT run_id, step_index, step, status, reason, started_at, duration_ms,
	                 invocations, error_message, updated_at
	          FROM run_steps
	          WHERE run_id = $1`
	args := []any{runID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += " ORDER BY step_index"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	var steps []RunStep
	for rows.Next() {
		var step RunStep
		var invocations []byte
		if err := rows.Scan(&step.RunID, &step.Index, &step.Step, &step.Status, &step.Reason,
			&step.StartedAt, &step.DurationMs, &invocations, &step.ErrorMessage, &step.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		if invocations != nil {
			_ = json.Unmarshal(invocations, &step.Invocations)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// -----------------------------------------------------------------------------
// Run Checkpoints Methods
// -----------------------------------------------------------------------------

// SaveCheckpoint writes a checkpoint request, and its answer once there is one.
func (db *DB) SaveCheckpoint(ctx context.Context, runID string, rec pipeline.CheckpointRecord) error {
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint request: %w", err)
	}

	var resumed []byte
	var resumedAt *time.Time
	if rec.Resumed != nil {
		resumed, err = json.Marshal(rec.Resumed)
		if err != nil {
			return fmt.Errorf("failed to marshal checkpoint answer: %w", err)
		}
		if !rec.Resumed.ResumedAt.IsZero() {
			resumedAt = &rec.Resumed.ResumedAt
		}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO run_checkpoints (id, run_id, step, name, request, resumed, revision_triggered, requested_at, resumed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		 SET resumed = EXCLUDED.resumed, revision_triggered = EXCLUDED.revision_triggered,
		     resumed_at = EXCLUDED.resumed_at`,
		rec.Request.ID, runID, rec.Request.Phase, rec.Request.Name, request, resumed,
		rec.RevisionTriggered, rec.Request.RequestedAt, resumedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", rec.Request.Name, err)
	}
	return nil
}

// ListCheckpoints retrieves the checkpoints of a run in request order
func (db *DB) ListCheckpoints(ctx context.Context, runID string) ([]RunCheckpoint, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, step, name, request, resumed, revision_triggered, requested_at, resumed_at
		 FROM run_checkpoints
		 WHERE run_id = $1
		 ORDER BY requested_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []RunCheckpoint
	for rows.Next() {
		var cp RunCheckpoint
		if err := rows.Scan(&cp.ID, &cp.RunID, &cp.Step, &cp.Name, &cp.Request, &cp.Resumed,
			&cp.RevisionTriggered, &cp.RequestedAt, &cp.ResumedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
