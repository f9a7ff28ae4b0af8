package db

import (
	"context"

	"github.com/jonathan/process-pipelines/internal/pipeline"
)

// Recorder persists run, phase and checkpoint records as a pipeline.Recorder.
type Recorder struct {
	db *DB
}

// NewRecorder returns a pipeline.Recorder backed by db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// StartRun implements pipeline.Recorder.
func (r *Recorder) StartRun(ctx context.Context, run *pipeline.Run, config any) error {
	if err := r.db.CreateRun(ctx, run.ID, run.Process, config); err != nil {
		return err
	}
	for _, rec := range run.Phases() {
		if err := r.db.UpsertRunStep(ctx, run.ID, rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordPhase implements pipeline.Recorder.
func (r *Recorder) RecordPhase(ctx context.Context, runID string, rec pipeline.PhaseRecord) error {
	return r.db.UpsertRunStep(ctx, runID, rec)
}

// RecordCheckpoint implements pipeline.Recorder.
func (r *Recorder) RecordCheckpoint(ctx context.Context, runID string, rec pipeline.CheckpointRecord) error {
	return r.db.SaveCheckpoint(ctx, runID, rec)
}

// CompleteRun implements pipeline.Recorder.
func (r *Recorder) CompleteRun(ctx context.Context, runID, status string, result any) error {
	return r.db.CompleteRun(ctx, runID, status, result)
}
