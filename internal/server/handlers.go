package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/db"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes"
	"github.com/jonathan/process-pipelines/internal/server/middleware"
	"github.com/jonathan/process-pipelines/internal/types"
)

// CreateRunRequest starts a run of a registered process.
type CreateRunRequest struct {
	Process string          `json:"process"`
	Inputs  json.RawMessage `json:"inputs"`
}

// RunResponse describes a run.
type RunResponse struct {
	RunID   string `json:"run_id"`
	Process string `json:"process"`
	Status  string `json:"status"`
	// Snapshot is present while the run is held by this server.
	Snapshot *pipeline.Snapshot     `json:"snapshot,omitempty"`
	Pending  []checkpoint.Requested `json:"pending_checkpoints,omitempty"`
	// Steps is present when the run is read back from the database.
	Steps  []db.RunStep `json:"steps,omitempty"`
	Result any          `json:"result,omitempty"`
}

// ResumeRequest answers a pending checkpoint. An empty body approves.
type ResumeRequest struct {
	RevisionsNeeded bool            `json:"revisionsNeeded"`
	Comments        string          `json:"comments,omitempty"`
	Concerns        []types.Concern `json:"concerns,omitempty"`
}

// handleCreateRun validates the run configuration and starts the run in the background
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorFor(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	cfg := &config.Config{
		Process:    req.Process,
		Inputs:     req.Inputs,
		OutputDir:  s.outputDir,
		PolicyFile: s.policyFile,
	}
	if err := cfg.Validate(); err != nil {
		s.errorFor(w, &ErrValidation{Field: "config", Message: err.Error()})
		return
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	active, err := s.runs.add(runID, req.Process, cancel)
	if err != nil {
		cancel()
		s.errorFor(w, err)
		return
	}

	opts := pipeline.Options{
		RunID:      runID,
		Executor:   s.executor,
		Store:      s.store,
		Presenter:  s.broker,
		Recorder:   s.recorder,
		OnProgress: active.publish,
		OnStart:    active.setRun,
		Out:        io.Discard,
	}

	go func() {
		defer cancel()
		out, err := processes.Run(ctx, cfg, opts)
		if err != nil {
			out = processes.Outcome{
				RunID:   runID,
				Process: req.Process,
				Failure: &types.Failure{RunID: runID, Process: req.Process, Error: err.Error(), Kind: types.FailureValidation},
				Err:     err,
			}
			out.Value = out.Failure
		}
		if out.Failure != nil {
			log.Printf("[run] %s failed in %s: %s", runID, out.Failure.Phase, out.Failure.Error)
		} else {
			log.Printf("[run] %s completed", runID)
		}
		s.runs.finish(active, out)
	}()

	s.jsonResponse(w, http.StatusAccepted, RunResponse{
		RunID:   runID,
		Process: req.Process,
		Status:  db.RunStatusRunning,
	})
}

// handleGetRun returns the live state of an active run, or the recorded run from the database
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if active, ok := s.runs.get(runID); ok {
		resp := RunResponse{RunID: runID, Process: active.process, Status: db.RunStatusRunning}
		if run := active.currentRun(); run != nil {
			snap := run.Snapshot()
			resp.Snapshot = &snap
		}
		if out, done := active.finished(); done {
			resp.Status = db.RunStatusCompleted
			if !out.Success() {
				resp.Status = db.RunStatusFailed
			}
			resp.Result = out.Value
		} else {
			resp.Pending = s.broker.Pending(runID)
		}
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	if s.db == nil {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}
	recorded, err := s.db.GetRun(r.Context(), runID)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	if recorded == nil {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}
	steps, err := s.db.ListRunSteps(r.Context(), runID, nil)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	resp := RunResponse{RunID: recorded.ID, Process: recorded.Process, Status: recorded.Status, Steps: steps}
	if len(recorded.Result) > 0 {
		resp.Result = recorded.Result
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleRunEvents streams a run's progress events, replaying those already emitted
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	active, ok := s.runs.get(runID)
	if !ok {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	cursor := resumeCursor(r)
	for {
		events, changed, out := active.since(cursor)
		for i, ev := range events {
			if err := sse.WriteEvent(cursor+i, ev.Category, ev); err != nil {
				return
			}
		}
		cursor += len(events)

		if out != nil {
			if err := sse.WriteComplete(runID, out.Success(), out.Value); err != nil {
				log.Printf("[events] %s: %v", runID, err)
			}
			return
		}

		select {
		case <-changed:
		case <-r.Context().Done():
			return
		}
	}
}

// handleListCheckpoints lists the pending and answered checkpoints of a run
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if active, ok := s.runs.get(runID); ok {
		var answered []pipeline.CheckpointRecord
		if run := active.currentRun(); run != nil {
			answered = run.Checkpoints()
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"run_id":      runID,
			"pending":     s.broker.Pending(runID),
			"checkpoints": answered,
		})
		return
	}

	if s.db == nil {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}
	recorded, err := s.db.ListCheckpoints(r.Context(), runID)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	if len(recorded) == 0 {
		if run, err := s.db.GetRun(r.Context(), runID); err != nil || run == nil {
			s.errorFor(w, &ErrRunNotFound{RunID: runID})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run_id":      runID,
		"pending":     []checkpoint.Requested{},
		"checkpoints": recorded,
	})
}

// handleResumeCheckpoint answers a pending checkpoint as the authenticated reviewer
func (s *Server) handleResumeCheckpoint(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	checkpointID := r.PathValue("checkpoint_id")

	reviewer, err := middleware.GetReviewer(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	active, ok := s.runs.get(runID)
	if !ok {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}
	if _, done := active.finished(); done {
		s.errorFor(w, &ErrRunFinished{RunID: runID})
		return
	}
	if !s.isPending(runID, checkpointID) {
		s.errorFor(w, checkpoint.ErrUnknownCheckpoint)
		return
	}

	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorFor(w, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}

	resumed := checkpoint.Resumed{Reviewer: reviewer}
	if req.RevisionsNeeded || req.Comments != "" || len(req.Concerns) > 0 {
		resumed.Feedback = &checkpoint.Feedback{
			RevisionsNeeded: req.RevisionsNeeded,
			Comments:        req.Comments,
			Concerns:        req.Concerns,
		}
	}
	if err := s.broker.Resume(checkpointID, resumed); err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run_id":           runID,
		"checkpoint_id":    checkpointID,
		"reviewer":         reviewer,
		"revisions_needed": req.RevisionsNeeded,
	})
}

// handleCancelRun asks an active run to stop at its next phase boundary or checkpoint
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	active, ok := s.runs.get(runID)
	if !ok {
		s.errorFor(w, &ErrRunNotFound{RunID: runID})
		return
	}
	if _, done := active.finished(); done {
		s.errorFor(w, &ErrRunFinished{RunID: runID})
		return
	}

	active.cancel()
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "cancelling",
	})
}

func (s *Server) isPending(runID, checkpointID string) bool {
	for _, req := range s.broker.Pending(runID) {
		if req.ID == checkpointID {
			return true
		}
	}
	return false
}
