// Package pipeline sequences the phases of a business-process pipeline.
//
// A Pipeline is a fixed, ordered list of phases over a caller-defined state type.
// Before each phase its Condition decides whether it runs, is skipped with
// defaults, or halts the run. After a phase completes an optional Checkpoint
// pauses for review, and the reviewer's answer may trigger a single Revision
// pass that redirects a revisable artifact. Compose projects the final state
// into the result record.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/observability"
	"github.com/jonathan/process-pipelines/internal/pipeline/steps"
	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Pipeline is a process definition. S is the accumulated run state and R the composed result.
type Pipeline[S any, R any] struct {
	Name    string
	Phases  []Phase[S]
	Gates   Policy
	Compose func(run *Run, state *S) (*R, error)
}

// Phase is one step of a pipeline.
type Phase[S any] struct {
	Name      string
	Title     string
	Condition Condition[S]
	// Run does the phase's work, usually through the run's task invoker.
	Run func(ctx context.Context, rc *RunContext[S]) error
	// Skip stores the phase's defaults when the condition skips it.
	Skip       func(state *S)
	Checkpoint *Checkpoint[S]
}

// Checkpoint pauses the run after a phase for review.
type Checkpoint[S any] struct {
	Name     string
	Title    string
	Question string
	// When gates the checkpoint on the state; nil always presents it.
	When func(state *S) bool
	// Summary is frozen into the request when the checkpoint is reached.
	Summary func(run *Run, state *S) any
	// Review turns the resume signal into revision feedback. A nil result means
	// no revision. When Review is nil, the reviewer's revisionsNeeded flag decides.
	Review   func(run *Run, state *S, resumed checkpoint.Resumed) *types.RevisionFeedback
	Revision *Revision[S]
}

// Revision re-derives an artifact from feedback. It runs at most once per checkpoint.
type Revision[S any] struct {
	Phase string
	Run   func(ctx context.Context, rc *RunContext[S], feedback types.RevisionFeedback) error
}

// Recorder receives run records for persistence. Failures are ignored by the sequencer.
type Recorder interface {
	StartRun(ctx context.Context, run *Run, config any) error
	RecordPhase(ctx context.Context, runID string, rec PhaseRecord) error
	RecordCheckpoint(ctx context.Context, runID string, rec CheckpointRecord) error
	CompleteRun(ctx context.Context, runID string, status string, result any) error
}

// Options holds configuration for running a pipeline
type Options struct {
	RunID      string
	Executor   task.Executor
	Store      storage.Persister
	Presenter  checkpoint.Presenter
	Gates      Policy
	Recorder   Recorder
	OnProgress ProgressCallback
	// OnStart is called once the run exists, before the first phase.
	OnStart func(run *Run)
	Out     io.Writer
	Verbose bool
}

// Outcome is what Execute returns: a result on success, a failure otherwise.
type Outcome[R any] struct {
	RunID   string
	Run     *Run
	Result  *R
	Failure *types.Failure
	Err     error
}

// Success reports whether the run completed.
func (o Outcome[R]) Success() bool {
	return o.Failure == nil
}

// Value returns the result or the failure record.
func (o Outcome[R]) Value() any {
	if o.Failure != nil {
		return o.Failure
	}
	return o.Result
}

// RunContext is handed to phase and revision functions.
type RunContext[S any] struct {
	Run     *Run
	State   *S
	Invoker *task.Invoker
	Store   storage.Persister
	Gates   Policy
	Printer *observability.Printer
	phase   string
	emit    func(ProgressEvent)
}

// Phase returns the name of the phase currently executing.
func (rc *RunContext[S]) Phase() string {
	return rc.phase
}

// ArtifactKey returns the storage key for a named run artifact.
func (rc *RunContext[S]) ArtifactKey(name string) string {
	return fmt.Sprintf("runs/%s/artifacts/%s", rc.Run.ID, name)
}

// SaveArtifact persists payload and appends it to the ledger.
func (rc *RunContext[S]) SaveArtifact(ctx context.Context, name, format, label string, payload []byte) (types.Artifact, error) {
	path, err := rc.Store.Persist(ctx, rc.ArtifactKey(name), payload)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return rc.Run.Ledger.Append(types.Artifact{Path: path, Format: format, Label: label, Phase: rc.phase})
}

// SaveJSONArtifact marshals v and saves it as a JSON artifact.
func (rc *RunContext[S]) SaveJSONArtifact(ctx context.Context, name, label string, v any) (types.Artifact, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.Artifact{}, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return rc.SaveArtifact(ctx, name, types.FormatJSON, label, payload)
}

// RegisterDocument persists a revisable markdown document and makes it current for key.
func (rc *RunContext[S]) RegisterDocument(ctx context.Context, key, name, label, markdown string) (types.Artifact, error) {
	path, err := rc.Store.Persist(ctx, rc.ArtifactKey(name), []byte(markdown))
	if err != nil {
		return types.Artifact{}, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return rc.Run.Ledger.Register(key, types.Artifact{Path: path, Format: types.FormatMarkdown, Label: label, Phase: rc.phase})
}

// ReviseDocument persists a new version of a revisable document and redirects key to it.
func (rc *RunContext[S]) ReviseDocument(ctx context.Context, key, name, label, markdown string) (types.Artifact, error) {
	path, err := rc.Store.Persist(ctx, rc.ArtifactKey(name), []byte(markdown))
	if err != nil {
		return types.Artifact{}, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return rc.Run.Ledger.Redirect(key, types.Artifact{Path: path, Format: types.FormatMarkdown, Label: label, Phase: rc.phase})
}

// Gate evaluates the named gate and records the outcome. A failed blocking gate
// returns *GateError.
func (rc *RunContext[S]) Gate(name string, value float64) (GateOutcome, error) {
	outcome, err := rc.Gates.Check(name, value)
	if err != nil {
		return GateOutcome{}, err
	}
	outcome.Phase = rc.phase
	rc.Run.addGate(outcome)

	status := StatusPassed
	if !outcome.Passed {
		status = StatusFailed
	}
	rc.emit(ProgressEvent{
		Step:     rc.phase,
		Category: CategoryGate,
		Status:   status,
		Message:  fmt.Sprintf("%s: %.1f (threshold %.1f, %s)", name, value, outcome.Threshold, outcome.Mode),
		Content:  outcome,
	})
	if outcome.Blocks() {
		return outcome, &GateError{Outcome: outcome}
	}
	return outcome, nil
}

type sequencer[S any, R any] struct {
	p      *Pipeline[S, R]
	opts   Options
	run    *Run
	rc     *RunContext[S]
	config any
	out    io.Writer
}

// Execute runs the pipeline to completion or failure. It never panics on phase
// errors; every failure comes back as a structured Outcome.Failure.
//
// Cancelling ctx is honored only between phases and while waiting on a
// checkpoint. An executor call that has started is allowed to finish.
func Execute[S any, R any](ctx context.Context, p *Pipeline[S, R], state *S, config any, opts Options) Outcome[R] {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	if opts.Presenter == nil {
		opts.Presenter = checkpoint.AutoApprove()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	names := make([]string, len(p.Phases))
	for i, ph := range p.Phases {
		names[i] = ph.Name
	}
	run := newRun(opts.RunID, p.Name, names)

	s := &sequencer[S, R]{p: p, opts: opts, run: run, config: config, out: out}
	s.rc = &RunContext[S]{
		Run:     run,
		State:   state,
		Invoker: task.NewInvoker(run.ID, opts.Executor, opts.Store),
		Store:   opts.Store,
		Gates:   p.Gates.Merge(opts.Gates),
		emit:    s.emit,
	}
	if opts.Verbose {
		s.rc.Printer = observability.NewPrinter(out)
	}

	if opts.OnStart != nil {
		opts.OnStart(run)
	}
	if opts.Recorder != nil {
		_ = opts.Recorder.StartRun(ctx, run, config)
	}
	s.emit(ProgressEvent{Step: p.Name, Category: CategoryRun, Status: StatusStarted, Message: "Run started"})

	if err := steps.ValidateOrder(p.Name, names); err != nil {
		return s.fail(ctx, "", err)
	}

	// Invocations are not interrupted by cancellation.
	work := context.WithoutCancel(ctx)

	for i := range p.Phases {
		if err := s.runPhase(ctx, work, i); err != nil {
			return s.fail(ctx, p.Phases[i].Name, err)
		}
	}
	return s.complete(ctx)
}

func (s *sequencer[S, R]) runPhase(ctx, work context.Context, i int) error {
	ph := s.p.Phases[i]
	total := len(s.p.Phases)
	s.rc.phase = ph.Name

	if err := ctx.Err(); err != nil {
		return err
	}
	if i > 0 {
		if err := s.run.transition(StatePending, i); err != nil {
			return err
		}
	}

	decision, err := ph.Condition.Evaluate(s.rc.State, s.rc.Gates)
	if err != nil {
		return err
	}
	if decision.Gate != nil {
		g := *decision.Gate
		g.Phase = ph.Name
		s.run.addGate(g)
	}

	switch decision.Action {
	case ActionHalt:
		return &ValidationError{
			Phase:          ph.Name,
			Gate:           ph.Condition.Name,
			Message:        decision.Reason,
			Recommendation: ph.Condition.Recommendation,
		}
	case ActionSkip:
		fmt.Fprintf(s.out, "Phase %d/%d: Skipping %s (%s)\n", i+1, total, ph.Title, decision.Reason)
		if ph.Skip != nil {
			ph.Skip(s.rc.State)
		}
		rec := s.run.updatePhase(i, func(r *PhaseRecord) {
			r.Status = PhaseStatusSkipped
			r.Reason = decision.Reason
		})
		s.record(ctx, rec)
		s.emit(ProgressEvent{Step: ph.Name, Category: CategoryPhase, Status: StatusSkipped, Message: decision.Reason, Index: i + 1, Total: total})
		return nil
	}

	if err := s.run.transition(StateRunning, i); err != nil {
		return err
	}
	if err := steps.ValidateDependencies(s.p.Name, ph.Name, s.run.Statuses()); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Phase %d/%d: %s...\n", i+1, total, ph.Title)
	if decision.Reason != "" {
		slog.Warn("advisory gate failed", "phase", ph.Name, "reason", decision.Reason)
	}
	started := time.Now()
	before := s.rc.Invoker.Count()
	s.run.updatePhase(i, func(r *PhaseRecord) {
		r.Status = PhaseStatusRunning
		r.StartedAt = started
	})
	s.emit(ProgressEvent{Step: ph.Name, Category: CategoryPhase, Status: StatusStarted, Message: ph.Title, Index: i + 1, Total: total})

	err = ph.Run(work, s.rc)
	keys := s.effectKeysSince(before)
	if err != nil {
		rec := s.run.updatePhase(i, func(r *PhaseRecord) {
			r.Status = PhaseStatusFailed
			r.DurationMs = time.Since(started).Milliseconds()
			r.Invocations = keys
			r.Error = err.Error()
		})
		s.record(ctx, rec)
		return err
	}

	rec := s.run.updatePhase(i, func(r *PhaseRecord) {
		r.Status = PhaseStatusCompleted
		r.DurationMs = time.Since(started).Milliseconds()
		r.Invocations = keys
	})
	s.record(ctx, rec)
	s.emit(ProgressEvent{Step: ph.Name, Category: CategoryPhase, Status: StatusCompleted, Message: ph.Title, Index: i + 1, Total: total})

	if cp := ph.Checkpoint; cp != nil && (cp.When == nil || cp.When(s.rc.State)) {
		return s.checkpoint(ctx, work, i, cp)
	}
	return nil
}

func (s *sequencer[S, R]) checkpoint(ctx, work context.Context, i int, cp *Checkpoint[S]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.run.transition(StateAwaitingCheckpoint, i); err != nil {
		return err
	}

	var summary json.RawMessage
	if cp.Summary != nil {
		raw, err := json.Marshal(cp.Summary(s.run, s.rc.State))
		if err != nil {
			return fmt.Errorf("failed to freeze checkpoint %s summary: %w", cp.Name, err)
		}
		summary = raw
	}

	req := checkpoint.Requested{
		ID:       uuid.New().String(),
		RunID:    s.run.ID,
		Phase:    s.p.Phases[i].Name,
		Name:     cp.Name,
		Title:    cp.Title,
		Question: cp.Question,
		Context: checkpoint.Context{
			RunID:     s.run.ID,
			Artifacts: s.run.Ledger.List(),
			Summary:   summary,
		},
		RequestedAt: time.Now(),
	}
	idx := s.run.addCheckpoint(CheckpointRecord{Request: req})
	fmt.Fprintf(s.out, "Checkpoint: %s\n", cp.Title)
	s.emit(ProgressEvent{Step: req.Phase, Category: CategoryCheckpoint, Status: StatusRequested, Message: cp.Title, Content: req})

	resumed, err := s.opts.Presenter.Present(ctx, req)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", cp.Name, err)
	}

	var feedback *types.RevisionFeedback
	if cp.Review != nil {
		feedback = cp.Review(s.run, s.rc.State, resumed)
	} else if resumed.RevisionsNeeded() {
		feedback = &types.RevisionFeedback{
			Source:   "reviewer",
			Comments: resumed.Feedback.Comments,
			Concerns: resumed.Feedback.Concerns,
		}
	}
	revise := feedback != nil && cp.Revision != nil && !s.run.Revised(cp.Name)

	rec := s.run.updateCheckpoint(idx, func(r *CheckpointRecord) {
		r.Resumed = &resumed
		r.RevisionTriggered = revise
	})
	if s.opts.Recorder != nil {
		_ = s.opts.Recorder.RecordCheckpoint(ctx, s.run.ID, rec)
	}
	s.emit(ProgressEvent{Step: req.Phase, Category: CategoryCheckpoint, Status: StatusResumed, Message: cp.Title, Content: rec})

	if !revise {
		return nil
	}
	return s.revise(work, i, cp, *feedback)
}

func (s *sequencer[S, R]) revise(work context.Context, i int, cp *Checkpoint[S], feedback types.RevisionFeedback) error {
	if err := s.run.transition(StateRevising, i); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Revising: %s\n", cp.Revision.Phase)
	s.emit(ProgressEvent{Step: cp.Revision.Phase, Category: CategoryRevision, Status: StatusStarted, Message: cp.Title, Content: feedback})

	prev := s.rc.phase
	s.rc.phase = cp.Revision.Phase
	before := len(s.run.Ledger.Redirects())
	err := cp.Revision.Run(work, s.rc, feedback)
	s.rc.phase = prev
	if err != nil {
		return &PhaseError{Phase: cp.Revision.Phase, Err: err}
	}

	rec := RevisionRecord{
		Checkpoint: cp.Name,
		Phase:      cp.Revision.Phase,
		Feedback:   feedback,
		Redirects:  s.run.Ledger.Redirects()[before:],
	}
	s.run.addRevision(rec)
	s.emit(ProgressEvent{Step: cp.Revision.Phase, Category: CategoryRevision, Status: StatusCompleted, Message: cp.Title, Content: rec})
	return nil
}

func (s *sequencer[S, R]) complete(ctx context.Context) Outcome[R] {
	s.run.CompletedAt = time.Now()
	result, err := s.p.Compose(s.run, s.rc.State)
	if err != nil {
		return s.fail(ctx, "", fmt.Errorf("failed to compose result: %w", err))
	}
	if err := s.run.transition(StateCompleted, len(s.p.Phases)-1); err != nil {
		return s.fail(ctx, "", err)
	}

	if s.opts.Recorder != nil {
		_ = s.opts.Recorder.CompleteRun(ctx, s.run.ID, string(StateCompleted), result)
	}
	fmt.Fprintf(s.out, "Run %s completed in %s\n", s.run.ID, s.run.CompletedAt.Sub(s.run.StartedAt).Round(time.Millisecond))
	s.emit(ProgressEvent{Step: s.p.Name, Category: CategoryRun, Status: StatusCompleted, Message: "Run completed", Content: result})
	return Outcome[R]{RunID: s.run.ID, Run: s.run, Result: result}
}

func (s *sequencer[S, R]) fail(ctx context.Context, phase string, err error) Outcome[R] {
	var pe *PhaseError
	if errors.As(err, &pe) {
		phase = pe.Phase
	}
	_, idx := s.run.State()
	_ = s.run.transition(StateFailed, idx)
	s.run.CompletedAt = time.Now()

	failure := &types.Failure{
		Success:        false,
		RunID:          s.run.ID,
		Process:        s.p.Name,
		Error:          err.Error(),
		Kind:           Classify(err),
		Phase:          phase,
		Recommendation: Recommend(err),
		Artifacts:      s.run.Ledger.List(),
	}

	if s.opts.Recorder != nil {
		_ = s.opts.Recorder.CompleteRun(context.WithoutCancel(ctx), s.run.ID, string(StateFailed), failure)
	}
	fmt.Fprintf(s.out, "Run %s failed at %s: %v\n", s.run.ID, phase, err)
	s.emit(ProgressEvent{Step: phase, Category: CategoryRun, Status: StatusFailed, Message: failure.Error, Content: failure})
	return Outcome[R]{RunID: s.run.ID, Run: s.run, Failure: failure, Err: err}
}

func (s *sequencer[S, R]) record(ctx context.Context, rec PhaseRecord) {
	if s.opts.Recorder != nil {
		_ = s.opts.Recorder.RecordPhase(context.WithoutCancel(ctx), s.run.ID, rec)
	}
}

func (s *sequencer[S, R]) effectKeysSince(count int) []string {
	var keys []string
	for _, inv := range s.rc.Invoker.Invocations() {
		if inv.Seq > count {
			keys = append(keys, inv.EffectKey)
		}
	}
	return keys
}

// emit calls the progress callback if configured
func (s *sequencer[S, R]) emit(event ProgressEvent) {
	if s.opts.OnProgress == nil {
		return
	}
	event.RunID = s.run.ID
	s.opts.OnProgress(event)
}

// Conditions returns the pipeline's condition table.
func (p *Pipeline[S, R]) Conditions() []ConditionEntry {
	entries := make([]ConditionEntry, 0, len(p.Phases))
	for _, ph := range p.Phases {
		kind := ph.Condition.Kind
		if kind == "" {
			kind = ConditionAlways
		}
		e := ConditionEntry{Phase: ph.Name, Kind: kind, Name: ph.Condition.Name}
		if cp := ph.Checkpoint; cp != nil {
			e.Checkpoint = cp.Name
			e.Computed = cp.When != nil
			if cp.Revision != nil {
				e.Revision = cp.Revision.Phase
			}
		}
		entries = append(entries, e)
	}
	return entries
}
