package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/ledger"
	"github.com/jonathan/process-pipelines/internal/types"
)

// State is the sequencer state of a run.
type State string

// Sequencer states
const (
	StatePending            State = "pending"
	StateRunning            State = "running"
	StateAwaitingCheckpoint State = "awaiting_checkpoint"
	StateRevising           State = "revising"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

var transitions = map[State][]State{
	StatePending:            {StatePending, StateRunning, StateCompleted, StateFailed},
	StateRunning:            {StatePending, StateAwaitingCheckpoint, StateCompleted, StateFailed},
	StateAwaitingCheckpoint: {StatePending, StateRevising, StateCompleted, StateFailed},
	StateRevising:           {StatePending, StateCompleted, StateFailed},
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TransitionError reports a state change the sequencer does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid run transition %s -> %s", e.From, e.To)
}

// Phase statuses
const (
	PhaseStatusPending   = "pending"
	PhaseStatusRunning   = "running"
	PhaseStatusCompleted = "completed"
	PhaseStatusSkipped   = "skipped"
	PhaseStatusFailed    = "failed"
)

// PhaseRecord is the run's record of one phase.
type PhaseRecord struct {
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	Invocations []string  `json:"invocations,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// CheckpointRecord pairs a checkpoint request with its answer.
type CheckpointRecord struct {
	Request           checkpoint.Requested `json:"request"`
	Resumed           *checkpoint.Resumed  `json:"resumed,omitempty"`
	RevisionTriggered bool                 `json:"revisionTriggered"`
}

// RevisionRecord describes one revision pass.
type RevisionRecord struct {
	Checkpoint string                 `json:"checkpoint"`
	Phase      string                 `json:"phase"`
	Feedback   types.RevisionFeedback `json:"feedback"`
	Redirects  []ledger.Redirect      `json:"redirects"`
}

// Run is one pipeline execution. Only the sequencer mutates it.
type Run struct {
	ID          string
	Process     string
	StartedAt   time.Time
	CompletedAt time.Time
	Ledger      *ledger.Ledger

	mu          sync.RWMutex
	state       State
	phaseIndex  int
	phases      []PhaseRecord
	gates       []GateOutcome
	checkpoints []CheckpointRecord
	revisions   []RevisionRecord
}

func newRun(id, process string, phaseNames []string) *Run {
	r := &Run{
		ID:        id,
		Process:   process,
		StartedAt: time.Now(),
		Ledger:    ledger.New(),
		state:     StatePending,
		phases:    make([]PhaseRecord, len(phaseNames)),
	}
	for i, name := range phaseNames {
		r.phases[i] = PhaseRecord{Index: i, Name: name, Status: PhaseStatusPending}
	}
	return r
}

func (r *Run) transition(to State, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(transitions[r.state], to) {
		return &TransitionError{From: r.state, To: to}
	}
	r.state = to
	r.phaseIndex = index
	return nil
}

// State returns the current state and the phase index it applies to.
func (r *Run) State() (State, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.phaseIndex
}

func (r *Run) updatePhase(index int, fn func(*PhaseRecord)) PhaseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.phases[index])
	return r.phases[index]
}

// Phases returns a copy of the phase records.
func (r *Run) Phases() []PhaseRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.phases)
}

// PhaseStatus returns the status of the named phase.
func (r *Run) PhaseStatus(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.phases {
		if p.Name == name {
			return p.Status
		}
	}
	return ""
}

// Statuses maps each phase name to its current status.
func (r *Run) Statuses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make(map[string]string, len(r.phases))
	for _, p := range r.phases {
		statuses[p.Name] = p.Status
	}
	return statuses
}

func (r *Run) addGate(o GateOutcome) {
	r.mu.Lock()
	r.gates = append(r.gates, o)
	r.mu.Unlock()
}

// Gates returns every gate evaluated so far.
func (r *Run) Gates() []GateOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.gates)
}

// LastGate returns the most recent outcome for the named gate.
func (r *Run) LastGate(name string) (GateOutcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.gates) - 1; i >= 0; i-- {
		if r.gates[i].Gate == name {
			return r.gates[i], true
		}
	}
	return GateOutcome{}, false
}

func (r *Run) addCheckpoint(rec CheckpointRecord) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints = append(r.checkpoints, rec)
	return len(r.checkpoints) - 1
}

func (r *Run) updateCheckpoint(i int, fn func(*CheckpointRecord)) CheckpointRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.checkpoints[i])
	return r.checkpoints[i]
}

// Checkpoints returns every checkpoint presented so far.
func (r *Run) Checkpoints() []CheckpointRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.checkpoints)
}

func (r *Run) addRevision(rec RevisionRecord) {
	r.mu.Lock()
	r.revisions = append(r.revisions, rec)
	r.mu.Unlock()
}

// Revisions returns every revision pass made so far.
func (r *Run) Revisions() []RevisionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.revisions)
}

// Revised reports whether a revision pass ran at the named checkpoint.
func (r *Run) Revised(checkpointName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rev := range r.revisions {
		if rev.Checkpoint == checkpointName {
			return true
		}
	}
	return false
}

// Metadata builds the metadata block of a composed result.
func (r *Run) Metadata(config any) types.RunMetadata {
	completed := r.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	return types.RunMetadata{
		RunID:       r.ID,
		Process:     r.Process,
		StartedAt:   r.StartedAt,
		CompletedAt: completed,
		DurationMs:  completed.Sub(r.StartedAt).Milliseconds(),
		Config:      config,
		Phases:      r.Statuses(),
	}
}

// Snapshot is a JSON view of a run.
type Snapshot struct {
	RunID       string             `json:"runId"`
	Process     string             `json:"process"`
	State       State              `json:"state"`
	PhaseIndex  int                `json:"phaseIndex"`
	StartedAt   time.Time          `json:"startedAt"`
	Phases      []PhaseRecord      `json:"phases"`
	Gates       []GateOutcome      `json:"gates"`
	Checkpoints []CheckpointRecord `json:"checkpoints"`
	Revisions   []RevisionRecord   `json:"revisions"`
	Artifacts   []types.Artifact   `json:"artifacts"`
}

// Snapshot returns a consistent copy of the run for display.
func (r *Run) Snapshot() Snapshot {
	state, idx := r.State()
	return Snapshot{
		RunID:       r.ID,
		Process:     r.Process,
		State:       state,
		PhaseIndex:  idx,
		StartedAt:   r.StartedAt,
		Phases:      r.Phases(),
		Gates:       r.Gates(),
		Checkpoints: r.Checkpoints(),
		Revisions:   r.Revisions(),
		Artifacts:   r.Ledger.List(),
	}
}
