package db

import (
	"encoding/json"
	"time"
)

// Run represents a pipeline run record
type Run struct {
	ID          string          `json:"id"`
	Process     string          `json:"process"`
	Status      string          `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Process string
	Status  string
	Limit   int
}

// RunStep is the persisted record of one phase of a run
type RunStep struct {
	RunID        string     `json:"run_id"`
	Index        int        `json:"index"`
	Step         string     `json:"step"`
	Status       string     `json:"status"`
	Reason       *string    `json:"reason,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	Invocations  []string   `json:"invocations,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RunCheckpoint is the persisted record of a checkpoint request and its answer
type RunCheckpoint struct {
	ID                string          `json:"id"`
	RunID             string          `json:"run_id"`
	Step              string          `json:"step"`
	Name              string          `json:"name"`
	Request           json.RawMessage `json:"request"`
	Resumed           json.RawMessage `json:"resumed,omitempty"`
	RevisionTriggered bool            `json:"revision_triggered"`
	RequestedAt       time.Time       `json:"requested_at"`
	ResumedAt         *time.Time      `json:"resumed_at,omitempty"`
}

// ArtifactSummary is a lightweight view of a stored artifact for listing
type ArtifactSummary struct {
	Key       string    `json:"key"`
	Format    string    `json:"format"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
