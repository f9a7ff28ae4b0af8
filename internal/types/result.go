//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Failure is the structured result of a run that did not complete.
type Failure struct {
	Success        bool       `json:"success"`
	RunID          string     `json:"runId"`
	Process        string     `json:"process"`
	Error          string     `json:"error"`
	Kind           string     `json:"kind"`
	Phase          string     `json:"phase"`
	Recommendation string     `json:"recommendation"`
	Artifacts      []Artifact `json:"artifacts"`
}

// Failure kinds
const (
	FailureValidation  = "validation_error"
	FailureSchema      = "schema_violation"
	FailureUnavailable = "executor_unavailable"
	FailureTimeout     = "timeout"
	FailureGate        = "gate_blocked"
	FailureCancelled   = "cancelled"
	FailureInternal    = "internal_error"
)

// RunMetadata is attached to every composed result.
type RunMetadata struct {
	RunID       string            `json:"runId"`
	Process     string            `json:"process"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	DurationMs  int64             `json:"durationMs"`
	Config      any               `json:"config"`
	Phases      map[string]string `json:"phases"`
}

// QualitySummary is the projection of a gate outcome into a result record.
type QualitySummary struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Mode      string  `json:"mode"`
	Revised   bool    `json:"revised"`
}
