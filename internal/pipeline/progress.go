package pipeline

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Event categories
const (
	CategoryRun        = "run"
	CategoryPhase      = "phase"
	CategoryGate       = "gate"
	CategoryCheckpoint = "checkpoint"
	CategoryRevision   = "revision"
)

// Event statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusPassed    = "passed"
	StatusRequested = "requested"
	StatusResumed   = "resumed"
)
