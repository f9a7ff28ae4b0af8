package server

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes"
)

// DefaultMaxActiveRuns bounds concurrent pipeline runs per server.
const DefaultMaxActiveRuns = 8

// FinishedRunRetention is how long a finished run stays in memory. After that
// its state is served from the database.
const FinishedRunRetention = 10 * time.Minute

// activeRun tracks a run started by this server.
type activeRun struct {
	id      string
	process string
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	run     *pipeline.Run
	events  []pipeline.ProgressEvent
	changed chan struct{}
	outcome *processes.Outcome
}

func (a *activeRun) setRun(run *pipeline.Run) {
	a.mu.Lock()
	a.run = run
	a.mu.Unlock()
}

func (a *activeRun) currentRun() *pipeline.Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run
}

// publish appends an event and wakes every subscriber.
func (a *activeRun) publish(ev pipeline.ProgressEvent) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
}

func (a *activeRun) finish(out processes.Outcome) {
	a.mu.Lock()
	a.outcome = &out
	if a.run == nil {
		a.run = out.Run
	}
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
	close(a.done)
}

// since returns the events after cursor, a channel closed on the next change,
// and the outcome once the run has finished.
func (a *activeRun) since(cursor int) ([]pipeline.ProgressEvent, <-chan struct{}, *processes.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var evs []pipeline.ProgressEvent
	if cursor < len(a.events) {
		evs = append(evs, a.events[cursor:]...)
	}
	return evs, a.changed, a.outcome
}

func (a *activeRun) finished() (*processes.Outcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome, a.outcome != nil
}

type finishedRun struct {
	id string
	at time.Time
}

// Registry holds the runs started by this server.
type Registry struct {
	mu        sync.RWMutex
	runs      map[string]*activeRun
	limit     int
	active    int
	done      []finishedRun // in finish order
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates a registry allowing at most limit unfinished runs.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultMaxActiveRuns
	}
	return &Registry{
		runs:      make(map[string]*activeRun),
		limit:     limit,
		retention: FinishedRunRetention,
		now:       time.Now,
	}
}

func (r *Registry) add(id, process string, cancel context.CancelFunc) (*activeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	if r.active >= r.limit {
		return nil, &ErrTooManyRuns{Limit: r.limit}
	}

	a := &activeRun{
		id:      id,
		process: process,
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
	r.runs[id] = a
	r.active++
	return a, nil
}

// finish records the outcome and releases the run's active slot.
func (r *Registry) finish(a *activeRun, out processes.Outcome) {
	a.finish(out)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
	r.done = append(r.done, finishedRun{id: a.id, at: r.now()})
	r.evictLocked()
}

// evictLocked drops finished runs older than the retention period.
func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.retention)
	n := 0
	for n < len(r.done) && !r.done[n].at.After(cutoff) {
		delete(r.runs, r.done[n].id)
		n++
	}
	r.done = r.done[n:]
}

func (r *Registry) get(id string) (*activeRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.runs[id]
	return a, ok
}

// CancelAll cancels every unfinished run.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.runs {
		a.cancel()
	}
}
