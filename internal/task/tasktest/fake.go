// Package tasktest provides a scripted task.Executor for tests.
package tasktest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonathan/process-pipelines/internal/task"
)

// Responder produces the output of one call. Returned values other than
// json.RawMessage are marshaled.
type Responder func(req task.Request) (any, error)

// Fake answers tasks from registered responders and records every request.
type Fake struct {
	mu         sync.Mutex
	responders map[string][]Responder
	requests   []task.Request
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{responders: make(map[string][]Responder)}
}

// On registers r for taskName. Several responders for one task answer
// successive calls in order; the last one repeats.
func (f *Fake) On(taskName string, r Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[taskName] = append(f.responders[taskName], r)
	return f
}

// Reply registers a fixed output for taskName.
func (f *Fake) Reply(taskName string, v any) *Fake {
	return f.On(taskName, func(task.Request) (any, error) { return v, nil })
}

// Fail registers an error for taskName.
func (f *Fake) Fail(taskName string, err error) *Fake {
	return f.On(taskName, func(task.Request) (any, error) { return nil, err })
}

// Execute implements task.Executor.
func (f *Fake) Execute(_ context.Context, req task.Request) (json.RawMessage, error) {
	f.mu.Lock()
	calls := 0
	for _, r := range f.requests {
		if r.Task == req.Task {
			calls++
		}
	}
	f.requests = append(f.requests, req)
	rs := f.responders[req.Task]
	f.mu.Unlock()

	if len(rs) == 0 {
		return nil, fmt.Errorf("no response scripted for task %s", req.Task)
	}
	v, err := rs[min(calls, len(rs)-1)](req)
	if err != nil {
		return nil, err
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// Calls returns the task names in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.requests))
	for i, r := range f.requests {
		names[i] = r.Task
	}
	return names
}

// Requests returns the recorded requests for taskName.
func (f *Fake) Requests(taskName string) []task.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []task.Request
	for _, r := range f.requests {
		if r.Task == taskName {
			out = append(out, r)
		}
	}
	return out
}

// Echo returns a responder that replies with the call's own input.
func Echo() Responder {
	return func(req task.Request) (any, error) {
		return req.Input, nil
	}
}
