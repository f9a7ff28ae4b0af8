package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type waiter struct {
	req Requested
	ch  chan Resumed
}

// Broker is a Presenter whose answers arrive from elsewhere, for example an HTTP
// handler. Present blocks until Resume is called for the same checkpoint ID or
// the context ends.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*waiter

	// OnRequest, when set, is called for each checkpoint as it becomes pending.
	OnRequest func(Requested)
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{pending: make(map[string]*waiter)}
}

// Present registers req and waits for its answer.
func (b *Broker) Present(ctx context.Context, req Requested) (Resumed, error) {
	w := &waiter{req: req, ch: make(chan Resumed, 1)}

	b.mu.Lock()
	if _, dup := b.pending[req.ID]; dup {
		b.mu.Unlock()
		return Resumed{}, fmt.Errorf("checkpoint %s is already pending", req.ID)
	}
	b.pending[req.ID] = w
	hook := b.OnRequest
	b.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	select {
	case r := <-w.ch:
		return r, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
		return Resumed{}, ctx.Err()
	}
}

// Resume answers a pending checkpoint.
func (b *Broker) Resume(id string, r Resumed) error {
	b.mu.Lock()
	w, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCheckpoint, id)
	}

	r.CheckpointID = id
	r.Resumed = true
	if r.ResumedAt.IsZero() {
		r.ResumedAt = time.Now()
	}
	w.ch <- r
	return nil
}

// Pending lists checkpoints waiting for an answer. An empty runID lists all runs.
func (b *Broker) Pending(runID string) []Requested {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Requested, 0, len(b.pending))
	for _, w := range b.pending {
		if runID == "" || w.req.RunID == runID {
			out = append(out, w.req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}
