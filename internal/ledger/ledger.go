// Package ledger keeps the ordered list of artifacts a run has produced.
package ledger

import (
	"fmt"
	"sync"

	"github.com/jonathan/process-pipelines/internal/types"
)

// Redirect records a revisable key being pointed at a new artifact.
type Redirect struct {
	Key  string         `json:"key"`
	From types.Artifact `json:"from"`
	To   types.Artifact `json:"to"`
}

// Ledger is append-only. Revisable documents are tracked by key; revising one
// appends the new artifact and moves the key, leaving the old entry in place.
type Ledger struct {
	mu        sync.RWMutex
	entries   []types.Artifact
	current   map[string]types.Artifact
	redirects []Redirect
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{current: make(map[string]types.Artifact)}
}

// Append records an artifact. Format defaults to markdown.
func (l *Ledger) Append(a types.Artifact) (types.Artifact, error) {
	if a.Path == "" {
		return types.Artifact{}, fmt.Errorf("artifact path is required")
	}
	if a.Format == "" {
		a.Format = types.FormatMarkdown
	}
	l.mu.Lock()
	l.entries = append(l.entries, a)
	l.mu.Unlock()
	return a, nil
}

// Register appends a and makes it the current artifact for key.
func (l *Ledger) Register(key string, a types.Artifact) (types.Artifact, error) {
	l.mu.RLock()
	_, exists := l.current[key]
	l.mu.RUnlock()
	if exists {
		return types.Artifact{}, fmt.Errorf("artifact key %q already registered", key)
	}

	a, err := l.Append(a)
	if err != nil {
		return types.Artifact{}, err
	}
	l.mu.Lock()
	l.current[key] = a
	l.mu.Unlock()
	return a, nil
}

// Redirect appends a revised artifact and points key at it. The previous
// artifact stays in the ledger.
func (l *Ledger) Redirect(key string, a types.Artifact) (types.Artifact, error) {
	l.mu.RLock()
	prev, exists := l.current[key]
	l.mu.RUnlock()
	if !exists {
		return types.Artifact{}, fmt.Errorf("artifact key %q was never registered", key)
	}
	if prev.Path == a.Path {
		return types.Artifact{}, fmt.Errorf("revision of %q must have a new path, got %s again", key, a.Path)
	}

	a, err := l.Append(a)
	if err != nil {
		return types.Artifact{}, err
	}
	l.mu.Lock()
	l.current[key] = a
	l.redirects = append(l.redirects, Redirect{Key: key, From: prev, To: a})
	l.mu.Unlock()
	return a, nil
}

// Current returns the authoritative artifact for key.
func (l *Ledger) Current(key string) (types.Artifact, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.current[key]
	return a, ok
}

// List returns a copy of every artifact in append order.
func (l *Ledger) List() []types.Artifact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Artifact, len(l.entries))
	copy(out, l.entries)
	return out
}

// Redirects returns every redirect made so far.
func (l *Ledger) Redirects() []Redirect {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Redirect, len(l.redirects))
	copy(out, l.redirects)
	return out
}

// Len returns the number of artifacts recorded.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
