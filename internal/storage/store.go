// Package storage persists phase inputs, outputs and documents under stable keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Read when nothing is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Persister stores payloads under slash-separated keys and reports where they landed.
type Persister interface {
	Persist(ctx context.Context, key string, payload []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// KeyError reports a key that cannot be stored.
type KeyError struct {
	Key    string
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid storage key %q: %s", e.Key, e.Reason)
}

// CleanKey normalizes a key and rejects keys that would escape the store root.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", &KeyError{Key: key, Reason: "empty"}
	}
	if strings.HasPrefix(key, "/") {
		return "", &KeyError{Key: key, Reason: "must be relative"}
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", &KeyError{Key: key, Reason: "must not contain .."}
		}
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

// FileStore writes payloads below a root directory.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory payloads are written under.
func (s *FileStore) Root() string { return s.root }

// Persist writes payload to <root>/<key> and returns that path.
func (s *FileStore) Persist(_ context.Context, key string, payload []byte) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", clean, err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", clean, err)
	}
	return path, nil
}

// Read returns the payload stored under key.
func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return data, err
}

// Memory keeps payloads in a map. Used by tests and by runs started without an output directory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Persist stores a copy of payload and returns a mem:// path.
func (m *Memory) Persist(_ context.Context, key string, payload []byte) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)

	m.mu.Lock()
	m.data[clean] = buf
	m.mu.Unlock()
	return "mem://" + clean, nil
}

// Read returns the payload stored under key.
func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[clean]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	return data, nil
}

// Keys lists stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
