package db

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/types"
)

// SaveArtifact stores a payload under key. Saving the same key again replaces it.
func (db *DB) SaveArtifact(ctx context.Context, runID, key string, content []byte) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO artifacts (run_id, key, format, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET format = $3, content = $4, created_at = NOW()`,
		runID, key, formatFromKey(key), content,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	return nil
}

// GetArtifact retrieves a stored payload by key. It returns nil when the key does not exist.
func (db *DB) GetArtifact(ctx context.Context, key string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx, `SELECT content FROM artifacts WHERE key = $1`, key).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", key, err)
	}
	return content, nil
}

// ListArtifacts lists the payloads stored for a run in the order they were written
func (db *DB) ListArtifacts(ctx context.Context, runID string) ([]ArtifactSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT key, format, octet_length(content), created_at
		 FROM artifacts WHERE run_id = $1 ORDER BY created_at, key`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []ArtifactSummary
	for rows.Next() {
		var a ArtifactSummary
		if err := rows.Scan(&a.Key, &a.Format, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ArtifactStore persists run payloads in the artifacts table.
type ArtifactStore struct {
	db *DB
}

// NewArtifactStore returns a storage.Persister backed by db.
func NewArtifactStore(db *DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// Persist stores payload and returns a db:// path.
func (s *ArtifactStore) Persist(ctx context.Context, key string, payload []byte) (string, error) {
	clean, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.db.SaveArtifact(ctx, runIDFromKey(clean), clean, payload); err != nil {
		return "", err
	}
	return "db://" + clean, nil
}

// Read returns the payload stored under key.
func (s *ArtifactStore) Read(ctx context.Context, key string) ([]byte, error) {
	clean, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	content, err := s.db.GetArtifact(ctx, clean)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, clean)
	}
	return content, nil
}

// runIDFromKey extracts the run ID from keys of the form runs/<id>/...
func runIDFromKey(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) >= 2 && parts[0] == "runs" {
		return parts[1]
	}
	return ""
}

func formatFromKey(key string) string {
	switch path.Ext(key) {
	case ".json":
		return types.FormatJSON
	case ".md":
		return types.FormatMarkdown
	default:
		return "binary"
	}
}
