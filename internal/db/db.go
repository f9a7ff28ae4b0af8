// Package db provides PostgreSQL persistence for pipeline runs, their phase and
// checkpoint records, and stored artifacts.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate creates the tables this package uses when they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateRun inserts a running pipeline run with its configuration
func (db *DB) CreateRun(ctx context.Context, id, process string, config any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, process, status, config)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET process = $2, status = $3, config = $4, completed_at = NULL`,
		id, process, RunStatusRunning, configJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the terminal status and composed result of a run
func (db *DB) CompleteRun(ctx context.Context, id, status string, result any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, result = $2, completed_at = NOW() WHERE id = $3`,
		status, resultJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a pipeline run by ID. It returns nil when the run does not exist.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, process, status, config, result, created_at, completed_at
		 FROM pipeline_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Process, &run.Status, &run.Config, &run.Result, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves runs with optional filters, newest first
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT id, process, status, config, result, created_at, completed_at
		FROM pipeline_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Process != "" {
		query += fmt.Sprintf(" AND process = $%d", argNum)
		args = append(args, filters.Process)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Process, &run.Status, &run.Config, &run.Result, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a pipeline run, its step and checkpoint records (via cascade)
// and its artifacts
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM artifacts WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	result, err := db.pool.Exec(ctx, `DELETE FROM pipeline_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}
