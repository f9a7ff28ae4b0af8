package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/db"
	"github.com/jonathan/process-pipelines/internal/llm"
	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/task"
)

// executorFactory builds the task executor for a run. Tests replace it.
var executorFactory = newGeminiExecutor

// newGeminiExecutor returns an LLM-backed executor and a function releasing its client.
func newGeminiExecutor(ctx context.Context, apiKey, model string) (task.Executor, func(), error) {
	if apiKey == "" {
		return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	llmConfig := llm.DefaultConfig()
	if model != "" {
		llmConfig = llmConfig.WithModel(llm.TierStandard, model)
	}
	client, err := llm.NewGeminiClient(ctx, llmConfig, apiKey)
	if err != nil {
		return nil, nil, err
	}
	return llm.NewTaskExecutor(client), func() { _ = client.Close() }, nil
}

// openDatabase connects and applies the schema.
func openDatabase(ctx context.Context, databaseURL string) (*db.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	database, err := db.Connect(connectCtx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(connectCtx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// openStore picks where invocation payloads and artifacts go: an object bucket
// when PIPELINE_MINIO_ENDPOINT is set, else the output directory, else the
// database, else memory.
func openStore(ctx context.Context, cfg *config.Config, database *db.DB, out io.Writer) (storage.Persister, error) {
	objectCfg, ok, err := storage.ObjectConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if ok {
		store, err := storage.NewObjectStore(ctx, objectCfg)
		if err != nil {
			return nil, err
		}
		_, _ = fmt.Fprintf(out, "Storing artifacts in bucket %s\n", objectCfg.Bucket)
		return store, nil
	}

	if cfg.OutputDir != "" {
		return storage.NewFileStore(cfg.OutputDir)
	}
	if database != nil {
		return db.NewArtifactStore(database), nil
	}
	return storage.NewMemory(), nil
}
