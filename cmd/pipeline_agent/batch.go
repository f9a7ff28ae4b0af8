package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/db"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes"
)

var batchCmd = &cobra.Command{
	Use:   "batch <config.json>...",
	Short: "Run several independent process configs concurrently",
	Long: `Runs each config file as an independent run. Checkpoints are approved
automatically; failed runs are reported and make the command exit non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchConcurrency int
	batchOutputDir   string
	batchAPIKey      string
	batchDatabaseURL string
)

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "Maximum number of runs in flight")
	batchCmd.Flags().StringVarP(&batchOutputDir, "out", "o", "", "Directory for artifacts of every run (overrides each config's output_dir)")
	batchCmd.Flags().StringVar(&batchAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	batchCmd.Flags().StringVar(&batchDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(batchCmd)
}

// batchResult is one line of the batch summary.
type batchResult struct {
	ConfigPath string
	RunID      string
	Process    string
	Failure    string
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", batchConcurrency)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	svc, err := config.LoadServiceConfig()
	if err != nil {
		return err
	}

	// Load every config up front so a typo fails before any run starts.
	configs := make([]*config.Config, len(args))
	for i, path := range args {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("out") {
			cfg.OutputDir = batchOutputDir
		}
		if cmd.Flags().Changed("api-key") {
			cfg.APIKey = batchAPIKey
		}
		if cmd.Flags().Changed("db-url") {
			cfg.DatabaseURL = batchDatabaseURL
		}
		cfg.ApplyEnv(svc)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		configs[i] = cfg
	}

	executor, release, err := executorFactory(ctx, configs[0].APIKey, configs[0].Model)
	if err != nil {
		return err
	}
	defer release()

	var database *db.DB
	if url := configs[0].DatabaseURL; url != "" {
		database, err = openDatabase(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
	}

	_, _ = fmt.Fprintf(out, "Running %d configs (concurrency %d)\n", len(configs), batchConcurrency)

	results := make([]batchResult, len(configs))
	var printMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, cfg := range configs {
		g.Go(func() error {
			store, err := openStore(gctx, cfg, database, io.Discard)
			if err != nil {
				return fmt.Errorf("%s: %w", args[i], err)
			}
			opts := pipeline.Options{Executor: executor, Store: store, Out: io.Discard}
			if database != nil {
				opts.Recorder = db.NewRecorder(database)
			}

			outcome, err := processes.Run(gctx, cfg, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", args[i], err)
			}

			res := batchResult{ConfigPath: args[i], RunID: outcome.RunID, Process: outcome.Process}
			if outcome.Failure != nil {
				res.Failure = fmt.Sprintf("%s in %s: %s", outcome.Failure.Kind, outcome.Failure.Phase, outcome.Failure.Error)
			}
			results[i] = res

			printMu.Lock()
			defer printMu.Unlock()
			if res.Failure != "" {
				_, _ = fmt.Fprintf(out, "  ❌ %s (%s) %s\n", res.ConfigPath, res.RunID, res.Failure)
			} else {
				_, _ = fmt.Fprintf(out, "  ✓ %s (%s)\n", res.ConfigPath, res.RunID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Failure != "" {
			failed++
		}
	}
	_, _ = fmt.Fprintf(out, "\nBatch finished: %d succeeded, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}
