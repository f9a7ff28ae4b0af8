package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/db"
	"github.com/jonathan/process-pipelines/internal/observability"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes"
	"github.com/jonathan/process-pipelines/internal/storage"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one business process end-to-end",
	Long: `Runs a registered process (product-vision-strategy or rice-prioritization) phase by phase.

Configuration can be loaded from a JSON file using --config. Command-line flags override config file values.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath  string
	runProcess     string
	runInputs      string
	runOutputDir   string
	runPolicyFile  string
	runAPIKey      string
	runModel       string
	runDatabaseURL string
	runResultPath  string
	runVerbose     bool
	runInteractive bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runProcess, "process", "p", "", "Process to run: product-vision-strategy or rice-prioritization")
	runCommand.Flags().StringVarP(&runInputs, "inputs", "i", "", "Path to a JSON file holding the process inputs")
	runCommand.Flags().StringVarP(&runOutputDir, "out", "o", "", "Directory to write invocation payloads and artifacts to")
	runCommand.Flags().StringVar(&runPolicyFile, "policy", "", "YAML gate policy overriding the defaults")
	runCommand.Flags().StringVar(&runResultPath, "result", "", "Write the result record to this file")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print phase outputs as they are produced")
	runCommand.Flags().BoolVar(&runInteractive, "interactive", false, "Answer checkpoints on the terminal instead of approving them")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	runCommand.Flags().StringVar(&runModel, "model", "", "Gemini model for standard tasks (optional, defaults to GEMINI_MODEL env var)")

	// Database URL for run records
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	executor, release, err := executorFactory(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return err
	}
	defer release()

	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
	}

	store, err := openStore(ctx, cfg, database, out)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Executor: executor,
		Store:    store,
		Out:      out,
		Verbose:  cfg.Verbose,
	}
	if database != nil {
		opts.Recorder = db.NewRecorder(database)
	}
	if cfg.Interactive {
		opts.Presenter = checkpoint.NewConsole(cmd.InOrStdin(), out)
	}

	outcome, err := processes.Run(ctx, cfg, opts)
	if err != nil {
		return err
	}
	return reportOutcome(ctx, cmd, store, outcome, cfg.Verbose)
}

// buildRunConfig loads the config file, applies explicitly set flags and fills
// the rest from the environment.
func buildRunConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
	}

	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("process") {
		cfg.Process = runProcess
	}
	if flags.Changed("inputs") {
		raw, err := os.ReadFile(runInputs)
		if err != nil {
			return nil, fmt.Errorf("failed to read inputs file: %w", err)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("inputs file %s is not valid JSON", runInputs)
		}
		cfg.Inputs = raw
	}
	if flags.Changed("out") {
		cfg.OutputDir = runOutputDir
	}
	if flags.Changed("policy") {
		cfg.PolicyFile = runPolicyFile
	}
	if flags.Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if flags.Changed("model") {
		cfg.Model = runModel
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if flags.Changed("interactive") {
		cfg.Interactive = runInteractive
	}

	svc, err := config.LoadServiceConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(svc)

	if cfg.Process == "" {
		return nil, fmt.Errorf("--process must be provided (via flag or config)")
	}
	return &cfg, nil
}

// reportOutcome prints the result, stores it next to the run's artifacts and
// turns a failed run into a non-zero exit.
func reportOutcome(ctx context.Context, cmd *cobra.Command, store storage.Persister, outcome processes.Outcome, verbose bool) error {
	out := cmd.OutOrStdout()

	payload, err := json.MarshalIndent(outcome.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if path, err := store.Persist(ctx, fmt.Sprintf("runs/%s/result.json", outcome.RunID), payload); err == nil {
		_, _ = fmt.Fprintf(out, "Result stored at %s\n", path)
	}
	if runResultPath != "" {
		if err := os.WriteFile(runResultPath, payload, 0644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	if verbose && outcome.Run != nil {
		observability.NewPrinter(out).PrintArtifacts(outcome.Run.Ledger.List())
	}

	if outcome.Failure != nil {
		_, _ = fmt.Fprintf(out, "\n❌ Run %s failed in %s (%s): %s\n", outcome.RunID, outcome.Failure.Phase, outcome.Failure.Kind, outcome.Failure.Error)
		_, _ = fmt.Fprintf(out, "   %s\n", outcome.Failure.Recommendation)
		return fmt.Errorf("run %s failed: %s", outcome.RunID, outcome.Failure.Kind)
	}

	_, _ = fmt.Fprintf(out, "\n✅ Run %s completed\n", outcome.RunID)
	_, _ = fmt.Fprintln(out, string(payload))
	return nil
}
