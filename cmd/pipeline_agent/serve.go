package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/server"
	"github.com/jonathan/process-pipelines/internal/storage"
)

var (
	servePort      int
	serveMaxActive int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that starts pipeline runs, streams their progress and
accepts checkpoint answers from reviewers holding a signed token.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on (defaults to PORT env var)")
	serveCmd.Flags().IntVar(&serveMaxActive, "max-active-runs", server.DefaultMaxActiveRuns, "Maximum number of runs in flight")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	svc, err := config.LoadServiceConfig()
	if err != nil {
		return err
	}
	port := svc.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	executor, release, err := executorFactory(ctx, svc.APIKey, svc.Model)
	if err != nil {
		return err
	}
	defer release()

	cfg := server.Config{
		Port:          port,
		DatabaseURL:   svc.DatabaseURL,
		OutputDir:     svc.OutputDir,
		PolicyFile:    svc.PolicyFile,
		MaxActiveRuns: serveMaxActive,
		Executor:      executor,
	}

	objectCfg, ok, err := storage.ObjectConfigFromEnv()
	if err != nil {
		return err
	}
	switch {
	case ok:
		cfg.Store, err = storage.NewObjectStore(ctx, objectCfg)
	case svc.OutputDir != "":
		cfg.Store, err = storage.NewFileStore(svc.OutputDir)
	}
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
