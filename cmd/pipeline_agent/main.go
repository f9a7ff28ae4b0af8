// Package main provides the pipeline_agent CLI for running business-process pipelines.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipeline_agent",
	Short: "Phase-gated business process pipelines",
	Long: `pipeline_agent runs multi-phase business processes (product vision & strategy,
RICE feature prioritization) with schema-validated phases, quality gates,
review checkpoints and a single revision pass.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
