package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/process-pipelines/internal/observability"
	"github.com/jonathan/process-pipelines/internal/rice"
	"github.com/jonathan/process-pipelines/internal/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score, rank and tier features with RICE",
	Long: `Computes RICE scores locally for a features file, ranks them, assigns tiers
and runs the sensitivity scenarios. No executor is involved.`,
	RunE: runScore,
}

var (
	scoreInput       string
	scoreOutput      string
	scorePromote     string
	scoreThreshold   int
	scoreSensitivity bool
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreInput, "in", "i", "", "Path to features JSON: an array or an object with a features field (required)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "out", "o", "", "Path to write the scoring report JSON (optional)")
	scoreCmd.Flags().StringVar(&scorePromote, "promote", "", "Comma-separated feature IDs to promote to the high tier")
	scoreCmd.Flags().IntVar(&scoreThreshold, "volatility-threshold", 0, "Rank shift above which a feature is volatile")
	scoreCmd.Flags().BoolVar(&scoreSensitivity, "sensitivity", true, "Run the sensitivity scenarios")

	if err := scoreCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(scoreCmd)
}

// ScoreReport is what the score command writes.
type ScoreReport struct {
	Ranking     []types.TieredFeature    `json:"ranking"`
	Tiers       map[string]int           `json:"tiers"`
	Sensitivity *types.SensitivityReport `json:"sensitivity"`
}

func runScore(cmd *cobra.Command, _ []string) error {
	features, err := loadFeatures(scoreInput)
	if err != nil {
		return err
	}

	ranked, err := rice.Rank(features)
	if err != nil {
		return fmt.Errorf("failed to rank features: %w", err)
	}

	promoted := make(map[string]bool)
	for _, id := range strings.Split(scorePromote, ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if !hasFeature(features, id) {
			return fmt.Errorf("--promote: unknown feature %q", id)
		}
		promoted[id] = true
	}
	tiered := rice.Tier(ranked, promoted)

	report := ScoreReport{Ranking: tiered, Tiers: rice.CountTiers(tiered)}
	if scoreSensitivity {
		report.Sensitivity, err = rice.Sensitivity(features, rice.DefaultScenarios(), scoreThreshold)
		if err != nil {
			return fmt.Errorf("sensitivity analysis failed: %w", err)
		}
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintRanking(ranked)
	printer.PrintTiers(tiered)
	printer.PrintSensitivity(report.Sensitivity)

	if scoreOutput != "" {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := os.WriteFile(scoreOutput, payload, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", scoreOutput)
	}
	return nil
}

// loadFeatures reads a JSON array of features or an object with a features field.
func loadFeatures(path string) ([]types.Feature, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read features file: %w", err)
	}

	var features []types.Feature
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &features)
	} else {
		var wrapped struct {
			Features []types.Feature `json:"features"`
		}
		err = json.Unmarshal(content, &wrapped)
		features = wrapped.Features
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse features JSON: %w", err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no features in %s", path)
	}
	return features, nil
}

func hasFeature(features []types.Feature, id string) bool {
	for _, f := range features {
		if f.ID == id {
			return true
		}
	}
	return false
}
