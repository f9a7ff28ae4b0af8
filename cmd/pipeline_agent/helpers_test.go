package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/task/tasktest"
	"github.com/jonathan/process-pipelines/internal/types"
)

// executeCommand runs the root command in-process and returns everything it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags puts every flag back to its default so package-level flag
// variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// isolateEnv clears the variables that would route a test run to real services.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "DATABASE_URL", "PIPELINE_OUTPUT_DIR", "PIPELINE_POLICY_FILE",
		"PIPELINE_MINIO_ENDPOINT", "PORT",
	} {
		t.Setenv(key, "")
	}
}

// useExecutor swaps the executor factory for one returning exec.
func useExecutor(t *testing.T, exec task.Executor) {
	t.Helper()
	original := executorFactory
	executorFactory = func(context.Context, string, string) (task.Executor, func(), error) {
		return exec, func() {}, nil
	}
	t.Cleanup(func() { executorFactory = original })
}

func testFeatures() []types.Feature {
	return []types.Feature{
		{ID: "sso", Name: "Single sign-on", Reach: 4000, Impact: 2, Confidence: 100, Effort: 3},
		{ID: "export", Name: "CSV export", Reach: 1500, Impact: 1, Confidence: 100, Effort: 1},
		{ID: "themes", Name: "Dark mode", Reach: 800, Impact: 0.5, Confidence: 100, Effort: 2},
	}
}

func prioritizationFake() *tasktest.Fake {
	return tasktest.New().
		On("feature-collection", func(req task.Request) (any, error) {
			var in struct {
				Features []types.Feature `json:"features"`
			}
			if err := json.Unmarshal(req.Input, &in); err != nil {
				return nil, err
			}
			return types.FeatureCollection{Features: in.Features}, nil
		}).
		Reply("report-assembly", types.AuthoredDocument{Title: "Prioritization", Markdown: "# Prioritization"}).
		Reply("revise-report", types.AuthoredDocument{Title: "Prioritization", Markdown: "# Prioritization v2"}).
		Reply("quality-scoring", types.QualityScore{
			Score:           88,
			Dimensions:      []types.QualityDimension{{Name: "evidence", Score: 88}},
			Recommendations: []string{},
		})
}

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, payload, 0644))
	return path
}
