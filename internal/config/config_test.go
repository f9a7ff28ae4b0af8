package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/process-pipelines/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"process": "product-vision-strategy",
		"inputs": {"productName": "Acme POS", "includeFinancialProjections": true},
		"output_dir": "out",
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "product-vision-strategy", cfg.Process)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.True(t, cfg.Verbose)
	require.NoError(t, cfg.Validate())

	in, err := cfg.StrategyInputs()
	require.NoError(t, err)
	assert.Equal(t, "Acme POS", in.ProductName)
	assert.Equal(t, DefaultTimeframe, in.Timeframe)
	assert.True(t, in.IncludeFinancialProjections)
	assert.True(t, in.AlignmentRequired())
	assert.Nil(t, in.QualityThreshold, "the gate policy supplies the default")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "config path is empty")

	_, err = LoadConfig("/nonexistent/path/config.json")
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.ErrorContains(t, err, "failed to parse config JSON")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing process",
			cfg:     Config{},
			wantErr: "Config.Process: failed 'required'",
		},
		{
			name:    "unknown process",
			cfg:     Config{Process: "okr-planning"},
			wantErr: "failed 'oneof'",
		},
		{
			name:    "strategy without product name",
			cfg:     Config{Process: "product-vision-strategy", Inputs: json.RawMessage(`{}`)},
			wantErr: "StrategyInputs.ProductName",
		},
		{
			name:    "threshold out of range",
			cfg:     Config{Process: "product-vision-strategy", Inputs: json.RawMessage(`{"productName": "x", "qualityThreshold": 140}`)},
			wantErr: "QualityThreshold: failed 'lte' (100)",
		},
		{
			name:    "invalid feature",
			cfg:     Config{Process: "rice-prioritization", Inputs: json.RawMessage(`{"features": [{"id": "a", "name": "A", "reach": 10, "impact": 1, "confidence": 70, "effort": 1}]}`)},
			wantErr: "Features[0].Confidence",
		},
		{
			name:    "zero effort",
			cfg:     Config{Process: "rice-prioritization", Inputs: json.RawMessage(`{"features": [{"id": "a", "name": "A", "reach": 10, "impact": 1, "confidence": 80, "effort": 0}]}`)},
			wantErr: "Features[0].Effort",
		},
		{
			name:    "malformed inputs",
			cfg:     Config{Process: "rice-prioritization", Inputs: json.RawMessage(`[1,2]`)},
			wantErr: "failed to parse inputs",
		},
		{
			name:    "missing policy file",
			cfg:     Config{Process: "rice-prioritization", PolicyFile: "/nonexistent/policy.yaml"},
			wantErr: "policy file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_TwoFeaturesIsNotAConfigError(t *testing.T) {
	cfg := Config{Process: "rice-prioritization", Inputs: json.RawMessage(`{"features": [
		{"id": "a", "name": "A", "reach": 10, "impact": 1, "confidence": 80, "effort": 1},
		{"id": "b", "name": "B", "reach": 10, "impact": 1, "confidence": 80, "effort": 1}
	]}`)}
	assert.NoError(t, cfg.Validate())
}

func TestPrioritizationInputs_Defaults(t *testing.T) {
	cfg := Config{Process: "rice-prioritization", Inputs: json.RawMessage(`{"includeSensitivity": false}`)}
	in, err := cfg.PrioritizationInputs()
	require.NoError(t, err)

	require.NotNil(t, in.MinimumConfidence)
	assert.Equal(t, DefaultMinimumConfidence, *in.MinimumConfidence)
	assert.False(t, in.SensitivityEnabled(), "explicit false is kept")
	assert.False(t, in.ApplyStrategicFilter)
	assert.Zero(t, in.VolatilityThreshold)
	assert.Nil(t, in.QualityThreshold)

	in2 := PrioritizationInputs{}
	in2.ApplyDefaults()
	assert.True(t, in2.SensitivityEnabled())
}

func TestPrioritizationInputs_ExplicitZerosKept(t *testing.T) {
	cfg := Config{Process: "rice-prioritization", Inputs: json.RawMessage(`{"minimumConfidence": 0, "qualityThreshold": 0}`)}
	in, err := cfg.PrioritizationInputs()
	require.NoError(t, err)

	require.NotNil(t, in.MinimumConfidence)
	assert.Equal(t, 0, *in.MinimumConfidence)
	assert.Equal(t, 0, in.ConfidenceFloor())
	require.NotNil(t, in.QualityThreshold)
	assert.Equal(t, 0.0, *in.QualityThreshold)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{Process: "rice-prioritization", APIKey: "from-file"}
	defaults := Config{
		Process:     "product-vision-strategy",
		Inputs:      json.RawMessage(`{"productName": "x"}`),
		OutputDir:   "out",
		APIKey:      "from-env",
		Model:       "gemini-2.5-pro",
		DatabaseURL: "postgres://localhost/pipelines",
	}

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "rice-prioritization", merged.Process)
	assert.Equal(t, "from-file", merged.APIKey)
	assert.Equal(t, "out", merged.OutputDir)
	assert.Equal(t, "gemini-2.5-pro", merged.Model)
	assert.Equal(t, "postgres://localhost/pipelines", merged.DatabaseURL)
	assert.JSONEq(t, `{"productName": "x"}`, string(merged.Inputs))
	assert.Empty(t, cfg.OutputDir, "receiver is not modified")
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	require.NoError(t, policy.Validate())

	assert.Equal(t, pipeline.Gate{
		Name:        GateMinimumFeatures,
		Threshold:   3,
		Mode:        pipeline.ModeBlocking,
		Description: "RICE prioritization needs at least three features to rank.",
	}, policy[GateMinimumFeatures])
	assert.Equal(t, pipeline.ModeAdvisory, policy[GateStrategyQuality].Mode)
	assert.Equal(t, 85.0, policy[GateStrategyQuality].Threshold)
	assert.Equal(t, 80.0, policy[GatePrioritizationQuality].Threshold)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gates:
  - name: strategy-quality
    threshold: 90
    mode: blocking
`), 0644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeBlocking, policy[GateStrategyQuality].Mode)
	assert.Equal(t, 90.0, policy[GateStrategyQuality].Threshold)
	assert.Equal(t, 3.0, policy[GateMinimumFeatures].Threshold, "unlisted gates keep their defaults")

	cfg := Config{PolicyFile: path}
	fromCfg, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, policy, fromCfg)
}

func TestParsePolicy_Errors(t *testing.T) {
	_, err := ParsePolicy([]byte("gates: [::"))
	assert.ErrorContains(t, err, "failed to parse gate policy YAML")

	_, err = ParsePolicy([]byte("gates:\n  - {name: a, threshold: 1, mode: sometimes}\n"))
	assert.ErrorContains(t, err, "mode must be")

	_, err = ParsePolicy([]byte("gates:\n  - {name: a, threshold: 1, mode: advisory}\n  - {name: a, threshold: 2, mode: advisory}\n"))
	assert.ErrorContains(t, err, "more than once")

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read gate policy")
}

func TestLoadServiceConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("DATABASE_URL", "")

	svc, err := LoadServiceConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, svc.Port)
	assert.Equal(t, DefaultModel, svc.Model)
	assert.Equal(t, "key", svc.APIKey)

	cfg := Config{Process: "rice-prioritization", Model: "custom"}
	cfg.ApplyEnv(svc)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "custom", cfg.Model)

	t.Setenv("PORT", "http")
	_, err = LoadServiceConfig()
	assert.ErrorContains(t, err, "invalid PORT")
}
