// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/process-pipelines/internal/pipeline/steps"
)

// Config represents a run configuration that can be loaded from a JSON file.
// Inputs holds the process-specific configuration object and is decoded by
// StrategyInputs or PrioritizationInputs.
type Config struct {
	Process string          `json:"process" validate:"required,oneof=product-vision-strategy rice-prioritization"`
	Inputs  json.RawMessage `json:"inputs,omitempty"`

	// Paths
	OutputDir  string `json:"output_dir,omitempty"`  // Directory artifacts are written to
	PolicyFile string `json:"policy_file,omitempty"` // YAML gate policy overriding the defaults

	// Behavior
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	Model       string `json:"model,omitempty"`        // Gemini model name
	Verbose     bool   `json:"verbose,omitempty"`      // Print phase outputs as they are produced
	Interactive bool   `json:"interactive,omitempty"`  // Answer checkpoints on the terminal
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
}

var validate = validator.New()

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and the inputs of its process.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %s", FormatValidationErrors(err))
	}

	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: policy file not found: %s", c.PolicyFile)
		}
	}

	switch c.Process {
	case steps.ProcessStrategy:
		_, err := c.StrategyInputs()
		return err
	case steps.ProcessPrioritization:
		_, err := c.PrioritizationInputs()
		return err
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Process == "" {
		result.Process = defaults.Process
	}
	if len(result.Inputs) == 0 {
		result.Inputs = defaults.Inputs
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.PolicyFile == "" {
		result.PolicyFile = defaults.PolicyFile
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// StrategyInputs decodes, defaults and validates the product-vision-strategy inputs.
func (c *Config) StrategyInputs() (*StrategyInputs, error) {
	var in StrategyInputs
	if err := decodeInputs(c.Inputs, &in); err != nil {
		return nil, err
	}
	in.ApplyDefaults()
	if err := validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("config error: %s", FormatValidationErrors(err))
	}
	return &in, nil
}

// PrioritizationInputs decodes, defaults and validates the rice-prioritization inputs.
func (c *Config) PrioritizationInputs() (*PrioritizationInputs, error) {
	var in PrioritizationInputs
	if err := decodeInputs(c.Inputs, &in); err != nil {
		return nil, err
	}
	in.ApplyDefaults()
	if err := validate.Struct(&in); err != nil {
		return nil, fmt.Errorf("config error: %s", FormatValidationErrors(err))
	}
	return &in, nil
}

func decodeInputs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	return nil
}

// FormatValidationErrors renders validator errors as "field: rule" pairs.
func FormatValidationErrors(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
