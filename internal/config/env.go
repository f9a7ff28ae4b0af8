package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jonathan/process-pipelines/internal/pipeline"
)

// Defaults for service settings
const (
	DefaultPort  = 8080
	DefaultModel = "gemini-2.5-flash"
)

// ServiceConfig holds the environment-driven settings shared by the CLI and the server.
type ServiceConfig struct {
	Port        int
	APIKey      string
	Model       string
	DatabaseURL string
	OutputDir   string
	PolicyFile  string
}

// LoadServiceConfig reads PORT, GEMINI_API_KEY, GEMINI_MODEL, DATABASE_URL,
// PIPELINE_OUTPUT_DIR and PIPELINE_POLICY_FILE.
func LoadServiceConfig() (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:        DefaultPort,
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		Model:       envOr("GEMINI_MODEL", DefaultModel),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OutputDir:   os.Getenv("PIPELINE_OUTPUT_DIR"),
		PolicyFile:  os.Getenv("PIPELINE_POLICY_FILE"),
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// ApplyEnv fills unset run settings from the service environment.
func (c *Config) ApplyEnv(svc *ServiceConfig) {
	if svc == nil {
		return
	}
	merged := c.MergeWithDefaults(Config{
		APIKey:      svc.APIKey,
		Model:       svc.Model,
		DatabaseURL: svc.DatabaseURL,
		OutputDir:   svc.OutputDir,
		PolicyFile:  svc.PolicyFile,
	})
	*c = merged
}

// Policy returns the gate policy for the run: the defaults, overlaid by the
// policy file when one is configured.
func (c *Config) Policy() (pipeline.Policy, error) {
	if c.PolicyFile == "" {
		return DefaultPolicy(), nil
	}
	return LoadPolicy(c.PolicyFile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
