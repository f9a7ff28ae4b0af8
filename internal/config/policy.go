package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/process-pipelines/internal/pipeline"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Gate names used by the built-in processes
const (
	GateMinimumFeatures       = "minimum-features"
	GateStrategyQuality       = "strategy-quality"
	GatePrioritizationQuality = "prioritization-quality"
)

type policyFile struct {
	Gates []pipeline.Gate `yaml:"gates"`
}

// ParsePolicy decodes a YAML gate policy.
func ParsePolicy(data []byte) (pipeline.Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse gate policy YAML: %w", err)
	}

	policy := make(pipeline.Policy, len(f.Gates))
	for _, g := range f.Gates {
		if _, dup := policy[g.Name]; dup {
			return nil, fmt.Errorf("gate %q is defined more than once", g.Name)
		}
		policy[g.Name] = g
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// LoadPolicy reads a YAML gate policy file and layers it over the defaults.
func LoadPolicy(path string) (pipeline.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gate policy %s: %w", path, err)
	}
	overrides, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return DefaultPolicy().Merge(overrides), nil
}

// DefaultPolicy returns the embedded gate policy.
func DefaultPolicy() pipeline.Policy {
	policy, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded gate policy is invalid: %v", err))
	}
	return policy
}
