// Package llm provides the Gemini-backed client and the task executor that
// answers pipeline phases with model-generated JSON.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for mechanical tasks: normalization, classification
	TierLite ModelTier = "lite"
	// TierStandard is for structured analysis and scoring
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form writing and revision
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the only supported provider.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// Temperature applies to every generation call.
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: 0.2,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}

// taskTiers maps executor tasks to model tiers. Unlisted tasks use TierStandard.
var taskTiers = map[string]ModelTier{
	"feature-collection":  TierLite,
	"strategic-alignment": TierStandard,
	"document-assembly":   TierAdvanced,
	"report-assembly":     TierAdvanced,
	"revise-strategy":     TierAdvanced,
	"revise-report":       TierAdvanced,
	"executive-summary":   TierAdvanced,
}

// TierFor returns the model tier used for taskName.
func TierFor(taskName string) ModelTier {
	if tier, ok := taskTiers[taskName]; ok {
		return tier
	}
	return TierStandard
}
