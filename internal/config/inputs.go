package config

import "github.com/jonathan/process-pipelines/internal/types"

// Input defaults. Quality thresholds default to the gate policy.
const (
	DefaultTimeframe         = "3 years"
	DefaultMinimumConfidence = 80
)

// StrategyInputs configures a product-vision-strategy run.
type StrategyInputs struct {
	ProductName                 string `json:"productName" validate:"required"`
	Timeframe                   string `json:"timeframe"`
	MarketContext               string `json:"marketContext,omitempty"`
	IncludeFinancialProjections bool   `json:"includeFinancialProjections"`
	RequireAlignment            *bool  `json:"requireAlignment"`
	// QualityThreshold overrides the strategy-quality gate threshold when set.
	QualityThreshold *float64 `json:"qualityThreshold,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// ApplyDefaults fills unset fields.
func (in *StrategyInputs) ApplyDefaults() {
	if in.Timeframe == "" {
		in.Timeframe = DefaultTimeframe
	}
	if in.RequireAlignment == nil {
		in.RequireAlignment = boolPtr(true)
	}
}

// AlignmentRequired reports whether the stakeholder-alignment phase runs.
func (in *StrategyInputs) AlignmentRequired() bool {
	return in.RequireAlignment == nil || *in.RequireAlignment
}

// PrioritizationInputs configures a rice-prioritization run. The feature count
// is not validated here; the pipeline's minimum-features gate owns that check.
type PrioritizationInputs struct {
	ProductName          string          `json:"productName,omitempty"`
	Features             []types.Feature `json:"features" validate:"dive"`
	MinimumConfidence    *int            `json:"minimumConfidence,omitempty" validate:"omitempty,gte=0,lte=100"`
	ApplyStrategicFilter bool            `json:"applyStrategicFilter"`
	StrategicGoals       []string        `json:"strategicGoals,omitempty"`
	IncludeSensitivity   *bool           `json:"includeSensitivity"`
	VolatilityThreshold  int             `json:"volatilityThreshold" validate:"gte=0"`
	// QualityThreshold overrides the prioritization-quality gate threshold when set.
	QualityThreshold *float64 `json:"qualityThreshold,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// ApplyDefaults fills unset fields. An explicit zero is kept.
func (in *PrioritizationInputs) ApplyDefaults() {
	if in.MinimumConfidence == nil {
		in.MinimumConfidence = intPtr(DefaultMinimumConfidence)
	}
	if in.IncludeSensitivity == nil {
		in.IncludeSensitivity = boolPtr(true)
	}
}

// ConfidenceFloor returns the minimum confidence below which a feature is
// surfaced for review.
func (in *PrioritizationInputs) ConfidenceFloor() int {
	if in.MinimumConfidence == nil {
		return DefaultMinimumConfidence
	}
	return *in.MinimumConfidence
}

// SensitivityEnabled reports whether the sensitivity-analysis phase runs.
func (in *PrioritizationInputs) SensitivityEnabled() bool {
	return in.IncludeSensitivity == nil || *in.IncludeSensitivity
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}
