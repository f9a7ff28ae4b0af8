//nolint:revive // types is a standard Go package name pattern
package types

// Feature is a candidate for RICE prioritization.
// Confidence is a percentage (50, 80 or 100); scoring uses it as a fraction.
type Feature struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Reach       int64   `json:"reach" validate:"gte=0"`
	Impact      float64 `json:"impact" validate:"gt=0"`
	Confidence  int     `json:"confidence" validate:"oneof=50 80 100"`
	Effort      float64 `json:"effort" validate:"gt=0"`
}

// RankedFeature is a feature with its computed RICE score and 1-based rank.
type RankedFeature struct {
	Feature
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	Position int     `json:"position"`
}

// Tier names
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// TieredFeature is a ranked feature assigned to a priority tier.
type TieredFeature struct {
	RankedFeature
	Tier     string `json:"tier"`
	Promoted bool   `json:"promoted"`
}

// StrategicOverride promotes a feature to the high tier regardless of score.
type StrategicOverride struct {
	FeatureID string `json:"featureId"`
	Rationale string `json:"rationale"`
}

// RankChange records how a single feature moved under one scenario.
type RankChange struct {
	FeatureID string  `json:"featureId"`
	BaseRank  int     `json:"baseRank"`
	NewRank   int     `json:"newRank"`
	Delta     int     `json:"delta"`
	NewScore  float64 `json:"newScore"`
}

// ScenarioResult holds the rank movements produced by one sensitivity scenario.
type ScenarioResult struct {
	Scenario string       `json:"scenario"`
	Changes  []RankChange `json:"changes"`
}

// FeatureSensitivity summarizes one feature across all scenarios.
type FeatureSensitivity struct {
	FeatureID string `json:"featureId"`
	MaxShift  int    `json:"maxShift"`
	Stable    bool   `json:"stable"`
	Volatile  bool   `json:"volatile"`
}

// SensitivityReport is the output of scenario-based re-ranking.
type SensitivityReport struct {
	Threshold int                  `json:"threshold"`
	Scenarios []ScenarioResult     `json:"scenarios"`
	Features  []FeatureSensitivity `json:"features"`
	Volatile  []string             `json:"volatile"`
	Stable    []string             `json:"stable"`
}
