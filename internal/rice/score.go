// Package rice computes RICE (Reach x Impact x Confidence / Effort) scores,
// rankings, priority tiers and scenario-based sensitivity.
package rice

import (
	"math"
	"slices"

	"github.com/jonathan/process-pipelines/internal/types"
)

// ImpactScale is the ordered set of allowed impact values.
var ImpactScale = []float64{0.25, 0.5, 1, 2, 3}

// ConfidenceLevels is the set of allowed confidence percentages.
var ConfidenceLevels = []int{50, 80, 100}

// Validate checks a single feature against the RICE input rules.
func Validate(f types.Feature) error {
	if f.ID == "" {
		return &InputError{Field: "id", Message: "is required"}
	}
	if f.Reach < 0 {
		return &InputError{FeatureID: f.ID, Field: "reach", Message: "must be non-negative"}
	}
	if !slices.Contains(ImpactScale, f.Impact) {
		return &InputError{FeatureID: f.ID, Field: "impact", Message: "must be one of 0.25, 0.5, 1, 2, 3"}
	}
	if !slices.Contains(ConfidenceLevels, f.Confidence) {
		return &InputError{FeatureID: f.ID, Field: "confidence", Message: "must be one of 50, 80, 100"}
	}
	if f.Effort <= 0 || math.IsNaN(f.Effort) || math.IsInf(f.Effort, 0) {
		return &InputError{FeatureID: f.ID, Field: "effort", Message: "must be strictly positive"}
	}
	return nil
}

// Score returns reach * impact * (confidence/100) / effort.
func Score(f types.Feature) (float64, error) {
	if err := Validate(f); err != nil {
		return 0, err
	}
	return float64(f.Reach) * f.Impact * (float64(f.Confidence) / 100) / f.Effort, nil
}

// Rank scores every feature and orders them by score, highest first.
// Equal scores keep their input order, so the result is a deterministic total order.
func Rank(features []types.Feature) ([]types.RankedFeature, error) {
	seen := make(map[string]bool, len(features))
	ranked := make([]types.RankedFeature, 0, len(features))
	for i, f := range features {
		if seen[f.ID] {
			return nil, &InputError{FeatureID: f.ID, Field: "id", Message: "is duplicated"}
		}
		seen[f.ID] = true

		score, err := Score(f)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, types.RankedFeature{Feature: f, Score: score, Position: i})
	}

	slices.SortStableFunc(ranked, func(a, b types.RankedFeature) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// NextImpact returns the next level up on the impact scale, capped at the top.
func NextImpact(impact float64) float64 {
	for i, v := range ImpactScale {
		if v == impact {
			if i+1 < len(ImpactScale) {
				return ImpactScale[i+1]
			}
			return v
		}
	}
	return impact
}
