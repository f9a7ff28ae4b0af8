package rice

import (
	"fmt"

	"github.com/jonathan/process-pipelines/internal/types"
)

// Scenario perturbs a single feature's inputs.
type Scenario struct {
	Name  string
	Apply func(types.Feature) types.Feature
}

// DefaultScenarios returns the standard one-at-a-time scenarios.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "impact +1 level",
			Apply: func(f types.Feature) types.Feature {
				f.Impact = NextImpact(f.Impact)
				return f
			},
		},
		{
			Name: "confidence->50%",
			Apply: func(f types.Feature) types.Feature {
				f.Confidence = 50
				return f
			},
		},
		{
			Name: "effort x2",
			Apply: func(f types.Feature) types.Feature {
				f.Effort *= 2
				return f
			},
		},
	}
}

// Sensitivity re-ranks the features under each scenario. A scenario is applied
// to one feature at a time and that feature's new rank is compared with its
// base rank. A feature is volatile when any shift exceeds threshold, and stable
// when no scenario moves it at all.
func Sensitivity(features []types.Feature, scenarios []Scenario, threshold int) (*types.SensitivityReport, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("volatility threshold must be non-negative, got %d", threshold)
	}

	base, err := Rank(features)
	if err != nil {
		return nil, err
	}
	baseRank := rankByPosition(base)

	maxShift := make([]int, len(features))
	report := &types.SensitivityReport{
		Threshold: threshold,
		Scenarios: make([]types.ScenarioResult, 0, len(scenarios)),
		Features:  make([]types.FeatureSensitivity, 0, len(features)),
		Volatile:  []string{},
		Stable:    []string{},
	}

	for _, sc := range scenarios {
		result := types.ScenarioResult{Scenario: sc.Name, Changes: []types.RankChange{}}
		for i := range features {
			perturbed := make([]types.Feature, len(features))
			copy(perturbed, features)
			perturbed[i] = sc.Apply(features[i])

			reranked, err := Rank(perturbed)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			newRank, newScore := lookup(reranked, i)
			delta := baseRank[i] - newRank
			if abs(delta) > maxShift[i] {
				maxShift[i] = abs(delta)
			}
			if delta != 0 {
				result.Changes = append(result.Changes, types.RankChange{
					FeatureID: features[i].ID,
					BaseRank:  baseRank[i],
					NewRank:   newRank,
					Delta:     delta,
					NewScore:  newScore,
				})
			}
		}
		report.Scenarios = append(report.Scenarios, result)
	}

	for i, f := range features {
		fs := types.FeatureSensitivity{
			FeatureID: f.ID,
			MaxShift:  maxShift[i],
			Stable:    maxShift[i] == 0,
			Volatile:  maxShift[i] > threshold,
		}
		report.Features = append(report.Features, fs)
		if fs.Volatile {
			report.Volatile = append(report.Volatile, f.ID)
		}
		if fs.Stable {
			report.Stable = append(report.Stable, f.ID)
		}
	}
	return report, nil
}

// rankByPosition maps input position to rank.
func rankByPosition(ranked []types.RankedFeature) []int {
	out := make([]int, len(ranked))
	for _, rf := range ranked {
		out[rf.Position] = rf.Rank
	}
	return out
}

func lookup(ranked []types.RankedFeature, position int) (int, float64) {
	for _, rf := range ranked {
		if rf.Position == position {
			return rf.Rank, rf.Score
		}
	}
	return 0, 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
