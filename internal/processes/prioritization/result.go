package prioritization

import (
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes/document"
	"github.com/jonathan/process-pipelines/internal/rice"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Result is the composed record of a completed rice-prioritization run.
type Result struct {
	Success     bool                      `json:"success"`
	ProductName string                    `json:"productName,omitempty"`
	Counts      Counts                    `json:"counts"`
	Ranking     []RankingEntry            `json:"ranking"`
	Overrides   []types.StrategicOverride `json:"overrides"`
	Sensitivity *SensitivitySummary       `json:"sensitivity"`
	Quality     *types.QualitySummary     `json:"quality"`
	ReportPath  string                    `json:"reportPath"`
	Artifacts   []types.Artifact          `json:"artifacts"`
	Metadata    types.RunMetadata         `json:"metadata"`
}

// Counts are the sizes of the phase outputs. Volatile and Stable are null when
// sensitivity analysis was skipped.
type Counts struct {
	Features  int  `json:"features"`
	High      int  `json:"high"`
	Medium    int  `json:"medium"`
	Low       int  `json:"low"`
	Overrides int  `json:"overrides"`
	Volatile  *int `json:"volatile"`
	Stable    *int `json:"stable"`
}

// RankingEntry is one feature of the final ranking.
type RankingEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	Tier     string  `json:"tier"`
	Promoted bool    `json:"promoted"`
}

// SensitivitySummary lists which features moved under the scenarios.
type SensitivitySummary struct {
	Threshold int      `json:"threshold"`
	Scenarios []string `json:"scenarios"`
	Volatile  []string `json:"volatile"`
	Stable    []string `json:"stable"`
}

func compose(run *pipeline.Run, s *State) (*Result, error) {
	tiers := rice.CountTiers(s.Tiered)
	r := &Result{
		Success:     true,
		ProductName: s.Inputs.ProductName,
		Counts: Counts{
			Features:  len(s.Features),
			High:      tiers[types.TierHigh],
			Medium:    tiers[types.TierMedium],
			Low:       tiers[types.TierLow],
			Overrides: len(s.Overrides),
		},
		Ranking:    make([]RankingEntry, 0, len(s.Tiered)),
		Overrides:  s.Overrides,
		Quality:    document.Summary(run, config.GatePrioritizationQuality, s.Quality, run.Revised("prioritization-review")),
		ReportPath: s.Report.Path,
		Artifacts:  run.Ledger.List(),
		Metadata:   run.Metadata(s.Inputs),
	}
	if r.Overrides == nil {
		r.Overrides = []types.StrategicOverride{}
	}

	for _, tf := range s.Tiered {
		r.Ranking = append(r.Ranking, RankingEntry{
			ID:       tf.ID,
			Name:     tf.Name,
			Score:    tf.Score,
			Rank:     tf.Rank,
			Tier:     tf.Tier,
			Promoted: tf.Promoted,
		})
	}

	if s.Sensitivity != nil {
		volatile, stable := len(s.Sensitivity.Volatile), len(s.Sensitivity.Stable)
		r.Counts.Volatile = &volatile
		r.Counts.Stable = &stable

		names := make([]string, len(s.Sensitivity.Scenarios))
		for i, sc := range s.Sensitivity.Scenarios {
			names[i] = sc.Scenario
		}
		r.Sensitivity = &SensitivitySummary{
			Threshold: s.Sensitivity.Threshold,
			Scenarios: names,
			Volatile:  s.Sensitivity.Volatile,
			Stable:    s.Sensitivity.Stable,
		}
	}
	return r, nil
}
