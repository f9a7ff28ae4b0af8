// Package prioritization defines the rice-prioritization process: feature
// collection, RICE scoring, optional strategic overrides and sensitivity
// analysis, tiering, and a scored, reviewable report.
package prioritization

import (
	"context"
	"fmt"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/pipeline/steps"
	"github.com/jonathan/process-pipelines/internal/processes/document"
	"github.com/jonathan/process-pipelines/internal/rice"
	"github.com/jonathan/process-pipelines/internal/schemas"
	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Revisable document key and document kind
const (
	ReportKey  = "prioritization-report"
	reportKind = "prioritization"
)

const minimumFeaturesRecommendation = "Provide at least 3 features, each with reach, impact, confidence and effort, and start a new run."

// State is accumulated across the phases of one run.
type State struct {
	Inputs      config.PrioritizationInputs
	Features    []types.Feature
	Ranked      []types.RankedFeature
	Overrides   []types.StrategicOverride
	Sensitivity *types.SensitivityReport
	Tiered      []types.TieredFeature
	Report      types.Document
	Quality     *types.QualityScore
	Changes     []string
}

// NewState seeds the run state from validated inputs.
func NewState(in config.PrioritizationInputs) *State {
	in.ApplyDefaults()
	return &State{Inputs: in}
}

// LowConfidence returns the features whose confidence is below the configured minimum.
func (s *State) LowConfidence() []types.Feature {
	var low []types.Feature
	for _, f := range s.Features {
		if f.Confidence < s.Inputs.ConfidenceFloor() {
			low = append(low, f)
		}
	}
	return low
}

type collectionInput struct {
	ProductName string          `json:"productName,omitempty"`
	Features    []types.Feature `json:"features"`
}

type alignmentInput struct {
	ProductName    string                `json:"productName,omitempty"`
	StrategicGoals []string              `json:"strategicGoals"`
	Ranking        []types.RankedFeature `json:"ranking"`
}

type reportInput struct {
	ProductName string                    `json:"productName,omitempty"`
	Tiers       []types.TieredFeature     `json:"tiers"`
	Overrides   []types.StrategicOverride `json:"overrides"`
	Sensitivity *types.SensitivityReport  `json:"sensitivity"`
}

// New builds the pipeline. policy supplies gate modes and thresholds; a
// qualityThreshold in the inputs replaces the prioritization-quality threshold.
func New(in config.PrioritizationInputs, policy pipeline.Policy) *pipeline.Pipeline[State, Result] {
	in.ApplyDefaults()
	if policy == nil {
		policy = config.DefaultPolicy()
	}

	if in.QualityThreshold != nil {
		policy = policy.WithThreshold(config.GatePrioritizationQuality, *in.QualityThreshold)
	}

	return &pipeline.Pipeline[State, Result]{
		Name:    steps.ProcessPrioritization,
		Gates:   policy,
		Compose: compose,
		Phases: []pipeline.Phase[State]{
			{
				Name:  "feature-collection",
				Title: "Collecting features",
				Condition: pipeline.HardStop(config.GateMinimumFeatures, func(s *State) float64 {
					return float64(len(s.Inputs.Features))
				}, minimumFeaturesRecommendation),
				Run: runCollection,
				Checkpoint: &pipeline.Checkpoint[State]{
					Name:     "low-confidence-review",
					Title:    "Low confidence review",
					Question: "Some features are below the minimum confidence. Continue with these estimates?",
					When:     func(s *State) bool { return len(s.LowConfidence()) > 0 },
					Summary:  lowConfidenceSummary,
				},
			},
			{
				Name:  "rice-scoring",
				Title: "Scoring features",
				Run:   runScoring,
			},
			{
				Name:  "strategic-alignment",
				Title: "Applying strategic filter",
				Condition: pipeline.Flag("applyStrategicFilter", func(s *State) bool {
					return s.Inputs.ApplyStrategicFilter
				}),
				Run:  runStrategicAlignment,
				Skip: func(s *State) { s.Overrides = []types.StrategicOverride{} },
			},
			{
				Name:  "sensitivity-analysis",
				Title: "Analyzing ranking sensitivity",
				Condition: pipeline.Flag("includeSensitivity", func(s *State) bool {
					return s.Inputs.SensitivityEnabled()
				}),
				Run:  runSensitivity,
				Skip: func(s *State) { s.Sensitivity = nil },
			},
			{
				Name:  "tiering",
				Title: "Assigning priority tiers",
				Run:   runTiering,
			},
			{
				Name:  "report-assembly",
				Title: "Assembling prioritization report",
				Run:   runReport,
			},
			{
				Name:  "quality-scoring",
				Title: "Scoring report quality",
				Run: func(ctx context.Context, rc *pipeline.RunContext[State]) error {
					score, err := document.Score(ctx, rc, reportKind, config.GatePrioritizationQuality, rc.State.Report, nil)
					rc.State.Quality = score
					return err
				},
				Checkpoint: &pipeline.Checkpoint[State]{
					Name:     "prioritization-review",
					Title:    "Prioritization review",
					Question: "Review the ranking, tiers and report. Approve, or request a revision?",
					Summary:  reviewSummary,
					Review:   reviewReport,
					Revision: &pipeline.Revision[State]{
						Phase: "revise-report",
						Run:   runRevision,
					},
				},
			},
		},
	}
}

func runCollection(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, inv, err := task.Invoke[collectionInput, types.FeatureCollection](ctx, rc.Invoker, "feature-collection", collectionInput{
		ProductName: s.Inputs.ProductName,
		Features:    s.Inputs.Features,
	})
	if err != nil {
		return err
	}

	var violations []schemas.FieldError
	for i, f := range out.Features {
		if err := rice.Validate(f); err != nil {
			violations = append(violations, schemas.FieldError{Field: fmt.Sprintf("features.%d", i), Message: err.Error()})
		}
	}
	if len(violations) > 0 {
		return &task.SchemaViolationError{Task: inv.Task, EffectKey: inv.EffectKey, Violations: violations}
	}
	s.Features = out.Features

	// Normalization may drop features, so the count is checked again.
	_, err = rc.Gate(config.GateMinimumFeatures, float64(len(s.Features)))
	return err
}

func runScoring(ctx context.Context, rc *pipeline.RunContext[State]) error {
	ranked, err := rice.Rank(rc.State.Features)
	if err != nil {
		return &pipeline.ValidationError{
			Phase:          rc.Phase(),
			Message:        err.Error(),
			Recommendation: "Give every feature a unique id and valid RICE inputs, then start a new run.",
		}
	}
	rc.State.Ranked = ranked
	rc.Printer.PrintRanking(ranked)

	_, err = rc.SaveJSONArtifact(ctx, "rice-scores.json", "RICE scores", ranked)
	return err
}

func runStrategicAlignment(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, inv, err := task.Invoke[alignmentInput, types.StrategicAlignment](ctx, rc.Invoker, "strategic-alignment", alignmentInput{
		ProductName:    s.Inputs.ProductName,
		StrategicGoals: s.Inputs.StrategicGoals,
		Ranking:        s.Ranked,
	})
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(s.Features))
	for _, f := range s.Features {
		known[f.ID] = true
	}
	var violations []schemas.FieldError
	for i, o := range out.Overrides {
		if !known[o.FeatureID] {
			violations = append(violations, schemas.FieldError{
				Field:   fmt.Sprintf("overrides.%d.featureId", i),
				Message: fmt.Sprintf("unknown feature %q", o.FeatureID),
			})
		}
	}
	if len(violations) > 0 {
		return &task.SchemaViolationError{Task: inv.Task, EffectKey: inv.EffectKey, Violations: violations}
	}

	s.Overrides = out.Overrides
	_, err = rc.SaveJSONArtifact(ctx, "strategic-overrides.json", "Strategic overrides", out)
	return err
}

func runSensitivity(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	report, err := rice.Sensitivity(s.Features, rice.DefaultScenarios(), s.Inputs.VolatilityThreshold)
	if err != nil {
		return err
	}
	s.Sensitivity = report
	rc.Printer.PrintSensitivity(report)

	_, err = rc.SaveJSONArtifact(ctx, "sensitivity.json", "Sensitivity analysis", report)
	return err
}

func runTiering(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	promoted := make(map[string]bool, len(s.Overrides))
	for _, o := range s.Overrides {
		promoted[o.FeatureID] = true
	}
	s.Tiered = rice.Tier(s.Ranked, promoted)
	rc.Printer.PrintTiers(s.Tiered)

	_, err := rc.SaveJSONArtifact(ctx, "tiers.json", "Priority tiers", s.Tiered)
	return err
}

func runReport(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	authored, _, err := task.Invoke[reportInput, types.AuthoredDocument](ctx, rc.Invoker, "report-assembly", reportInput{
		ProductName: s.Inputs.ProductName,
		Tiers:       s.Tiered,
		Overrides:   s.Overrides,
		Sensitivity: s.Sensitivity,
	})
	if err != nil {
		return err
	}
	doc, err := document.Register(ctx, rc, ReportKey, "Prioritization report", authored)
	if err != nil {
		return err
	}
	s.Report = doc
	return nil
}

// reviewReport revises when the reviewer asks for it, or when the quality gate
// failed and the reviewer resumed without feedback of their own.
func reviewReport(run *pipeline.Run, s *State, resumed checkpoint.Resumed) *types.RevisionFeedback {
	if resumed.Feedback != nil {
		if !resumed.Feedback.RevisionsNeeded {
			return nil
		}
		return &types.RevisionFeedback{
			Source:   "reviewer",
			Comments: resumed.Feedback.Comments,
			Concerns: resumed.Feedback.Concerns,
		}
	}
	if !document.GateFailed(run, config.GatePrioritizationQuality) || s.Quality == nil {
		return nil
	}

	q := s.Quality.Score
	fb := &types.RevisionFeedback{Source: "quality-scoring", Quality: &q, Concerns: []types.Concern{}}
	for _, rec := range s.Quality.Recommendations {
		fb.Concerns = append(fb.Concerns, types.Concern{Stakeholder: "quality-review", Concern: rec, Severity: types.SeverityMedium})
	}
	return fb
}

func runRevision(ctx context.Context, rc *pipeline.RunContext[State], feedback types.RevisionFeedback) error {
	s := rc.State
	doc, changes, err := document.Revise(ctx, rc, "revise-report", ReportKey, reportKind, s.Report, feedback)
	if err != nil {
		return err
	}
	s.Report = doc
	s.Changes = changes

	score, err := document.Score(ctx, rc, reportKind, config.GatePrioritizationQuality, doc, nil)
	if score != nil {
		s.Quality = score
	}
	return err
}

type lowConfidenceFeature struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

func lowConfidenceSummary(_ *pipeline.Run, s *State) any {
	low := s.LowConfidence()
	features := make([]lowConfidenceFeature, 0, len(low))
	for _, f := range low {
		features = append(features, lowConfidenceFeature{ID: f.ID, Name: f.Name, Confidence: f.Confidence})
	}
	return map[string]any{
		"minimumConfidence": s.Inputs.ConfidenceFloor(),
		"features":          features,
	}
}

func reviewSummary(run *pipeline.Run, s *State) any {
	counts := rice.CountTiers(s.Tiered)
	return map[string]any{
		"reportPath": s.Report.Path,
		"quality":    document.Summary(run, config.GatePrioritizationQuality, s.Quality, false),
		"top":        topN(s.Ranked, 3),
		"tiers":      counts,
	}
}

func topN(ranked []types.RankedFeature, n int) []string {
	n = min(n, len(ranked))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = ranked[i].ID
	}
	return ids
}
