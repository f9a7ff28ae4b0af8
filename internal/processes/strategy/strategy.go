// Package strategy defines the product-vision-strategy process: market analysis
// through an executive summary, with a scored, reviewable strategy document.
package strategy

import (
	"context"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/pipeline/steps"
	"github.com/jonathan/process-pipelines/internal/processes/document"
	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Revisable document key and document kind
const (
	DocumentKey  = "strategy-document"
	documentKind = "strategy"
)

// State is accumulated across the phases of one run.
type State struct {
	Inputs     config.StrategyInputs
	Analysis   *types.MarketAnalysis
	Vision     *types.Vision
	Strategy   *types.Strategy
	Financials *types.Financials
	Roadmap    *types.Roadmap
	Document   types.Document
	Quality    *types.QualityScore
	Alignment  *types.AlignmentReview
	Summary    *types.ExecutiveSummary
	Changes    []string
}

// NewState seeds the run state from validated inputs.
func NewState(in config.StrategyInputs) *State {
	in.ApplyDefaults()
	return &State{Inputs: in}
}

type analysisInput struct {
	ProductName   string `json:"productName"`
	Timeframe     string `json:"timeframe"`
	MarketContext string `json:"marketContext,omitempty"`
}

type visionInput struct {
	ProductName string                `json:"productName"`
	Timeframe   string                `json:"timeframe"`
	Analysis    *types.MarketAnalysis `json:"marketAnalysis"`
}

type strategyInput struct {
	ProductName string                `json:"productName"`
	Timeframe   string                `json:"timeframe"`
	Analysis    *types.MarketAnalysis `json:"marketAnalysis"`
	Vision      *types.Vision         `json:"vision"`
}

type financialsInput struct {
	ProductName string                `json:"productName"`
	Timeframe   string                `json:"timeframe"`
	Analysis    *types.MarketAnalysis `json:"marketAnalysis"`
	Strategy    *types.Strategy       `json:"strategy"`
}

type roadmapInput struct {
	ProductName string            `json:"productName"`
	Timeframe   string            `json:"timeframe"`
	Strategy    *types.Strategy   `json:"strategy"`
	Financials  *types.Financials `json:"financials"`
}

type assemblyInput struct {
	ProductName string                `json:"productName"`
	Timeframe   string                `json:"timeframe"`
	Analysis    *types.MarketAnalysis `json:"marketAnalysis"`
	Vision      *types.Vision         `json:"vision"`
	Strategy    *types.Strategy       `json:"strategy"`
	Financials  *types.Financials     `json:"financials"`
	Roadmap     *types.Roadmap        `json:"roadmap"`
}

type alignmentInput struct {
	ProductName string              `json:"productName"`
	Document    types.Document      `json:"document"`
	Quality     *types.QualityScore `json:"quality"`
}

type summaryInput struct {
	ProductName string                 `json:"productName"`
	Document    types.Document         `json:"document"`
	Quality     *types.QualityScore    `json:"quality"`
	Alignment   *types.AlignmentReview `json:"alignment"`
}

// New builds the pipeline. policy supplies gate modes and thresholds; a
// qualityThreshold in the inputs replaces the strategy-quality threshold.
func New(in config.StrategyInputs, policy pipeline.Policy) *pipeline.Pipeline[State, Result] {
	in.ApplyDefaults()
	if policy == nil {
		policy = config.DefaultPolicy()
	}

	if in.QualityThreshold != nil {
		policy = policy.WithThreshold(config.GateStrategyQuality, *in.QualityThreshold)
	}

	return &pipeline.Pipeline[State, Result]{
		Name:    steps.ProcessStrategy,
		Gates:   policy,
		Compose: compose,
		Phases: []pipeline.Phase[State]{
			{
				Name:  "market-analysis",
				Title: "Analyzing market",
				Run:   runMarketAnalysis,
			},
			{
				Name:  "vision-crafting",
				Title: "Crafting vision",
				Run:   runVision,
			},
			{
				Name:  "strategy-formulation",
				Title: "Formulating strategy",
				Run:   runStrategy,
			},
			{
				Name:  "financial-projections",
				Title: "Projecting financials",
				Condition: pipeline.Flag("includeFinancialProjections", func(s *State) bool {
					return s.Inputs.IncludeFinancialProjections
				}),
				Run:  runFinancials,
				Skip: func(s *State) { s.Financials = nil },
			},
			{
				Name:  "roadmap-planning",
				Title: "Planning roadmap",
				Run:   runRoadmap,
			},
			{
				Name:  "document-assembly",
				Title: "Assembling strategy document",
				Run:   runAssembly,
				Checkpoint: &pipeline.Checkpoint[State]{
					Name:     "strategy-draft-review",
					Title:    "Strategy draft review",
					Question: "Review the assembled strategy document. Continue to quality scoring?",
					Summary:  draftSummary,
				},
			},
			{
				Name:  "quality-scoring",
				Title: "Scoring strategy quality",
				Run: func(ctx context.Context, rc *pipeline.RunContext[State]) error {
					score, err := document.Score(ctx, rc, documentKind, config.GateStrategyQuality, rc.State.Document, nil)
					rc.State.Quality = score
					return err
				},
			},
			{
				Name:  "stakeholder-alignment",
				Title: "Checking stakeholder alignment",
				Condition: pipeline.Flag("requireAlignment", func(s *State) bool {
					return s.Inputs.AlignmentRequired()
				}),
				Run:  runAlignment,
				Skip: func(s *State) { s.Alignment = nil },
				Checkpoint: &pipeline.Checkpoint[State]{
					Name:     "stakeholder-alignment",
					Title:    "Stakeholder alignment",
					Question: "Stakeholder concerns and the quality verdict are attached. Approve, or request a revision?",
					Summary:  alignmentSummary,
					Review:   reviewAlignment,
					Revision: &pipeline.Revision[State]{
						Phase: "revise-strategy",
						Run:   runRevision,
					},
				},
			},
			{
				Name:  "executive-summary",
				Title: "Writing executive summary",
				Run:   runExecutiveSummary,
				Checkpoint: &pipeline.Checkpoint[State]{
					Name:     "final-approval",
					Title:    "Final approval",
					Question: "Approve the final strategy and executive summary?",
					Summary:  finalSummary,
				},
			},
		},
	}
}

func runMarketAnalysis(ctx context.Context, rc *pipeline.RunContext[State]) error {
	in := rc.State.Inputs
	out, _, err := task.Invoke[analysisInput, types.MarketAnalysis](ctx, rc.Invoker, "market-analysis", analysisInput{
		ProductName:   in.ProductName,
		Timeframe:     in.Timeframe,
		MarketContext: in.MarketContext,
	})
	if err != nil {
		return err
	}
	rc.State.Analysis = out
	rc.Printer.PrintMarketAnalysis(out)

	md := renderMarketAnalysis(in.ProductName, out)
	_, err = rc.SaveArtifact(ctx, "market-analysis.md", types.FormatMarkdown, "Market analysis", []byte(md))
	return err
}

func runVision(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[visionInput, types.Vision](ctx, rc.Invoker, "vision-crafting", visionInput{
		ProductName: s.Inputs.ProductName,
		Timeframe:   s.Inputs.Timeframe,
		Analysis:    s.Analysis,
	})
	if err != nil {
		return err
	}
	s.Vision = out
	rc.Printer.PrintVision(out)

	md := renderVision(s.Inputs.ProductName, out)
	_, err = rc.SaveArtifact(ctx, "vision.md", types.FormatMarkdown, "Product vision", []byte(md))
	return err
}

func runStrategy(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[strategyInput, types.Strategy](ctx, rc.Invoker, "strategy-formulation", strategyInput{
		ProductName: s.Inputs.ProductName,
		Timeframe:   s.Inputs.Timeframe,
		Analysis:    s.Analysis,
		Vision:      s.Vision,
	})
	if err != nil {
		return err
	}
	s.Strategy = out
	rc.Printer.PrintStrategy(out)
	return nil
}

func runFinancials(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[financialsInput, types.Financials](ctx, rc.Invoker, "financial-projections", financialsInput{
		ProductName: s.Inputs.ProductName,
		Timeframe:   s.Inputs.Timeframe,
		Analysis:    s.Analysis,
		Strategy:    s.Strategy,
	})
	if err != nil {
		return err
	}
	s.Financials = out
	_, err = rc.SaveJSONArtifact(ctx, "financial-projections.json", "Financial projections", out)
	return err
}

func runRoadmap(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[roadmapInput, types.Roadmap](ctx, rc.Invoker, "roadmap-planning", roadmapInput{
		ProductName: s.Inputs.ProductName,
		Timeframe:   s.Inputs.Timeframe,
		Strategy:    s.Strategy,
		Financials:  s.Financials,
	})
	if err != nil {
		return err
	}
	s.Roadmap = out
	rc.Printer.PrintRoadmap(out)
	return nil
}

func runAssembly(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	authored, _, err := task.Invoke[assemblyInput, types.AuthoredDocument](ctx, rc.Invoker, "document-assembly", assemblyInput{
		ProductName: s.Inputs.ProductName,
		Timeframe:   s.Inputs.Timeframe,
		Analysis:    s.Analysis,
		Vision:      s.Vision,
		Strategy:    s.Strategy,
		Financials:  s.Financials,
		Roadmap:     s.Roadmap,
	})
	if err != nil {
		return err
	}
	doc, err := document.Register(ctx, rc, DocumentKey, "Strategy document", authored)
	if err != nil {
		return err
	}
	s.Document = doc
	return nil
}

func runAlignment(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[alignmentInput, types.AlignmentReview](ctx, rc.Invoker, "stakeholder-alignment", alignmentInput{
		ProductName: s.Inputs.ProductName,
		Document:    s.Document,
		Quality:     s.Quality,
	})
	if err != nil {
		return err
	}
	s.Alignment = out
	rc.Printer.PrintAlignment(out)
	return nil
}

// reviewAlignment asks for a revision when stakeholders raised a high-severity
// concern, the quality gate failed, or the reviewer asked for one.
func reviewAlignment(run *pipeline.Run, s *State, resumed checkpoint.Resumed) *types.RevisionFeedback {
	high := s.Alignment.HighSeverity()
	failed := document.GateFailed(run, config.GateStrategyQuality)
	if len(high) == 0 && !failed && !resumed.RevisionsNeeded() {
		return nil
	}

	fb := &types.RevisionFeedback{Source: "stakeholder-alignment", Concerns: high}
	if fb.Concerns == nil {
		fb.Concerns = []types.Concern{}
	}
	if failed && s.Quality != nil {
		q := s.Quality.Score
		fb.Quality = &q
		for _, rec := range s.Quality.Recommendations {
			fb.Concerns = append(fb.Concerns, types.Concern{Stakeholder: "quality-review", Concern: rec, Severity: types.SeverityMedium})
		}
	}
	if resumed.Feedback != nil {
		fb.Source = "reviewer"
		fb.Comments = resumed.Feedback.Comments
		fb.Concerns = append(fb.Concerns, resumed.Feedback.Concerns...)
	}
	return fb
}

func runRevision(ctx context.Context, rc *pipeline.RunContext[State], feedback types.RevisionFeedback) error {
	s := rc.State
	doc, changes, err := document.Revise(ctx, rc, "revise-strategy", DocumentKey, documentKind, s.Document, feedback)
	if err != nil {
		return err
	}
	s.Document = doc
	s.Changes = changes

	score, err := document.Score(ctx, rc, documentKind, config.GateStrategyQuality, doc, nil)
	if score != nil {
		s.Quality = score
	}
	return err
}

func runExecutiveSummary(ctx context.Context, rc *pipeline.RunContext[State]) error {
	s := rc.State
	out, _, err := task.Invoke[summaryInput, types.ExecutiveSummary](ctx, rc.Invoker, "executive-summary", summaryInput{
		ProductName: s.Inputs.ProductName,
		Document:    s.Document,
		Quality:     s.Quality,
		Alignment:   s.Alignment,
	})
	if err != nil {
		return err
	}
	s.Summary = out

	md := renderExecutiveSummary(s.Inputs.ProductName, out)
	_, err = rc.SaveArtifact(ctx, "executive-summary.md", types.FormatMarkdown, "Executive summary", []byte(md))
	return err
}

func draftSummary(_ *pipeline.Run, s *State) any {
	return map[string]any{
		"productName":   s.Inputs.ProductName,
		"documentPath":  s.Document.Path,
		"segments":      len(s.Analysis.Segments),
		"pillars":       len(s.Strategy.Pillars),
		"milestones":    len(s.Roadmap.Milestones),
		"hasFinancials": s.Financials != nil,
	}
}

func alignmentSummary(run *pipeline.Run, s *State) any {
	return map[string]any{
		"documentPath":    s.Document.Path,
		"quality":         document.Summary(run, config.GateStrategyQuality, s.Quality, false),
		"aligned":         s.Alignment.Aligned,
		"concerns":        s.Alignment.Concerns,
		"revisionsNeeded": len(s.Alignment.HighSeverity()) > 0 || document.GateFailed(run, config.GateStrategyQuality),
	}
}

func finalSummary(run *pipeline.Run, s *State) any {
	return map[string]any{
		"documentPath": s.Document.Path,
		"revised":      run.Revised("stakeholder-alignment"),
		"keyDecisions": s.Summary.KeyDecisions,
	}
}
