package strategy

import (
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/processes/document"
	"github.com/jonathan/process-pipelines/internal/types"
)

// Result is the composed record of a completed product-vision-strategy run.
type Result struct {
	Success      bool                  `json:"success"`
	ProductName  string                `json:"productName"`
	Timeframe    string                `json:"timeframe"`
	Vision       string                `json:"vision"`
	Counts       Counts                `json:"counts"`
	Financials   *FinancialSummary     `json:"financials"`
	Quality      *types.QualitySummary `json:"quality"`
	Alignment    *AlignmentSummary     `json:"alignment"`
	DocumentPath string                `json:"documentPath"`
	Artifacts    []types.Artifact      `json:"artifacts"`
	Metadata     types.RunMetadata     `json:"metadata"`
}

// Counts are the sizes of the phase outputs.
type Counts struct {
	Segments     int `json:"segments"`
	Competitors  int `json:"competitors"`
	Pillars      int `json:"pillars"`
	Milestones   int `json:"milestones"`
	KeyDecisions int `json:"keyDecisions"`
}

// FinancialSummary is present only when financial projections ran.
type FinancialSummary struct {
	Years              int     `json:"years"`
	InvestmentRequired float64 `json:"investmentRequired"`
	BreakEvenYear      int     `json:"breakEvenYear"`
}

// AlignmentSummary is present only when stakeholder alignment ran.
type AlignmentSummary struct {
	Aligned      bool `json:"aligned"`
	Concerns     int  `json:"concerns"`
	HighSeverity int  `json:"highSeverity"`
}

func compose(run *pipeline.Run, s *State) (*Result, error) {
	r := &Result{
		Success:      true,
		ProductName:  s.Inputs.ProductName,
		Timeframe:    s.Inputs.Timeframe,
		Quality:      document.Summary(run, config.GateStrategyQuality, s.Quality, run.Revised("stakeholder-alignment")),
		DocumentPath: s.Document.Path,
		Artifacts:    run.Ledger.List(),
		Metadata:     run.Metadata(s.Inputs),
	}
	if s.Vision != nil {
		r.Vision = s.Vision.VisionStatement
	}
	if s.Analysis != nil {
		r.Counts.Segments = len(s.Analysis.Segments)
		r.Counts.Competitors = len(s.Analysis.Competitors)
	}
	if s.Strategy != nil {
		r.Counts.Pillars = len(s.Strategy.Pillars)
	}
	if s.Roadmap != nil {
		r.Counts.Milestones = len(s.Roadmap.Milestones)
	}
	if s.Summary != nil {
		r.Counts.KeyDecisions = len(s.Summary.KeyDecisions)
	}
	if s.Financials != nil {
		r.Financials = &FinancialSummary{
			Years:              len(s.Financials.RevenueByYear),
			InvestmentRequired: s.Financials.InvestmentRequired,
			BreakEvenYear:      s.Financials.BreakEvenYear,
		}
	}
	if s.Alignment != nil {
		r.Alignment = &AlignmentSummary{
			Aligned:      s.Alignment.Aligned,
			Concerns:     len(s.Alignment.Concerns),
			HighSeverity: len(s.Alignment.HighSeverity()),
		}
	}
	return r, nil
}
