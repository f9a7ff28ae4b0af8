//nolint:revive // types is a standard Go package name pattern
package types

// MarketAnalysis is the output of the market-analysis phase.
type MarketAnalysis struct {
	Segments      []MarketSegment `json:"segments"`
	Competitors   []Competitor    `json:"competitors"`
	Trends        []string        `json:"trends"`
	Opportunities []string        `json:"opportunities"`
}

// MarketSegment describes one addressable customer segment.
type MarketSegment struct {
	Name        string `json:"name"`
	Size        string `json:"size,omitempty"`
	Description string `json:"description,omitempty"`
}

// Competitor describes one competitor and its positioning.
type Competitor struct {
	Name        string `json:"name"`
	Positioning string `json:"positioning,omitempty"`
	Threat      string `json:"threat"`
}

// Vision is the output of the vision-crafting phase.
type Vision struct {
	VisionStatement  string   `json:"visionStatement"`
	Mission          string   `json:"mission"`
	TargetCustomers  []string `json:"targetCustomers"`
	ValueProposition string   `json:"valueProposition"`
}

// Strategy is the output of the strategy-formulation phase.
type Strategy struct {
	Pillars         []StrategicPillar `json:"pillars"`
	Differentiators []string          `json:"differentiators"`
}

// StrategicPillar is one strategic focus area.
type StrategicPillar struct {
	Name        string   `json:"name"`
	Objective   string   `json:"objective"`
	Initiatives []string `json:"initiatives"`
}

// Financials is the output of the optional financial-projections phase.
type Financials struct {
	RevenueByYear      []YearlyRevenue `json:"revenueByYear"`
	InvestmentRequired float64         `json:"investmentRequired"`
	BreakEvenYear      int             `json:"breakEvenYear"`
	Assumptions        []string        `json:"assumptions,omitempty"`
}

// YearlyRevenue is a single projected revenue figure.
type YearlyRevenue struct {
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
}

// Roadmap is the output of the roadmap-planning phase.
type Roadmap struct {
	Milestones []Milestone `json:"milestones"`
}

// Milestone is one roadmap entry.
type Milestone struct {
	Quarter string `json:"quarter"`
	Title   string `json:"title"`
	Pillar  string `json:"pillar"`
}

// AlignmentReview is the output of the stakeholder-alignment phase.
type AlignmentReview struct {
	Aligned  bool      `json:"aligned"`
	Concerns []Concern `json:"concerns"`
}

// HighSeverity returns the concerns marked high severity.
func (a *AlignmentReview) HighSeverity() []Concern {
	if a == nil {
		return nil
	}
	var high []Concern
	for _, c := range a.Concerns {
		if c.Severity == SeverityHigh {
			high = append(high, c)
		}
	}
	return high
}

// ExecutiveSummary is the output of the executive-summary phase.
type ExecutiveSummary struct {
	Summary      string   `json:"summary"`
	KeyDecisions []string `json:"keyDecisions"`
}

// AuthoredDocument is what an executor returns from an assembly or revise task.
type AuthoredDocument struct {
	Title    string   `json:"title"`
	Markdown string   `json:"markdown"`
	Sections []string `json:"sections,omitempty"`
	Changes  []string `json:"changes,omitempty"`
}
