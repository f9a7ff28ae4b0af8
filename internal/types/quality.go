//nolint:revive // types is a standard Go package name pattern
package types

// QualityScore is the 0-100 verdict attached to an assembled document.
type QualityScore struct {
	Score           float64            `json:"score"`
	Dimensions      []QualityDimension `json:"dimensions"`
	Recommendations []string           `json:"recommendations"`
	DocumentPath    string             `json:"documentPath,omitempty"`
}

// QualityDimension is one scored facet of a document (clarity, feasibility, ...).
type QualityDimension struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Notes string  `json:"notes,omitempty"`
}

// Concern severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Concern is a single piece of structured review feedback.
type Concern struct {
	Stakeholder string `json:"stakeholder,omitempty"`
	Concern     string `json:"concern"`
	Severity    string `json:"severity"`
}

// RevisionFeedback is the structured input handed to a revise phase.
type RevisionFeedback struct {
	Source   string    `json:"source"`
	Comments string    `json:"comments,omitempty"`
	Concerns []Concern `json:"concerns"`
	Quality  *float64  `json:"quality,omitempty"`
}
