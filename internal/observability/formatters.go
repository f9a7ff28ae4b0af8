// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/process-pipelines/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode. A nil *Printer prints nothing.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	if p == nil {
		return
	}
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBanner(title string) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
	sb.WriteString("\n")
}

// PrintMarketAnalysis outputs segments, competitors and opportunities.
func (p *Printer) PrintMarketAnalysis(analysis *types.MarketAnalysis) {
	if analysis == nil {
		return
	}

	var sb strings.Builder
	if len(analysis.Segments) > 0 {
		sb.WriteString("Segments:\n")
		count := min(len(analysis.Segments), maxItemsToShow)
		for i := 0; i < count; i++ {
			seg := analysis.Segments[i]
			sb.WriteString(fmt.Sprintf("  • %s", seg.Name))
			if seg.Size != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", seg.Size))
			}
			sb.WriteString("\n")
		}
		if len(analysis.Segments) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(analysis.Segments)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(analysis.Competitors) > 0 {
		sb.WriteString("Competitors:\n")
		count := min(len(analysis.Competitors), 3)
		for i := 0; i < count; i++ {
			c := analysis.Competitors[i]
			sb.WriteString(fmt.Sprintf("  • %s [threat: %s]\n", c.Name, c.Threat))
		}
		if len(analysis.Competitors) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(analysis.Competitors)-3))
		}
		sb.WriteString("\n")
	}

	writeList(&sb, "Opportunities", analysis.Opportunities, 3)

	p.printBox("MARKET ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVision outputs the vision statement and target customers.
func (p *Printer) PrintVision(vision *types.Vision) {
	if vision == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Vision:   %s\n", vision.VisionStatement))
	sb.WriteString(fmt.Sprintf("Mission:  %s\n", vision.Mission))
	sb.WriteString("\n")
	writeList(&sb, "Target customers", vision.TargetCustomers, 3)

	p.printBox("PRODUCT VISION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStrategy outputs the strategic pillars with their initiative counts.
func (p *Printer) PrintStrategy(strategy *types.Strategy) {
	if strategy == nil || len(strategy.Pillars) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pillars: %d\n\n", len(strategy.Pillars)))
	for i, pillar := range strategy.Pillars {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, pillar.Name))
		sb.WriteString(fmt.Sprintf("   %s\n", pillar.Objective))
		sb.WriteString(fmt.Sprintf("   %d initiatives\n", len(pillar.Initiatives)))
	}
	sb.WriteString("\n")
	writeList(&sb, "Differentiators", strategy.Differentiators, 3)

	p.printBox("STRATEGY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoadmap outputs milestones grouped in quarter order as given.
func (p *Printer) PrintRoadmap(roadmap *types.Roadmap) {
	if roadmap == nil || len(roadmap.Milestones) == 0 {
		return
	}

	var sb strings.Builder
	for _, m := range roadmap.Milestones {
		sb.WriteString(fmt.Sprintf("%-8s %s", m.Quarter, m.Title))
		if m.Pillar != "" {
			sb.WriteString(fmt.Sprintf(" [%s]", m.Pillar))
		}
		sb.WriteString("\n")
	}

	p.printBox("ROADMAP", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRanking outputs the top N features by RICE score.
func (p *Printer) PrintRanking(ranked []types.RankedFeature) {
	if len(ranked) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total features ranked: %d\n\n", len(ranked)))

	count := min(len(ranked), maxItemsToShow)
	for i := 0; i < count; i++ {
		f := ranked[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", f.Rank, f.Name))
		sb.WriteString(fmt.Sprintf("    RICE: %.2f  (R %d · I %g · C %d%% · E %g)\n",
			f.Score, f.Reach, f.Impact, f.Confidence, f.Effort))
	}

	if len(ranked) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more features", len(ranked)-maxItemsToShow))
	}

	p.printBox("RICE RANKING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTiers outputs the tier assignment, marking strategic promotions.
func (p *Printer) PrintTiers(tiered []types.TieredFeature) {
	if len(tiered) == 0 {
		return
	}

	var sb strings.Builder
	for _, tier := range []string{types.TierHigh, types.TierMedium, types.TierLow} {
		var names []string
		for _, f := range tiered {
			if f.Tier != tier {
				continue
			}
			name := f.Name
			if f.Promoted {
				name += " ★"
			}
			names = append(names, name)
		}
		sb.WriteString(fmt.Sprintf("%-7s %d\n", strings.ToUpper(tier), len(names)))
		for _, n := range names {
			sb.WriteString(fmt.Sprintf("  • %s\n", n))
		}
	}

	p.printBox("PRIORITY TIERS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSensitivity outputs volatile features and their largest rank shift.
func (p *Printer) PrintSensitivity(report *types.SensitivityReport) {
	if report == nil {
		return
	}
	if len(report.Volatile) == 0 {
		p.printBanner(fmt.Sprintf("✅ RANKING STABLE ACROSS %d SCENARIOS", len(report.Scenarios)))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scenarios: %d  Threshold: %d\n\n", len(report.Scenarios), report.Threshold))
	for _, f := range report.Features {
		if !f.Volatile {
			continue
		}
		sb.WriteString(fmt.Sprintf("⚠ %s moves up to %d places\n", f.FeatureID, f.MaxShift))
	}
	sb.WriteString(fmt.Sprintf("\nStable: %d", len(report.Stable)))

	p.printBox("SENSITIVITY ANALYSIS", sb.String())
}

// PrintQuality outputs the quality verdict against its threshold.
func (p *Printer) PrintQuality(score *types.QualityScore, threshold float64) {
	if score == nil {
		return
	}

	var sb strings.Builder
	verdict := "PASS"
	if score.Score < threshold {
		verdict = "BELOW THRESHOLD"
	}
	sb.WriteString(fmt.Sprintf("Score: %.0f / 100  (threshold %.0f) %s\n", score.Score, threshold, verdict))
	if len(score.Dimensions) > 0 {
		sb.WriteString("\n")
		for _, d := range score.Dimensions {
			sb.WriteString(fmt.Sprintf("  %-20s %5.1f\n", d.Name, d.Score))
		}
	}
	if len(score.Recommendations) > 0 {
		sb.WriteString("\n")
		writeList(&sb, "Recommendations", score.Recommendations, 3)
	}

	p.printBox("QUALITY SCORE", strings.TrimRight(sb.String(), "\n"))
}

// PrintAlignment outputs stakeholder concerns, or a banner when there are none.
func (p *Printer) PrintAlignment(review *types.AlignmentReview) {
	if review == nil {
		return
	}
	if len(review.Concerns) == 0 {
		p.printBanner("✅ STAKEHOLDERS ALIGNED")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Aligned: %t  Concerns: %d\n\n", review.Aligned, len(review.Concerns)))
	for i, c := range review.Concerns {
		who := c.Stakeholder
		if who == "" {
			who = "unspecified"
		}
		sb.WriteString(fmt.Sprintf("⚠ [%s] %s\n", c.Severity, who))
		sb.WriteString(fmt.Sprintf("  %s\n", c.Concern))
		if i < len(review.Concerns)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("STAKEHOLDER ALIGNMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArtifacts outputs the artifact ledger.
func (p *Printer) PrintArtifacts(artifacts []types.Artifact) {
	if len(artifacts) == 0 {
		return
	}

	var sb strings.Builder
	for _, a := range artifacts {
		label := a.Label
		if label == "" {
			label = a.Format
		}
		sb.WriteString(fmt.Sprintf("• %s\n", label))
		sb.WriteString(fmt.Sprintf("  %s\n", a.Path))
	}

	p.printBox("ARTIFACTS", strings.TrimSuffix(sb.String(), "\n"))
}
