package strategy

import (
	"fmt"
	"strings"

	"github.com/jonathan/process-pipelines/internal/types"
)

func renderMarketAnalysis(product string, a *types.MarketAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Market analysis: %s\n\n", product)

	sb.WriteString("## Segments\n\n")
	for _, s := range a.Segments {
		fmt.Fprintf(&sb, "- **%s**", s.Name)
		if s.Size != "" {
			fmt.Fprintf(&sb, " (%s)", s.Size)
		}
		if s.Description != "" {
			fmt.Fprintf(&sb, ": %s", s.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Competitors\n\n| Competitor | Positioning | Threat |\n|---|---|---|\n")
	for _, c := range a.Competitors {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", c.Name, c.Positioning, c.Threat)
	}

	writeBullets(&sb, "Trends", a.Trends)
	writeBullets(&sb, "Opportunities", a.Opportunities)
	return sb.String()
}

func renderVision(product string, v *types.Vision) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Vision: %s\n\n", product)
	fmt.Fprintf(&sb, "> %s\n\n", v.VisionStatement)
	fmt.Fprintf(&sb, "**Mission:** %s\n\n", v.Mission)
	fmt.Fprintf(&sb, "**Value proposition:** %s\n", v.ValueProposition)
	writeBullets(&sb, "Target customers", v.TargetCustomers)
	return sb.String()
}

func renderExecutiveSummary(product string, s *types.ExecutiveSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Executive summary: %s\n\n%s\n", product, s.Summary)
	writeBullets(&sb, "Key decisions", s.KeyDecisions)
	return sb.String()
}

func writeBullets(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
