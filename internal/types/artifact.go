// Package types provides type definitions for structured data exchanged between pipeline phases.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Artifact formats
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Artifact is a reference to externally stored content produced by a phase.
// Artifacts are never mutated; a revision produces a new Artifact.
type Artifact struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Label  string `json:"label,omitempty"`
	Phase  string `json:"phase,omitempty"`
}

// Document is an assembled, revisable document together with its stored location.
type Document struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	Path     string `json:"path"`
	Version  int    `json:"version"`
}
