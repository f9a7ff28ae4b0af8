// Package document holds the authoring steps shared by processes that produce a
// revisable document: registering it, scoring it against a quality gate and
// revising it from feedback.
package document

import (
	"context"
	"fmt"

	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/types"
)

// QualityTask is the executor task that scores a document.
const QualityTask = "quality-scoring"

// QualityInput is the input of the quality-scoring task.
type QualityInput struct {
	Kind      string   `json:"kind"`
	Title     string   `json:"title"`
	Markdown  string   `json:"markdown"`
	Path      string   `json:"path"`
	Threshold float64  `json:"threshold"`
	Criteria  []string `json:"criteria,omitempty"`
}

// ReviseInput is the input of a revise task.
type ReviseInput struct {
	Kind     string                 `json:"kind"`
	Title    string                 `json:"title"`
	Markdown string                 `json:"markdown"`
	Path     string                 `json:"path"`
	Feedback types.RevisionFeedback `json:"feedback"`
}

// Register stores an authored document as the first version of key.
func Register[S any](ctx context.Context, rc *pipeline.RunContext[S], key, label string, authored *types.AuthoredDocument) (types.Document, error) {
	a, err := rc.RegisterDocument(ctx, key, key+".md", label, authored.Markdown)
	if err != nil {
		return types.Document{}, err
	}
	return types.Document{Title: authored.Title, Markdown: authored.Markdown, Path: a.Path, Version: 1}, nil
}

// Score invokes the quality-scoring task on doc and evaluates the named gate
// with the result. The score is saved as a JSON artifact per document version.
func Score[S any](ctx context.Context, rc *pipeline.RunContext[S], kind, gate string, doc types.Document, criteria []string) (*types.QualityScore, error) {
	input := QualityInput{
		Kind:      kind,
		Title:     doc.Title,
		Markdown:  doc.Markdown,
		Path:      doc.Path,
		Threshold: rc.Gates[gate].Threshold,
		Criteria:  criteria,
	}
	score, _, err := task.Invoke[QualityInput, types.QualityScore](ctx, rc.Invoker, QualityTask, input)
	if err != nil {
		return nil, err
	}
	score.DocumentPath = doc.Path

	name := fmt.Sprintf("%s-quality-v%d.json", kind, doc.Version)
	if _, err := rc.SaveJSONArtifact(ctx, name, fmt.Sprintf("Quality score (v%d)", doc.Version), score); err != nil {
		return nil, err
	}
	rc.Printer.PrintQuality(score, input.Threshold)

	if _, err := rc.Gate(gate, score.Score); err != nil {
		return score, err
	}
	return score, nil
}

// Revise invokes the revise task and redirects key to the revised document.
func Revise[S any](ctx context.Context, rc *pipeline.RunContext[S], taskName, key, kind string, doc types.Document, feedback types.RevisionFeedback) (types.Document, []string, error) {
	input := ReviseInput{
		Kind:     kind,
		Title:    doc.Title,
		Markdown: doc.Markdown,
		Path:     doc.Path,
		Feedback: feedback,
	}
	revised, _, err := task.Invoke[ReviseInput, types.AuthoredDocument](ctx, rc.Invoker, taskName, input)
	if err != nil {
		return types.Document{}, nil, err
	}

	version := doc.Version + 1
	name := fmt.Sprintf("%s-v%d.md", key, version)
	a, err := rc.ReviseDocument(ctx, key, name, fmt.Sprintf("%s (revision %d)", revised.Title, version-1), revised.Markdown)
	if err != nil {
		return types.Document{}, nil, err
	}
	return types.Document{Title: revised.Title, Markdown: revised.Markdown, Path: a.Path, Version: version}, revised.Changes, nil
}

// Summary projects the latest outcome of gate into a result record.
func Summary(run *pipeline.Run, gate string, score *types.QualityScore, revised bool) *types.QualitySummary {
	outcome, ok := run.LastGate(gate)
	if !ok || score == nil {
		return nil
	}
	return &types.QualitySummary{
		Score:     score.Score,
		Threshold: outcome.Threshold,
		Passed:    outcome.Passed,
		Mode:      string(outcome.Mode),
		Revised:   revised,
	}
}

// GateFailed reports whether the latest evaluation of gate did not pass.
func GateFailed(run *pipeline.Run, gate string) bool {
	outcome, ok := run.LastGate(gate)
	return ok && !outcome.Passed
}
