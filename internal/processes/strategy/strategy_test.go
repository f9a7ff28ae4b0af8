package strategy

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/task"
	"github.com/jonathan/process-pipelines/internal/task/tasktest"
	"github.com/jonathan/process-pipelines/internal/types"
)

func marketAnalysis() types.MarketAnalysis {
	return types.MarketAnalysis{
		Segments:      []types.MarketSegment{{Name: "Mid-market finance teams", Size: "$2B"}},
		Competitors:   []types.Competitor{{Name: "LedgerCo", Threat: "high"}, {Name: "Tally", Threat: "low"}},
		Trends:        []string{"Close automation"},
		Opportunities: []string{"Audit-ready exports"},
	}
}

func fullFake(quality ...float64) *tasktest.Fake {
	return scriptedFake(types.AlignmentReview{Aligned: true, Concerns: []types.Concern{}}, quality...)
}

func scriptedFake(alignment types.AlignmentReview, quality ...float64) *tasktest.Fake {
	f := tasktest.New().
		Reply("market-analysis", marketAnalysis()).
		Reply("vision-crafting", types.Vision{
			VisionStatement:  "Every close in a day",
			Mission:          "Remove spreadsheet work from month-end",
			TargetCustomers:  []string{"Controllers"},
			ValueProposition: "Faster, auditable closes",
		}).
		Reply("strategy-formulation", types.Strategy{
			Pillars: []types.StrategicPillar{
				{Name: "Automation", Objective: "Automate reconciliations", Initiatives: []string{"Bank feeds"}},
				{Name: "Trust", Objective: "Audit trail by default", Initiatives: []string{}},
			},
			Differentiators: []string{"Native ERP sync"},
		}).
		Reply("financial-projections", types.Financials{
			RevenueByYear:      []types.YearlyRevenue{{Year: 1, Revenue: 1e6}, {Year: 2, Revenue: 3e6}},
			InvestmentRequired: 2e6,
			BreakEvenYear:      2,
		}).
		Reply("roadmap-planning", types.Roadmap{Milestones: []types.Milestone{
			{Quarter: "Q1", Title: "Bank feeds GA", Pillar: "Automation"},
		}}).
		Reply("document-assembly", types.AuthoredDocument{Title: "Strategy", Markdown: "# Strategy\n\nDraft."}).
		Reply("stakeholder-alignment", alignment).
		Reply("revise-strategy", types.AuthoredDocument{
			Title:    "Strategy",
			Markdown: "# Strategy\n\nRevised.",
			Changes:  []string{"Quantified the automation pillar"},
		}).
		Reply("executive-summary", types.ExecutiveSummary{
			Summary:      "Automate the close.",
			KeyDecisions: []string{"Lead with bank feeds", "Defer payroll"},
		})
	if len(quality) == 0 {
		quality = []float64{90}
	}
	for _, q := range quality {
		f.Reply("quality-scoring", types.QualityScore{
			Score:           q,
			Dimensions:      []types.QualityDimension{{Name: "clarity", Score: q}},
			Recommendations: []string{"Quantify the pillars"},
		})
	}
	return f
}

type scriptedPresenter struct {
	mu      sync.Mutex
	names   []string
	answers map[string]*checkpoint.Feedback
}

func (p *scriptedPresenter) Present(_ context.Context, req checkpoint.Requested) (checkpoint.Resumed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, req.Name)
	return checkpoint.Resumed{CheckpointID: req.ID, Resumed: true, Feedback: p.answers[req.Name]}, nil
}

func execute(t *testing.T, in config.StrategyInputs, exec task.Executor, presenter checkpoint.Presenter) pipeline.Outcome[Result] {
	t.Helper()
	return executeWithPolicy(t, in, nil, exec, presenter)
}

func executeWithPolicy(t *testing.T, in config.StrategyInputs, policy pipeline.Policy, exec task.Executor, presenter checkpoint.Presenter) pipeline.Outcome[Result] {
	t.Helper()
	return pipeline.Execute(context.Background(), New(in, policy), NewState(in), in, pipeline.Options{
		RunID:     "run-strategy",
		Executor:  exec,
		Store:     storage.NewMemory(),
		Presenter: presenter,
		Out:       io.Discard,
	})
}

func TestRun_AllPhases(t *testing.T) {
	fake := fullFake()
	presenter := &scriptedPresenter{}
	out := execute(t, config.StrategyInputs{ProductName: "Closer", IncludeFinancialProjections: true}, fake, presenter)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	assert.Equal(t, []string{
		"market-analysis", "vision-crafting", "strategy-formulation", "financial-projections",
		"roadmap-planning", "document-assembly", "quality-scoring", "stakeholder-alignment", "executive-summary",
	}, fake.Calls())
	assert.Equal(t, []string{"strategy-draft-review", "stakeholder-alignment", "final-approval"}, presenter.names)

	r := out.Result
	assert.Equal(t, "Closer", r.ProductName)
	assert.Equal(t, config.DefaultTimeframe, r.Timeframe)
	assert.Equal(t, "Every close in a day", r.Vision)
	assert.Equal(t, Counts{Segments: 1, Competitors: 2, Pillars: 2, Milestones: 1, KeyDecisions: 2}, r.Counts)
	require.NotNil(t, r.Financials)
	assert.Equal(t, 2, r.Financials.Years)
	require.NotNil(t, r.Alignment)
	assert.True(t, r.Alignment.Aligned)
	assert.Equal(t, "mem://runs/run-strategy/artifacts/strategy-document.md", r.DocumentPath)
	assert.True(t, r.Quality.Passed)
	assert.False(t, r.Quality.Revised)

	formats := map[string]bool{}
	for _, a := range r.Artifacts {
		formats[a.Label] = true
	}
	for _, label := range []string{"Market analysis", "Product vision", "Financial projections", "Strategy document", "Executive summary"} {
		assert.True(t, formats[label], "missing artifact %s", label)
	}
}

func TestAlignmentRevisionRunsOnceAndRedirectsDocument(t *testing.T) {
	fake := fullFake(84, 88)
	presenter := &scriptedPresenter{answers: map[string]*checkpoint.Feedback{
		"stakeholder-alignment": {RevisionsNeeded: true, Comments: "Tighten the pillars"},
	}}

	threshold := 85.0
	in := config.StrategyInputs{ProductName: "Closer", QualityThreshold: &threshold}
	out := execute(t, in, fake, presenter)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	assert.Len(t, fake.Requests("revise-strategy"), 1)
	assert.Len(t, out.Run.Revisions(), 1)
	assert.Equal(t, "stakeholder-alignment", out.Run.Revisions()[0].Checkpoint)

	revised := "mem://runs/run-strategy/artifacts/strategy-document-v2.md"
	assert.Equal(t, revised, out.Result.DocumentPath)
	assert.NotEqual(t, "mem://runs/run-strategy/artifacts/strategy-document.md", out.Result.DocumentPath)

	summaryReqs := fake.Requests("executive-summary")
	require.Len(t, summaryReqs, 1)
	var input struct {
		Document types.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal(summaryReqs[0].Input, &input))
	assert.Equal(t, revised, input.Document.Path)

	var feedback struct {
		Feedback types.RevisionFeedback `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(fake.Requests("revise-strategy")[0].Input, &feedback))
	assert.Equal(t, "reviewer", feedback.Feedback.Source)
	assert.Equal(t, "Tighten the pillars", feedback.Feedback.Comments)
	require.NotNil(t, feedback.Feedback.Quality)
	assert.Equal(t, 84.0, *feedback.Feedback.Quality)

	require.NotNil(t, out.Result.Quality)
	assert.Equal(t, 88.0, out.Result.Quality.Score)
	assert.True(t, out.Result.Quality.Passed)
	assert.True(t, out.Result.Quality.Revised)
}

func TestHighSeverityConcernTriggersRevision(t *testing.T) {
	fake := scriptedFake(types.AlignmentReview{
		Aligned:  false,
		Concerns: []types.Concern{{Stakeholder: "CFO", Concern: "No pricing plan", Severity: types.SeverityHigh}},
	}, 90)

	out := execute(t, config.StrategyInputs{ProductName: "Closer"}, fake, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)
	assert.Len(t, fake.Requests("revise-strategy"), 1)
	assert.Equal(t, 1, out.Result.Alignment.HighSeverity)
	assert.True(t, out.Result.Quality.Revised)
}

func TestSkippedPhasesYieldNull(t *testing.T) {
	off := false
	fake := fullFake()
	presenter := &scriptedPresenter{}
	out := execute(t, config.StrategyInputs{ProductName: "Closer", RequireAlignment: &off}, fake, presenter)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	assert.NotContains(t, fake.Calls(), "financial-projections")
	assert.NotContains(t, fake.Calls(), "stakeholder-alignment")
	assert.Equal(t, []string{"strategy-draft-review", "final-approval"}, presenter.names)
	assert.Equal(t, pipeline.PhaseStatusSkipped, out.Result.Metadata.Phases["financial-projections"])
	assert.Equal(t, pipeline.PhaseStatusSkipped, out.Result.Metadata.Phases["stakeholder-alignment"])

	raw, err := json.Marshal(out.Result)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "financials")
	assert.Nil(t, generic["financials"])
	assert.Contains(t, generic, "alignment")
	assert.Nil(t, generic["alignment"])
}

func TestQualityBelowThresholdWithoutAlignmentIsAdvisory(t *testing.T) {
	off := false
	out := execute(t, config.StrategyInputs{ProductName: "Closer", RequireAlignment: &off}, fullFake(60), nil)
	require.True(t, out.Success())
	assert.False(t, out.Result.Quality.Passed)
	assert.Equal(t, string(pipeline.ModeAdvisory), out.Result.Quality.Mode)
	assert.False(t, out.Result.Quality.Revised)
}

func TestPolicyFileQualityThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gates:
  - name: strategy-quality
    threshold: 70
    mode: advisory
`), 0644))
	policy, err := config.LoadPolicy(path)
	require.NoError(t, err)

	off := false
	out := executeWithPolicy(t, config.StrategyInputs{ProductName: "Closer", RequireAlignment: &off}, policy, fullFake(75), nil)
	require.True(t, out.Success())
	assert.Equal(t, 70.0, out.Result.Quality.Threshold)
	assert.True(t, out.Result.Quality.Passed, "75 passes the policy threshold of 70")
}

func TestSchemaViolationFailsPhase(t *testing.T) {
	fake := tasktest.New().
		Reply("market-analysis", marketAnalysis()).
		Reply("vision-crafting", json.RawMessage(`{"visionStatement":"x"}`))

	out := execute(t, config.StrategyInputs{ProductName: "Closer"}, fake, nil)
	require.False(t, out.Success())
	assert.Equal(t, types.FailureSchema, out.Failure.Kind)
	assert.Equal(t, "vision-crafting", out.Failure.Phase)
	assert.Equal(t, []string{"market-analysis", "vision-crafting"}, fake.Calls())

	var sv *task.SchemaViolationError
	require.ErrorAs(t, out.Err, &sv)
	assert.NotEmpty(t, sv.Violations)

	require.Len(t, out.Failure.Artifacts, 1, "artifacts produced before the failure are reported")
	assert.Equal(t, "Market analysis", out.Failure.Artifacts[0].Label)
}
