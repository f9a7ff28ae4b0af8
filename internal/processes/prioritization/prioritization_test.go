package prioritization

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
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

// threeFeatures returns features scoring 3000, 200 and 12.5.
func threeFeatures() []types.Feature {
	return []types.Feature{
		{ID: "feature1", Name: "Bulk import", Reach: 1000, Impact: 3, Confidence: 100, Effort: 1},
		{ID: "feature2", Name: "Saved views", Reach: 500, Impact: 1, Confidence: 80, Effort: 2},
		{ID: "feature3", Name: "Dark mode", Reach: 200, Impact: 0.5, Confidence: 50, Effort: 4},
	}
}

func echoFeatures(req task.Request) (any, error) {
	var in struct {
		Features []types.Feature `json:"features"`
	}
	if err := json.Unmarshal(req.Input, &in); err != nil {
		return nil, err
	}
	return types.FeatureCollection{Features: in.Features}, nil
}

func report(title string) types.AuthoredDocument {
	return types.AuthoredDocument{Title: title, Markdown: "# " + title + "\n\nFeature1 first."}
}

func quality(score float64) types.QualityScore {
	return types.QualityScore{
		Score:           score,
		Dimensions:      []types.QualityDimension{{Name: "evidence", Score: score}},
		Recommendations: []string{"Explain the effort estimates"},
	}
}

func newFake(scores ...float64) *tasktest.Fake {
	f := tasktest.New().
		On("feature-collection", echoFeatures).
		Reply("strategic-alignment", types.StrategicAlignment{Overrides: []types.StrategicOverride{}}).
		Reply("report-assembly", report("Prioritization")).
		Reply("revise-report", types.AuthoredDocument{Title: "Prioritization", Markdown: "# Prioritization v2", Changes: []string{"Explained effort"}})
	if len(scores) == 0 {
		scores = []float64{90}
	}
	for _, s := range scores {
		f.Reply("quality-scoring", quality(s))
	}
	return f
}

type recordingPresenter struct {
	mu       sync.Mutex
	requests []checkpoint.Requested
	answer   func(req checkpoint.Requested) *checkpoint.Feedback
}

func (p *recordingPresenter) Present(_ context.Context, req checkpoint.Requested) (checkpoint.Resumed, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	var fb *checkpoint.Feedback
	if p.answer != nil {
		fb = p.answer(req)
	}
	return checkpoint.Resumed{CheckpointID: req.ID, Resumed: true, Feedback: fb}, nil
}

func (p *recordingPresenter) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.requests))
	for i, r := range p.requests {
		names[i] = r.Name
	}
	return names
}

func run(t *testing.T, in config.PrioritizationInputs, exec task.Executor, presenter checkpoint.Presenter, policy pipeline.Policy) pipeline.Outcome[Result] {
	t.Helper()
	return pipeline.Execute(context.Background(), New(in, policy), NewState(in), in, pipeline.Options{
		RunID:     "run-test",
		Executor:  exec,
		Store:     storage.NewMemory(),
		Presenter: presenter,
		Out:       io.Discard,
	})
}

func TestRanking_OrderedByScoreWithTiers(t *testing.T) {
	fake := newFake()
	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, fake, nil, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	got := out.Result.Ranking
	want := []RankingEntry{
		{ID: "feature1", Name: "Bulk import", Score: 3000, Rank: 1, Tier: types.TierHigh},
		{ID: "feature2", Name: "Saved views", Score: 200, Rank: 2, Tier: types.TierMedium},
		{ID: "feature3", Name: "Dark mode", Score: 12.5, Rank: 3, Tier: types.TierLow},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"feature-collection", "report-assembly", "quality-scoring"}, fake.Calls(),
		"strategic filter is off and the scoring phases are local")
	assert.Equal(t, 3, out.Result.Counts.Features)
	assert.Equal(t, 1, out.Result.Counts.High)
	require.NotNil(t, out.Result.Sensitivity, "sensitivity runs by default")
	require.NotNil(t, out.Result.Counts.Stable)
	assert.Equal(t, 3, *out.Result.Counts.Stable)
	assert.Equal(t, "mem://runs/run-test/artifacts/prioritization-report.md", out.Result.ReportPath)
	require.NotNil(t, out.Result.Quality)
	assert.True(t, out.Result.Quality.Passed)
	assert.False(t, out.Result.Quality.Revised)
	assert.Equal(t, "rice-prioritization", out.Result.Metadata.Process)
	assert.Equal(t, pipeline.PhaseStatusSkipped, out.Result.Metadata.Phases["strategic-alignment"])
}

func TestTooFewFeaturesHaltsBeforeAnyInvocation(t *testing.T) {
	fake := newFake()
	out := run(t, config.PrioritizationInputs{Features: threeFeatures()[:2]}, fake, nil, nil)

	require.False(t, out.Success())
	assert.False(t, out.Failure.Success)
	assert.Equal(t, "feature-collection", out.Failure.Phase)
	assert.Equal(t, types.FailureValidation, out.Failure.Kind)
	assert.Equal(t, minimumFeaturesRecommendation, out.Failure.Recommendation)
	assert.Empty(t, fake.Calls())
	assert.Empty(t, out.Failure.Artifacts)

	raw, err := json.Marshal(out.Failure)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"success":false`)
	assert.Contains(t, string(raw), `"phase":"feature-collection"`)
}

func TestLowConfidenceCheckpointListsOnlyLowFeatures(t *testing.T) {
	features := threeFeatures()
	features[2].Confidence = 50
	presenter := &recordingPresenter{}

	out := run(t, config.PrioritizationInputs{Features: features, MinimumConfidence: intPtr(80)}, newFake(), presenter, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	assert.Equal(t, []string{"low-confidence-review", "prioritization-review"}, presenter.names())
	var summary struct {
		MinimumConfidence int                    `json:"minimumConfidence"`
		Features          []lowConfidenceFeature `json:"features"`
	}
	require.NoError(t, json.Unmarshal(presenter.requests[0].Context.Summary, &summary))
	assert.Equal(t, 80, summary.MinimumConfidence)
	assert.Equal(t, []lowConfidenceFeature{{ID: "feature3", Name: "Dark mode", Confidence: 50}}, summary.Features)

	state, _ := out.Run.State()
	assert.Equal(t, pipeline.StateCompleted, state)
}

func TestLowConfidenceCheckpointNotShownWhenAllConfident(t *testing.T) {
	features := threeFeatures()
	features[2].Confidence = 80
	presenter := &recordingPresenter{}

	out := run(t, config.PrioritizationInputs{Features: features}, newFake(), presenter, nil)
	require.True(t, out.Success())
	assert.Equal(t, []string{"prioritization-review"}, presenter.names())
}

func TestStrategicFilterPromotesFeature(t *testing.T) {
	fake := tasktest.New().
		On("feature-collection", echoFeatures).
		Reply("strategic-alignment", types.StrategicAlignment{Overrides: []types.StrategicOverride{
			{FeatureID: "feature3", Rationale: "Accessibility commitment"},
		}}).
		Reply("report-assembly", report("Prioritization")).
		Reply("quality-scoring", quality(92))

	out := run(t, config.PrioritizationInputs{
		Features:             threeFeatures(),
		ApplyStrategicFilter: true,
		StrategicGoals:       []string{"Accessibility"},
	}, fake, nil, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)

	last := out.Result.Ranking[2]
	assert.Equal(t, "feature3", last.ID)
	assert.Equal(t, types.TierHigh, last.Tier)
	assert.True(t, last.Promoted)
	assert.Equal(t, 3, last.Rank, "promotion does not change rank")
	assert.Equal(t, 1, out.Result.Counts.Overrides)
	assert.Equal(t, 2, out.Result.Counts.High)

	reqs := fake.Requests("strategic-alignment")
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Input), "Accessibility")
}

func TestStrategicFilterUnknownFeatureIsSchemaViolation(t *testing.T) {
	fake := tasktest.New().
		On("feature-collection", echoFeatures).
		Reply("strategic-alignment", types.StrategicAlignment{Overrides: []types.StrategicOverride{
			{FeatureID: "feature9", Rationale: "?"},
		}})

	out := run(t, config.PrioritizationInputs{Features: threeFeatures(), ApplyStrategicFilter: true}, fake, nil, nil)
	require.False(t, out.Success())
	assert.Equal(t, types.FailureSchema, out.Failure.Kind)
	assert.Equal(t, "strategic-alignment", out.Failure.Phase)

	var sv *task.SchemaViolationError
	require.ErrorAs(t, out.Err, &sv)
	require.Len(t, sv.Violations, 1)
	assert.Equal(t, "overrides.0.featureId", sv.Violations[0].Field)
}

func TestSkippedPhasesContributeDefaults(t *testing.T) {
	off := false
	out := run(t, config.PrioritizationInputs{Features: threeFeatures(), IncludeSensitivity: &off}, newFake(), nil, nil)
	require.True(t, out.Success())

	assert.Nil(t, out.Result.Sensitivity)
	assert.Nil(t, out.Result.Counts.Volatile)
	assert.NotNil(t, out.Result.Overrides)

	raw, err := json.Marshal(out.Result)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, field := range []string{"sensitivity", "overrides", "quality", "reportPath", "ranking"} {
		assert.Contains(t, generic, field)
	}
	assert.Nil(t, generic["sensitivity"])
	assert.Equal(t, []any{}, generic["overrides"])
}

func TestExecutorNormalizationDroppingFeaturesFailsGate(t *testing.T) {
	fake := tasktest.New().On("feature-collection", func(task.Request) (any, error) {
		return types.FeatureCollection{Features: threeFeatures()[:1]}, nil
	})

	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, fake, nil, nil)
	require.False(t, out.Success())
	assert.Equal(t, types.FailureGate, out.Failure.Kind)
	assert.Equal(t, "feature-collection", out.Failure.Phase)
}

func TestQualityFailureTriggersSingleRevision(t *testing.T) {
	fake := newFake(70, 75)
	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, fake, nil, nil)
	require.True(t, out.Success(), "advisory gate does not fail the run")

	assert.Len(t, fake.Requests("revise-report"), 1)
	assert.Len(t, fake.Requests("quality-scoring"), 2)
	assert.Equal(t, "mem://runs/run-test/artifacts/prioritization-report-v2.md", out.Result.ReportPath)
	require.NotNil(t, out.Result.Quality)
	assert.Equal(t, 75.0, out.Result.Quality.Score)
	assert.False(t, out.Result.Quality.Passed)
	assert.True(t, out.Result.Quality.Revised)
}

func TestReviewerCanDeclineRevision(t *testing.T) {
	fake := newFake(70)
	presenter := &recordingPresenter{answer: func(checkpoint.Requested) *checkpoint.Feedback {
		return &checkpoint.Feedback{RevisionsNeeded: false, Comments: "Good enough for planning"}
	}}

	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, fake, presenter, nil)
	require.True(t, out.Success())
	assert.Empty(t, fake.Requests("revise-report"))
	assert.False(t, out.Result.Quality.Revised)
}

func TestBlockingQualityGateFailsRun(t *testing.T) {
	policy := config.DefaultPolicy().Merge(pipeline.Policy{
		config.GatePrioritizationQuality: {Name: config.GatePrioritizationQuality, Threshold: 80, Mode: pipeline.ModeBlocking},
	})
	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, newFake(60), nil, policy)

	require.False(t, out.Success())
	assert.Equal(t, types.FailureGate, out.Failure.Kind)
	assert.Equal(t, "quality-scoring", out.Failure.Phase)
	assert.NotEmpty(t, out.Failure.Artifacts)
}

func TestExplicitZeroMinimumConfidenceDisablesCheckpoint(t *testing.T) {
	features := threeFeatures()
	features[2].Confidence = 50
	presenter := &recordingPresenter{}

	out := run(t, config.PrioritizationInputs{Features: features, MinimumConfidence: intPtr(0)}, newFake(), presenter, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)
	assert.Equal(t, []string{"prioritization-review"}, presenter.names())
}

func TestPolicyThresholdAppliesWithoutInputOverride(t *testing.T) {
	overrides, err := config.ParsePolicy([]byte(`
gates:
  - name: prioritization-quality
    threshold: 95
    mode: blocking
`))
	require.NoError(t, err)
	policy := config.DefaultPolicy().Merge(overrides)

	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, newFake(90), nil, policy)
	require.False(t, out.Success(), "90 is below the policy threshold of 95")
	assert.Equal(t, types.FailureGate, out.Failure.Kind)
	assert.Equal(t, "quality-scoring", out.Failure.Phase)

	in := config.PrioritizationInputs{Features: threeFeatures(), QualityThreshold: floatPtr(85)}
	out = run(t, in, newFake(90), nil, policy)
	require.True(t, out.Success(), "failure: %+v", out.Failure)
	require.NotNil(t, out.Result.Quality)
	assert.Equal(t, 85.0, out.Result.Quality.Threshold)
	assert.Equal(t, string(pipeline.ModeBlocking), out.Result.Quality.Mode, "the override keeps the policy's mode")
}

func TestDefaultPolicyThresholdUsedWhenUnset(t *testing.T) {
	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, newFake(90), nil, nil)
	require.True(t, out.Success(), "failure: %+v", out.Failure)
	assert.Equal(t, config.DefaultPolicy()[config.GatePrioritizationQuality].Threshold, out.Result.Quality.Threshold)
}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func TestExecutorUnavailable(t *testing.T) {
	fake := tasktest.New().
		On("feature-collection", echoFeatures).
		Fail("report-assembly", errors.New("connection refused"))

	out := run(t, config.PrioritizationInputs{Features: threeFeatures()}, fake, nil, nil)
	require.False(t, out.Success())
	assert.Equal(t, types.FailureUnavailable, out.Failure.Kind)
	assert.Equal(t, "report-assembly", out.Failure.Phase)
	assert.NotContains(t, fake.Calls(), "quality-scoring")
}

func TestInvocationEffectKeys(t *testing.T) {
	store := storage.NewMemory()
	in := config.PrioritizationInputs{Features: threeFeatures()}
	out := pipeline.Execute(context.Background(), New(in, nil), NewState(in), in, pipeline.Options{
		RunID:    "run-keys",
		Executor: newFake(),
		Store:    store,
		Out:      io.Discard,
	})
	require.True(t, out.Success())

	keys := store.Keys()
	assert.Contains(t, keys, "runs/run-keys/01-feature-collection/input.json")
	assert.Contains(t, keys, "runs/run-keys/01-feature-collection/output.json")
	assert.Contains(t, keys, "runs/run-keys/02-report-assembly/output.json")
	assert.Contains(t, keys, "runs/run-keys/03-quality-scoring/output.json")
	assert.Contains(t, keys, "runs/run-keys/artifacts/rice-scores.json")
}
