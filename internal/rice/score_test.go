package rice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/process-pipelines/internal/types"
)

func threeFeatures() []types.Feature {
	return []types.Feature{
		{ID: "feature1", Name: "Feature 1", Reach: 1000, Impact: 3, Confidence: 100, Effort: 1},
		{ID: "feature2", Name: "Feature 2", Reach: 500, Impact: 1, Confidence: 80, Effort: 2},
		{ID: "feature3", Name: "Feature 3", Reach: 200, Impact: 0.5, Confidence: 50, Effort: 4},
	}
}

func TestScore_ThreeFeatures(t *testing.T) {
	want := []float64{3000, 200, 12.5}
	for i, f := range threeFeatures() {
		got, err := Score(f)
		require.NoError(t, err)
		assert.InDelta(t, want[i], got, 1e-9, "feature %s", f.ID)
	}
}

func TestScore_NonPositiveEffort(t *testing.T) {
	for _, effort := range []float64{0, -1, -0.5} {
		for _, impact := range ImpactScale {
			f := types.Feature{ID: "f", Reach: 100, Impact: impact, Confidence: 80, Effort: effort}
			_, err := Score(f)
			require.Error(t, err)

			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, "effort", inputErr.Field)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		feature types.Feature
		field   string
	}{
		{"missing id", types.Feature{Reach: 1, Impact: 1, Confidence: 50, Effort: 1}, "id"},
		{"negative reach", types.Feature{ID: "a", Reach: -1, Impact: 1, Confidence: 50, Effort: 1}, "reach"},
		{"impact off scale", types.Feature{ID: "a", Reach: 1, Impact: 1.5, Confidence: 50, Effort: 1}, "impact"},
		{"confidence off scale", types.Feature{ID: "a", Reach: 1, Impact: 1, Confidence: 70, Effort: 1}, "confidence"},
		{"zero effort", types.Feature{ID: "a", Reach: 1, Impact: 1, Confidence: 50, Effort: 0}, "effort"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.feature)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
		})
	}

	assert.NoError(t, Validate(types.Feature{ID: "ok", Reach: 0, Impact: 0.25, Confidence: 100, Effort: 0.5}))
}

func TestRank_ThreeFeaturesOrderedByScore(t *testing.T) {
	features := threeFeatures()
	// Submit in reverse to prove ordering comes from the score.
	reversed := []types.Feature{features[2], features[0], features[1]}

	ranked, err := Rank(reversed)
	require.NoError(t, err)

	var ids []string
	for _, rf := range ranked {
		ids = append(ids, rf.ID)
	}
	if diff := cmp.Diff([]string{"feature1", "feature2", "feature3"}, ids); diff != "" {
		t.Errorf("ranked order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
	assert.Equal(t, 1, ranked[0].Position)
}

func TestRank_TiesKeepSubmissionOrder(t *testing.T) {
	features := []types.Feature{
		{ID: "c", Reach: 100, Impact: 1, Confidence: 100, Effort: 1},
		{ID: "a", Reach: 50, Impact: 2, Confidence: 100, Effort: 1},
		{ID: "top", Reach: 1000, Impact: 1, Confidence: 100, Effort: 1},
		{ID: "b", Reach: 200, Impact: 1, Confidence: 100, Effort: 2},
	}

	ranked, err := Rank(features)
	require.NoError(t, err)

	var ids []string
	for _, rf := range ranked {
		ids = append(ids, rf.ID)
	}
	// c, a and b all score 100; they must keep the order they were submitted in.
	if diff := cmp.Diff([]string{"top", "c", "a", "b"}, ids); diff != "" {
		t.Errorf("tie-break mismatch (-want +got):\n%s", diff)
	}
	for i, rf := range ranked {
		assert.Equal(t, i+1, rf.Rank)
	}
}

func TestRank_ConsistentWithScore(t *testing.T) {
	features := []types.Feature{
		{ID: "f1", Reach: 10, Impact: 0.25, Confidence: 50, Effort: 3},
		{ID: "f2", Reach: 900, Impact: 2, Confidence: 80, Effort: 5},
		{ID: "f3", Reach: 900, Impact: 2, Confidence: 80, Effort: 5},
		{ID: "f4", Reach: 0, Impact: 3, Confidence: 100, Effort: 1},
		{ID: "f5", Reach: 300, Impact: 1, Confidence: 100, Effort: 0.5},
	}

	ranked, err := Rank(features)
	require.NoError(t, err)
	require.Len(t, ranked, len(features))

	for i := 1; i < len(ranked); i++ {
		prev, cur := ranked[i-1], ranked[i]
		assert.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.Position, cur.Position, "equal scores must preserve input order")
		}
	}
}

func TestRank_Errors(t *testing.T) {
	_, err := Rank([]types.Feature{
		{ID: "dup", Reach: 1, Impact: 1, Confidence: 50, Effort: 1},
		{ID: "dup", Reach: 2, Impact: 1, Confidence: 50, Effort: 1},
	})
	assert.ErrorContains(t, err, "duplicated")

	_, err = Rank([]types.Feature{{ID: "bad", Reach: 1, Impact: 1, Confidence: 50, Effort: 0}})
	assert.ErrorContains(t, err, "effort")

	ranked, err := Rank(nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestNextImpact(t *testing.T) {
	assert.Equal(t, 0.5, NextImpact(0.25))
	assert.Equal(t, 2.0, NextImpact(1))
	assert.Equal(t, 3.0, NextImpact(3))
	assert.Equal(t, 1.7, NextImpact(1.7))
}
