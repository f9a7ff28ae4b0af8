package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRegistry(t *testing.T) {
	assert.Equal(t, []string{
		"market-analysis", "vision-crafting", "strategy-formulation",
		"financial-projections", "roadmap-planning", "document-assembly",
		"quality-scoring", "stakeholder-alignment", "executive-summary",
	}, Names(ProcessStrategy))

	assert.Equal(t, []string{
		"feature-collection", "rice-scoring", "strategic-alignment",
		"sensitivity-analysis", "tiering", "report-assembly", "quality-scoring",
	}, Names(ProcessPrioritization))

	for process, defs := range StepRegistry {
		for _, def := range defs {
			assert.NotEmpty(t, def.Category, "%s/%s should have a category", process, def.Name)
		}
		require.NoError(t, ValidateOrder(process, Names(process)), process)
	}
}

func TestLocalSteps(t *testing.T) {
	for _, name := range []string{"rice-scoring", "sensitivity-analysis", "tiering"} {
		def, ok := Lookup(ProcessPrioritization, name)
		require.True(t, ok)
		assert.True(t, def.Local, name)
	}
	def, ok := Lookup(ProcessPrioritization, "report-assembly")
	require.True(t, ok)
	assert.False(t, def.Local)
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{
		Step:                "test_step",
		MissingDependencies: []string{"dep1", "dep2"},
	}

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependencies")
	assert.Equal(t, "test_step", err.Step)
	assert.Equal(t, []string{"dep1", "dep2"}, err.MissingDependencies)
}

func TestValidateOrder(t *testing.T) {
	names := Names(ProcessPrioritization)

	swapped := append([]string{}, names...)
	swapped[1], swapped[4] = swapped[4], swapped[1]
	var orderErr *OrderError
	require.ErrorAs(t, ValidateOrder(ProcessPrioritization, swapped), &orderErr)
	assert.Contains(t, orderErr.Message, "must run before")

	assert.ErrorContains(t, ValidateOrder(ProcessPrioritization, names[:3]), "expected 7 phases")

	dup := append([]string{}, names...)
	dup[2] = dup[1]
	assert.ErrorContains(t, ValidateOrder(ProcessPrioritization, dup), "appears twice")

	assert.NoError(t, ValidateOrder("ad-hoc", []string{"anything"}))
}

func TestValidateDependencies(t *testing.T) {
	statuses := map[string]string{
		"market-analysis":       "completed",
		"vision-crafting":       "completed",
		"strategy-formulation":  "completed",
		"financial-projections": "skipped",
	}
	assert.NoError(t, ValidateDependencies(ProcessStrategy, "roadmap-planning", statuses))

	err := ValidateDependencies(ProcessStrategy, "document-assembly", statuses)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"roadmap-planning"}, depErr.MissingDependencies)

	statuses["financial-projections"] = "pending"
	err = ValidateDependencies(ProcessStrategy, "roadmap-planning", statuses)
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"financial-projections"}, depErr.MissingDependencies)

	assert.ErrorContains(t, ValidateDependencies(ProcessStrategy, "unknown_step", statuses), "unknown step")
	assert.NoError(t, ValidateDependencies("ad-hoc", "whatever", nil))
}

func TestAvailableAndBlockedSteps(t *testing.T) {
	statuses := map[string]string{
		"feature-collection": "completed",
		"rice-scoring":       "completed",
	}
	assert.Equal(t, []string{"strategic-alignment", "sensitivity-analysis"}, GetAvailableSteps(ProcessPrioritization, statuses))
	assert.Equal(t, []string{"tiering", "report-assembly", "quality-scoring"}, GetBlockedSteps(ProcessPrioritization, statuses))
}
