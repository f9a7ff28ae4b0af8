// Package steps provides the static phase graphs of the registered processes and
// dependency validation over them.
package steps

import (
	"fmt"
	"slices"
)

// Process identifiers
const (
	ProcessStrategy       = "product-vision-strategy"
	ProcessPrioritization = "rice-prioritization"
)

// Step categories
const (
	CategoryAnalysis   = "analysis"
	CategoryPlanning   = "planning"
	CategoryAuthoring  = "authoring"
	CategoryReview     = "review"
	CategoryCollection = "collection"
	CategoryScoring    = "scoring"
)

// Phase statuses that count as done for dependency purposes.
const (
	statusCompleted = "completed"
	statusSkipped   = "skipped"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Dependencies []string `json:"dependencies"`
	Optional     []string `json:"optional"`
	// Local steps are computed in-process and never call the executor.
	Local bool `json:"local"`
}

// StepRegistry holds the ordered step definitions of every process
var StepRegistry = map[string][]StepDefinition{
	ProcessStrategy: {
		{
			Name:     "market-analysis",
			Category: CategoryAnalysis,
		},
		{
			Name:         "vision-crafting",
			Category:     CategoryAnalysis,
			Dependencies: []string{"market-analysis"},
		},
		{
			Name:         "strategy-formulation",
			Category:     CategoryPlanning,
			Dependencies: []string{"market-analysis", "vision-crafting"},
		},
		{
			Name:         "financial-projections",
			Category:     CategoryPlanning,
			Dependencies: []string{"market-analysis", "strategy-formulation"},
		},
		{
			Name:         "roadmap-planning",
			Category:     CategoryPlanning,
			Dependencies: []string{"strategy-formulation"},
			Optional:     []string{"financial-projections"},
		},
		{
			Name:         "document-assembly",
			Category:     CategoryAuthoring,
			Dependencies: []string{"market-analysis", "vision-crafting", "strategy-formulation", "roadmap-planning"},
			Optional:     []string{"financial-projections"},
		},
		{
			Name:         "quality-scoring",
			Category:     CategoryReview,
			Dependencies: []string{"document-assembly"},
		},
		{
			Name:         "stakeholder-alignment",
			Category:     CategoryReview,
			Dependencies: []string{"document-assembly", "quality-scoring"},
		},
		{
			Name:         "executive-summary",
			Category:     CategoryAuthoring,
			Dependencies: []string{"document-assembly"},
			Optional:     []string{"stakeholder-alignment"},
		},
	},
	ProcessPrioritization: {
		{
			Name:     "feature-collection",
			Category: CategoryCollection,
		},
		{
			Name:         "rice-scoring",
			Category:     CategoryScoring,
			Dependencies: []string{"feature-collection"},
			Local:        true,
		},
		{
			Name:         "strategic-alignment",
			Category:     CategoryScoring,
			Dependencies: []string{"rice-scoring"},
		},
		{
			Name:         "sensitivity-analysis",
			Category:     CategoryScoring,
			Dependencies: []string{"feature-collection", "rice-scoring"},
			Local:        true,
		},
		{
			Name:         "tiering",
			Category:     CategoryScoring,
			Dependencies: []string{"rice-scoring"},
			Optional:     []string{"strategic-alignment"},
			Local:        true,
		},
		{
			Name:         "report-assembly",
			Category:     CategoryAuthoring,
			Dependencies: []string{"tiering"},
			Optional:     []string{"sensitivity-analysis"},
		},
		{
			Name:         "quality-scoring",
			Category:     CategoryReview,
			Dependencies: []string{"report-assembly"},
		},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s has missing dependencies: %v", e.Step, e.MissingDependencies)
}

// OrderError reports a phase list that does not match the registered graph.
type OrderError struct {
	Process string
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("invalid phase order for %s: %s", e.Process, e.Message)
}

// Lookup returns the definition of a step within a process.
func Lookup(process, stepName string) (StepDefinition, bool) {
	for _, def := range StepRegistry[process] {
		if def.Name == stepName {
			return def, true
		}
	}
	return StepDefinition{}, false
}

// Names returns the registered step names of a process in order.
func Names(process string) []string {
	defs := StepRegistry[process]
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// ValidateOrder checks that order lists exactly the registered steps of process
// and that every dependency comes before the step that needs it. Processes
// without a registry entry are not checked.
func ValidateOrder(process string, order []string) error {
	defs, ok := StepRegistry[process]
	if !ok {
		return nil
	}
	if len(order) != len(defs) {
		return &OrderError{Process: process, Message: fmt.Sprintf("expected %d phases, got %d", len(defs), len(order))}
	}

	position := make(map[string]int, len(order))
	for i, name := range order {
		if _, dup := position[name]; dup {
			return &OrderError{Process: process, Message: fmt.Sprintf("phase %s appears twice", name)}
		}
		position[name] = i
	}

	for _, def := range defs {
		at, ok := position[def.Name]
		if !ok {
			return &OrderError{Process: process, Message: fmt.Sprintf("phase %s is missing", def.Name)}
		}
		for _, dep := range slices.Concat(def.Dependencies, def.Optional) {
			if position[dep] >= at {
				return &OrderError{Process: process, Message: fmt.Sprintf("%s must run before %s", dep, def.Name)}
			}
		}
	}
	return nil
}

// ValidateDependencies checks that a step's required dependencies completed and
// its optional dependencies either completed or were skipped. statuses maps
// phase names to their current status.
func ValidateDependencies(process, stepName string, statuses map[string]string) error {
	if _, ok := StepRegistry[process]; !ok {
		return nil
	}
	def, ok := Lookup(process, stepName)
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if statuses[dep] != statusCompleted {
			missing = append(missing, dep)
		}
	}
	for _, dep := range def.Optional {
		if s := statuses[dep]; s != statusCompleted && s != statusSkipped {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// GetAvailableSteps returns pending steps whose dependencies are met
func GetAvailableSteps(process string, statuses map[string]string) []string {
	var available []string
	for _, def := range StepRegistry[process] {
		if s := statuses[def.Name]; s == statusCompleted || s == statusSkipped || s == "running" {
			continue
		}
		if ValidateDependencies(process, def.Name, statuses) == nil {
			available = append(available, def.Name)
		}
	}
	return available
}

// GetBlockedSteps returns pending steps whose dependencies are not met
func GetBlockedSteps(process string, statuses map[string]string) []string {
	var blocked []string
	for _, def := range StepRegistry[process] {
		if s := statuses[def.Name]; s == statusCompleted || s == statusSkipped || s == "running" {
			continue
		}
		if ValidateDependencies(process, def.Name, statuses) != nil {
			blocked = append(blocked, def.Name)
		}
	}
	return blocked
}
