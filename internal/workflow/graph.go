package workflow

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/conductor/internal/engine"
)

// validateSteps checks step dependency declarations: every dependency must
// name an existing step, the graph must be acyclic, and declaration order
// must satisfy the dependencies, since declaration order is execution order.
func validateSteps(steps []engine.WorkflowStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}

	ids := make(map[string]int, len(steps))
	for i, step := range steps {
		if step.Type == "" {
			return fmt.Errorf("step %d has no type", i)
		}
		if _, dup := ids[step.ID]; dup {
			return fmt.Errorf("duplicate step ID %q", step.ID)
		}
		ids[step.ID] = i
	}

	var edges []toposort.Edge
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, step.ID})
			continue
		}
		for _, depID := range step.DependsOn {
			if _, exists := ids[depID]; !exists {
				return fmt.Errorf("step %q depends on non-existent step %q", step.ID, depID)
			}
			// Edge (depID, stepID) means depID must come before stepID
			edges = append(edges, toposort.Edge{depID, step.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return fmt.Errorf("step dependencies contain cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(steps) {
		var missing []string
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return fmt.Errorf("topological sort lost %d steps: %s", len(missing), strings.Join(missing, ", "))
	}

	// Steps run in declaration order, so a dependency on a later step can
	// never be satisfied even when the graph itself is acyclic.
	for _, step := range steps {
		for _, depID := range step.DependsOn {
			if ids[depID] >= ids[step.ID] {
				return fmt.Errorf("step %q depends on later step %q", step.ID, depID)
			}
		}
	}

	return nil
}
