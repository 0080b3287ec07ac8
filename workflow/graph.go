package workflow

import (
	"sort"
	"strings"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// dependenciesOf resolves the full predecessor set for a step: the explicit
// DependsOn names plus an inferred edge to every other step producing one of
// the step's input keys. Keys nobody produces are assumed to arrive in the
// caller-supplied initial state and create no edge. A step naming itself in
// DependsOn is rejected rather than silently ignored.
func (w *Workflow) dependenciesOf(step *Step) ([]string, error) {
	seen := make(map[string]struct{})
	var deps []string

	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		deps = append(deps, name)
	}

	for _, name := range step.DependsOn {
		if name == step.Name {
			return nil, core.NewValidationError("step cannot depend on itself").
				WithContext("workflow", w.Name).
				WithContext("step", step.Name)
		}
		if _, ok := w.index[name]; !ok {
			return nil, core.NewValidationError("step depends on unknown step").
				WithContext("workflow", w.Name).
				WithContext("step", step.Name).
				WithContext("depends_on", name)
		}
		add(name)
	}

	producers := make(map[string]struct{}, len(step.InputKeys))
	for _, key := range step.InputKeys {
		producers[key] = struct{}{}
	}
	for _, other := range w.steps {
		if other.Name == step.Name {
			continue
		}
		for _, out := range other.OutputKeys {
			if _, ok := producers[out]; ok {
				add(other.Name)
				break
			}
		}
	}

	return deps, nil
}

// Layers computes a topological ordering of the steps grouped into layers:
// every step in layer N depends only on steps in layers < N, so steps within
// one layer may run concurrently. Order within a layer follows insertion
// order, making schedules deterministic. A dependency cycle fails fast with a
// workflow error naming the steps still entangled.
func (w *Workflow) Layers() ([][]*Step, error) {
	indegree := make(map[string]int, len(w.steps))
	dependents := make(map[string][]string, len(w.steps))

	for _, step := range w.steps {
		deps, err := w.dependenciesOf(step)
		if err != nil {
			return nil, err
		}
		indegree[step.Name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], step.Name)
		}
	}

	var layers [][]*Step
	placed := 0
	for placed < len(w.steps) {
		var layer []*Step
		for _, step := range w.steps {
			if indegree[step.Name] == 0 {
				layer = append(layer, step)
				indegree[step.Name] = -1 // mark placed
			}
		}
		if len(layer) == 0 {
			var remaining []string
			for name, d := range indegree {
				if d > 0 {
					remaining = append(remaining, name)
				}
			}
			sort.Strings(remaining)
			return nil, core.NewWorkflowError("dependency cycle detected").
				WithContext("workflow", w.Name).
				WithContext("steps", strings.Join(remaining, ", "))
		}
		for _, step := range layer {
			for _, dependent := range dependents[step.Name] {
				if indegree[dependent] > 0 {
					indegree[dependent]--
				}
			}
		}
		placed += len(layer)
		layers = append(layers, layer)
	}

	return layers, nil
}
