package scheduler

import (
	"fmt"
	"strings"

	"github.com/vk/blockflow/internal/graph"
)

// CycleError reports an algebraic loop: a dependency cycle among the
// connections feeding child inputs. Instances lists every node on the
// cycle in order, with the first repeated at the end.
type CycleError struct {
	Instances []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("algebraic loop: %s", strings.Join(e.Instances, " -> "))
}

// Order computes a topological evaluation order over g using Kahn's
// algorithm. When several nodes are ready at once the one declared first in
// the composite's child list wins, so the order is stable across runs for a
// fixed model.
//
// If the graph contains a cycle, Order returns a *CycleError naming every
// instance on it.
func Order(g *graph.Graph) ([]string, error) {
	remaining := make(map[string]int, g.Len())
	for _, id := range g.Nodes() {
		remaining[id] = len(g.DependenciesOf(id))
	}

	// ready holds zero in-degree nodes; picking the lowest declaration
	// index each round gives the deterministic tie-break.
	var ready []string
	for _, id := range g.Nodes() {
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, g.Len())
	for len(ready) > 0 {
		next := 0
		for i := 1; i < len(ready); i++ {
			if g.Index(ready[i]) < g.Index(ready[next]) {
				next = i
			}
		}
		id := ready[next]
		ready = append(ready[:next], ready[next+1:]...)
		order = append(order, id)
		delete(remaining, id)

		for _, dep := range g.DependentsOf(id) {
			if _, pending := remaining[dep]; !pending {
				continue
			}
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != g.Len() {
		cycle := g.FindCycle()
		if cycle == nil {
			// Leftover nodes always imply a cycle; this guards against a
			// graph mutated during ordering.
			leftover := make([]string, 0, len(remaining))
			for _, id := range g.Nodes() {
				if _, ok := remaining[id]; ok {
					leftover = append(leftover, id)
				}
			}
			cycle = leftover
		}
		return nil, &CycleError{Instances: cycle}
	}
	return order, nil
}
