// Package graph builds a dependency DAG over job descriptors and produces a
// deterministic topological order, per spec §4.3.
package graph

import (
	"sort"

	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/runnererr"
)

// Order returns a topological visit order over reg's jobs: edges run
// dependency -> dependent, so every job appears strictly after all of its
// dependencies. Ties (independent subtrees both newly ready) are broken by the
// job's position in the original configuration list, so user ordering is
// preserved wherever the DAG permits it (spec §4.3, testable property 4).
//
// Implemented as Kahn's algorithm over an explicit in-degree count, with the
// ready set re-sorted by configuration position at each step instead of using
// a FIFO queue, which is what makes the tie-break deterministic.
func Order(reg *registry.Registry) ([]string, error) {
	position := make(map[string]int, len(reg.Order))
	for i, id := range reg.Order {
		position[id] = i
	}

	inDegree := make(map[string]int, len(reg.Order))
	downstream := make(map[string][]string, len(reg.Order))
	for _, desc := range reg.All() {
		if _, ok := inDegree[desc.Identifier]; !ok {
			inDegree[desc.Identifier] = 0
		}
		for dep := range desc.DependsOn {
			inDegree[desc.Identifier]++
			downstream[dep] = append(downstream[dep], desc.Identifier)
		}
	}

	var ready []string
	for _, id := range reg.Order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, downstreamID := range downstream[next] {
			inDegree[downstreamID]--
			if inDegree[downstreamID] == 0 {
				ready = append(ready, downstreamID)
			}
		}
	}

	if len(order) != len(reg.Order) {
		return nil, runnererr.New(runnererr.KindConfigError, runnererr.LabelDependencyCycle,
			"dependency cycle detected among configured jobs")
	}
	return order, nil
}
