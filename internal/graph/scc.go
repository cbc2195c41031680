package graph

import "slices"

// ResolutionOrder returns nodes ordered so that dependencies come before
// dependents, using Tarjan's algorithm. Strongly connected components with
// more than one node (or a single node with a self-loop) are reported as
// cycles and excluded from the resolution order.
func (g *Graph[K]) ResolutionOrder() (order []K, cycles [][]K) {
	for _, scc := range g.components() {
		if len(scc) > 1 || slices.Contains(g.edges[scc[0]], scc[0]) {
			cycles = append(cycles, scc)
			continue
		}
		order = append(order, scc[0])
	}
	return order, cycles
}

// FindCycles returns the cycles ResolutionOrder would report.
func (g *Graph[K]) FindCycles() [][]K {
	_, cycles := g.ResolutionOrder()
	return cycles
}

// HasCycles reports whether the graph contains any cycles.
func (g *Graph[K]) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// components returns the strongly connected components in reverse
// topological order: every component comes after the components it
// depends on. Members of a component are sorted.
func (g *Graph[K]) components() [][]K {
	var (
		index    int
		stack    []K
		onStack  = make(map[K]bool)
		indices  = make(map[K]int)
		lowlinks = make(map[K]int)
		sccs     [][]K
	)

	var strongConnect func(n K)
	strongConnect = func(n K) {
		indices[n] = index
		lowlinks[n] = index
		index++
		stack = append(stack, n)
		onStack[n] = true

		for _, dep := range g.edges[n] {
			if _, visited := indices[dep]; !visited {
				strongConnect(dep)
				lowlinks[n] = min(lowlinks[n], lowlinks[dep])
			} else if onStack[dep] {
				lowlinks[n] = min(lowlinks[n], indices[dep])
			}
		}

		if lowlinks[n] == indices[n] {
			var scc []K
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == n {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.Nodes() {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}
