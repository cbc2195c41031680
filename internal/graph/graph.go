// Package graph provides a dependency graph with deterministic ordering
// and cycle detection, used for binding includes and device dependency
// ordinals.
package graph

import (
	"cmp"
	"slices"
)

// Graph is a dependency graph with forward edges. Node keys are ordered so
// that traversals are deterministic.
type Graph[K cmp.Ordered] struct {
	nodes map[K]struct{}
	edges map[K][]K
}

// New returns a graph with no nodes or edges.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]struct{}),
		edges: make(map[K][]K),
	}
}

// AddNode registers a node. Duplicate calls are no-ops.
func (g *Graph[K]) AddNode(n K) {
	g.nodes[n] = struct{}{}
}

// AddEdge records that "from" depends on "to", meaning "to" must be
// handled before "from". Missing nodes are created implicitly.
// Duplicate edges are ignored.
func (g *Graph[K]) AddEdge(from, to K) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}

	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

// Dependencies returns the nodes n depends on, in insertion order.
func (g *Graph[K]) Dependencies(n K) []K {
	return g.edges[n]
}

// Dependents returns the nodes that depend on n, sorted.
func (g *Graph[K]) Dependents(n K) []K {
	var out []K
	for from, deps := range g.edges {
		if slices.Contains(deps, n) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// HasNode reports whether the node exists in the graph.
func (g *Graph[K]) HasNode(n K) bool {
	_, ok := g.nodes[n]
	return ok
}

// Nodes returns all nodes, sorted.
func (g *Graph[K]) Nodes() []K {
	out := make([]K, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
