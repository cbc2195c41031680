package graph

import (
	"slices"
	"testing"
)

func TestGraphBasic(t *testing.T) {
	g := New[string]()

	g.AddNode("/soc/uart@1000")
	g.AddNode("/soc")
	g.AddEdge("/soc/uart@1000", "/soc")

	if !g.HasNode("/soc/uart@1000") {
		t.Error("graph should have the uart node")
	}
	if !g.HasNode("/soc") {
		t.Error("graph should have the soc node")
	}
	if deps := g.Dependencies("/soc/uart@1000"); !slices.Equal(deps, []string{"/soc"}) {
		t.Errorf("uart dependencies = %v, want [/soc]", deps)
	}
	if deps := g.Dependents("/soc"); !slices.Equal(deps, []string{"/soc/uart@1000"}) {
		t.Errorf("soc dependents = %v, want [/soc/uart@1000]", deps)
	}
}

func TestAddEdgeCreatesNodes(t *testing.T) {
	g := New[string]()

	// No AddNode calls, only AddEdge.
	g.AddEdge("a.yaml", "base.yaml")

	if !g.HasNode("a.yaml") {
		t.Error("AddEdge should create 'from' node")
	}
	if !g.HasNode("base.yaml") {
		t.Error("AddEdge should create 'to' node")
	}
	if got := g.Nodes(); !slices.Equal(got, []string{"a.yaml", "base.yaml"}) {
		t.Errorf("nodes = %v", got)
	}
}

func TestDuplicateEdges(t *testing.T) {
	g := New[string]()

	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")

	if len(g.Dependencies("a")) != 1 {
		t.Errorf("dependencies = %d, want 1 (duplicate edges deduplicated)", len(g.Dependencies("a")))
	}

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 0 {
		t.Errorf("cycles = %d, want 0", len(cycles))
	}
	if len(order) != 2 {
		t.Errorf("order = %d, want 2", len(order))
	}
}

func TestResolutionOrderEmpty(t *testing.T) {
	g := New[string]()
	order, cycles := g.ResolutionOrder()
	if len(order) != 0 {
		t.Errorf("order = %d, want 0", len(order))
	}
	if len(cycles) != 0 {
		t.Errorf("cycles = %d, want 0", len(cycles))
	}
	if g.HasCycles() {
		t.Error("empty graph should have no cycles")
	}
}

func TestResolutionOrderChain(t *testing.T) {
	g := New[string]()

	g.AddEdge("a", "b")
	g.AddEdge("b", "c")

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 0 {
		t.Errorf("cycles = %d, want 0", len(cycles))
	}

	// Deterministic: c, b, a.
	want := []string{"c", "b", "a"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestResolutionOrderDiamond(t *testing.T) {
	g := New[string]()

	// a depends on b and c, both depend on d.
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 0 {
		t.Errorf("cycles = %d, want 0", len(cycles))
	}
	if len(order) != 4 {
		t.Fatalf("order = %d, want 4", len(order))
	}

	idx := func(s string) int { return slices.Index(order, s) }
	if idx("d") >= idx("b") || idx("d") >= idx("c") {
		t.Errorf("d should come before b and c: %v", order)
	}
	if idx("b") >= idx("a") || idx("c") >= idx("a") {
		t.Errorf("b and c should come before a: %v", order)
	}
}

func TestResolutionOrderDeviceTree(t *testing.T) {
	// Children depend on their parent, consumers on their providers.
	g := New[int]()
	g.AddNode(0)
	g.AddEdge(1, 0)
	g.AddEdge(2, 1)
	g.AddEdge(3, 1)
	g.AddEdge(3, 2)

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 0 {
		t.Fatalf("cycles = %v, want none", cycles)
	}
	if want := []int{0, 1, 2, 3}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestResolutionOrderSimpleCycle(t *testing.T) {
	g := New[string]()

	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	order, cycles := g.ResolutionOrder()
	if len(order) != 0 {
		t.Errorf("order = %d, want 0 (all nodes in cycle)", len(order))
	}
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(cycles))
	}
	if !slices.Equal(cycles[0], []string{"a", "b"}) {
		t.Errorf("cycle = %v, want [a b]", cycles[0])
	}
	if !g.HasCycles() {
		t.Error("HasCycles should report the cycle")
	}
}

func TestResolutionOrderCycleDependents(t *testing.T) {
	g := New[string]()

	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("c", "a")

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(cycles))
	}

	// c should still appear in the order despite depending on a cycle member.
	if !slices.Equal(order, []string{"c"}) {
		t.Errorf("order = %v, want [c]", order)
	}
}

func TestSelfLoop(t *testing.T) {
	g := New[string]()

	g.AddEdge("a", "a")
	g.AddEdge("b", "a")

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(cycles))
	}
	if !slices.Equal(cycles[0], []string{"a"}) {
		t.Errorf("self-loop cycle = %v, want [a]", cycles[0])
	}
	if !slices.Equal(order, []string{"b"}) {
		t.Errorf("order = %v, want [b]", order)
	}
}

func TestResolutionOrderMultipleSCCs(t *testing.T) {
	// Adapted from the Wikipedia Tarjan's example.
	// Three cycles ({a,b,c}, {d,e}, {f,g}), one self-loop (h).
	g := New[string]()

	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("d", "b")
	g.AddEdge("d", "c")
	g.AddEdge("d", "e")
	g.AddEdge("e", "d")
	g.AddEdge("f", "c")
	g.AddEdge("f", "g")
	g.AddEdge("g", "f")
	g.AddEdge("h", "e")
	g.AddEdge("h", "g")
	g.AddEdge("h", "h")

	order, cycles := g.ResolutionOrder()
	if len(order) != 0 {
		t.Errorf("order = %v, want none (all nodes are in cycles)", order)
	}
	if len(cycles) != 4 {
		for i, cyc := range cycles {
			t.Logf("  cycle %d: %v", i, cyc)
		}
		t.Fatalf("cycles = %d, want 4", len(cycles))
	}
	if got := g.FindCycles(); len(got) != 4 {
		t.Errorf("FindCycles = %d cycles, want 4", len(got))
	}

	// Components come after the components they depend on.
	if !slices.Equal(cycles[0], []string{"a", "b", "c"}) {
		t.Errorf("first cycle = %v, want [a b c]", cycles[0])
	}
}

func TestResolutionOrderDisconnected(t *testing.T) {
	g := New[string]()

	g.AddNode("c")
	g.AddNode("a")
	g.AddNode("b")

	order, cycles := g.ResolutionOrder()
	if len(cycles) != 0 {
		t.Errorf("cycles = %d, want 0", len(cycles))
	}

	// Deterministic: sorted.
	want := []string{"a", "b", "c"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
