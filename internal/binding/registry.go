package binding

import (
	"cmp"
	"slices"

	"github.com/golangsnmp/godts/internal/graph"
)

// Key identifies a binding. Bus is "" for bindings that don't declare a
// parent bus.
type Key struct {
	Compat string
	Bus    string
}

// Registry holds the loaded bindings.
type Registry struct {
	bindings map[Key]*Binding
	includes *graph.Graph[string]
}

func newRegistry() *Registry {
	return &Registry{
		bindings: make(map[Key]*Binding),
		includes: graph.New[string](),
	}
}

// NewRegistry returns a registry holding the given bindings, keyed by
// their compatible string and bus.
func NewRegistry(bindings ...*Binding) *Registry {
	r := newRegistry()
	for _, b := range bindings {
		r.add(Key{Compat: b.Compat, Bus: b.Bus()}, b)
	}
	return r
}

func (r *Registry) add(key Key, b *Binding) {
	r.bindings[key] = b
}

// Lookup returns the binding for compat on bus.
func (r *Registry) Lookup(compat, bus string) (*Binding, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.bindings[Key{Compat: compat, Bus: bus}]
	return b, ok
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bindings)
}

// Keys returns the registry keys sorted by compatible string, then bus.
func (r *Registry) Keys() []Key {
	if r == nil {
		return nil
	}
	keys := make([]Key, 0, len(r.bindings))
	for k := range r.bindings {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(cmp.Compare(a.Compat, b.Compat), cmp.Compare(a.Bus, b.Bus))
	})
	return keys
}

// Includes returns the files the binding file at path !include'd
// directly, in include order.
func (r *Registry) Includes(path string) []string {
	if r == nil {
		return nil
	}
	return r.includes.Dependencies(path)
}
