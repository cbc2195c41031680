package dt

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Node is a device tree node ('name { ... };').
type Node struct {
	// Name is the node name including any unit address ("uart@4000").
	Name string
	// Labels lists the node's labels in declaration order, without
	// duplicates.
	Labels []string

	tree   *Tree
	parent *Node

	// Both maps keep insertion order, which is the order nodes and
	// properties are printed in.
	children *linkedhashmap.Map // string -> *Node
	props    *linkedhashmap.Map // string -> *Property

	omitIfNoRef  bool
	isReferenced bool
}

func newNode(tree *Tree, parent *Node, name string) *Node {
	return &Node{
		Name:     name,
		tree:     tree,
		parent:   parent,
		children: linkedhashmap.New(),
		props:    linkedhashmap.New(),
	}
}

// Tree returns the tree the node belongs to.
func (n *Node) Tree() *Tree {
	return n.tree
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// UnitAddr returns the part of the name after '@', or "" if there is none.
func (n *Node) UnitAddr() string {
	_, addr, _ := strings.Cut(n.Name, "@")
	return addr
}

// Path returns the absolute path of the node, e.g. "/soc/uart@4000".
func (n *Node) Path() string {
	var names []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		names = append(names, cur.Name)
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/")
}

// Child returns the child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	v, ok := n.children.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Node), true
}

// Children returns the children in insertion order.
func (n *Node) Children() []*Node {
	values := n.children.Values()
	out := make([]*Node, len(values))
	for i, v := range values {
		out[i] = v.(*Node)
	}
	return out
}

// Property returns the property with the given name.
func (n *Node) Property(name string) (*Property, bool) {
	v, ok := n.props.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Property), true
}

// HasProperty reports whether the node has a property with the given name.
func (n *Node) HasProperty(name string) bool {
	_, ok := n.props.Get(name)
	return ok
}

// Properties returns the properties in insertion order.
func (n *Node) Properties() []*Property {
	values := n.props.Values()
	out := make([]*Property, len(values))
	for i, v := range values {
		out[i] = v.(*Property)
	}
	return out
}

// Nodes returns n and all its descendants in depth-first order. Children
// are visited sorted by name.
func (n *Node) Nodes() []*Node {
	out := []*Node{n}
	children := n.Children()
	slices.SortFunc(children, func(a, b *Node) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, child := range children {
		out = append(out, child.Nodes()...)
	}
	return out
}

// GetOrCreateChild returns the child with the given name, creating it if
// it does not exist. Reopened nodes keep their existing contents.
func (n *Node) GetOrCreateChild(name string) *Node {
	if child, ok := n.Child(name); ok {
		return child
	}
	child := newNode(n.tree, n, name)
	n.children.Put(name, child)
	return child
}

// GetOrCreateProperty returns the property with the given name, creating
// an empty one if it does not exist.
func (n *Node) GetOrCreateProperty(name string) *Property {
	if prop, ok := n.Property(name); ok {
		return prop
	}
	prop := &Property{Name: name, node: n}
	n.props.Put(name, prop)
	return prop
}

// DeleteProperty removes the named property. Missing properties are
// ignored.
func (n *Node) DeleteProperty(name string) {
	n.props.Remove(name)
}

// Delete detaches the node from its parent. Deleting the root is a no-op.
func (n *Node) Delete() {
	if n.parent != nil {
		n.parent.children.Remove(n.Name)
	}
}

// AddLabel adds a label to the node unless it is already present.
func (n *Node) AddLabel(label string) {
	n.Labels = appendNoDup(n.Labels, label)
}

// MarkOmitIfNoRef flags the node for removal if nothing references it.
func (n *Node) MarkOmitIfNoRef() {
	n.omitIfNoRef = true
}

// String returns the DTS text for the node and its subtree.
func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
