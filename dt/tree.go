// Package dt provides the low-level device tree model: a tree of nodes and
// properties parsed from DTS text, with phandle, label and alias indexes.
//
// Trees are produced by godts.Parse and godts.ParseFile. The mutating
// methods (GetOrCreateChild, AddMarker, ...) exist for the parser; a tree
// returned by godts has been finalized and should be treated as read-only.
package dt

import (
	"fmt"
	"strings"
)

// Memreserve is a /memreserve/ entry.
type Memreserve struct {
	Labels  []string
	Address uint64
	Length  uint64
}

// PropOffset locates a label inside a property value.
type PropOffset struct {
	Prop   *Property
	Offset int
}

// Tree is a parsed device tree.
type Tree struct {
	// Filename is the file currently being parsed, or the top-level file
	// once parsing is done.
	Filename string

	// Memreserves lists the /memreserve/ entries in declaration order.
	Memreserves []Memreserve

	// AliasToNode maps alias names from /aliases to nodes.
	AliasToNode map[string]*Node
	// LabelToNode maps node labels to nodes.
	LabelToNode map[string]*Node
	// LabelToProp maps property labels to properties.
	LabelToProp map[string]*Property
	// LabelToPropOffset maps labels within property values to their
	// location.
	LabelToPropOffset map[string]PropOffset
	// PhandleToNode maps phandle values to nodes.
	PhandleToNode map[uint32]*Node

	root      *Node
	finalized bool
}

// NewTree returns an empty tree for the given source file.
func NewTree(filename string) *Tree {
	return &Tree{
		Filename:          filename,
		AliasToNode:       make(map[string]*Node),
		LabelToNode:       make(map[string]*Node),
		LabelToProp:       make(map[string]*Property),
		LabelToPropOffset: make(map[string]PropOffset),
		PhandleToNode:     make(map[uint32]*Node),
	}
}

// Root returns the root node, or nil if no root has been defined yet.
func (t *Tree) Root() *Node {
	return t.root
}

// EnsureRoot returns the root node, creating it if needed.
func (t *Tree) EnsureRoot() *Node {
	if t.root == nil {
		t.root = newNode(t, nil, "/")
	}
	return t.root
}

// AddMemreserve appends a /memreserve/ entry.
func (t *Tree) AddMemreserve(m Memreserve) {
	t.Memreserves = append(t.Memreserves, m)
}

// Nodes returns every node in the tree in depth-first order, children
// visited sorted by name.
func (t *Tree) Nodes() []*Node {
	if t.root == nil {
		return nil
	}
	return t.root.Nodes()
}

// GetNode returns the node with the given path or alias. Paths start with
// '/'; anything else is looked up as an alias, optionally followed by a
// relative path ("serial0/child").
func (t *Tree) GetNode(path string) (*Node, error) {
	var (
		cur       *Node
		rest      string
		component int
	)
	if strings.HasPrefix(path, "/") {
		cur = t.root
		rest = path
	} else {
		alias, after, _ := strings.Cut(path, "/")
		node, ok := t.AliasToNode[alias]
		if !ok {
			if !t.finalized {
				return nil, &SemanticError{Msg: "node path does not start with '/'"}
			}
			return nil, &SemanticError{Msg: fmt.Sprintf(
				"no alias '%s' found -- did you forget the leading '/' in the node path?", alias)}
		}
		cur = node
		rest = after
		component = 1
	}

	for _, name := range strings.Split(rest, "/") {
		// Collapse repeated '/' and allow a trailing one
		if name == "" {
			continue
		}
		component++
		var child *Node
		ok := false
		if cur != nil {
			child, ok = cur.Child(name)
		}
		if !ok {
			return nil, &SemanticError{Msg: fmt.Sprintf(
				"component %d ('%s') in path '%s' does not exist", component, name, path)}
		}
		cur = child
	}
	if cur == nil {
		return nil, &SemanticError{Msg: "no root node defined"}
	}
	return cur, nil
}

// HasNode reports whether GetNode would succeed for path.
func (t *Tree) HasNode(path string) bool {
	_, err := t.GetNode(path)
	return err == nil
}

// ResolveRef returns the node a reference points to. ref is either a label
// ("uart0") or a braced path ("{/soc/uart@1000}"), without the leading '&'.
func (t *Tree) ResolveRef(ref string) (*Node, error) {
	if strings.HasPrefix(ref, "{") {
		return t.GetNode(strings.TrimSuffix(ref[1:], "}"))
	}
	// Labels are searched in the live tree, so labels of deleted nodes
	// stop resolving
	for _, node := range t.Nodes() {
		for _, label := range node.Labels {
			if label == ref {
				return node, nil
			}
		}
	}
	return nil, &SemanticError{Msg: fmt.Sprintf("undefined node label '%s'", ref)}
}

// Aliases returns the aliases that point at node.
func (t *Tree) Aliases(node *Node) []string {
	var aliases []string
	for _, alias := range sortedKeys(t.AliasToNode) {
		if t.AliasToNode[alias] == node {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

// appendNoDup appends s to list unless it is already present.
func appendNoDup(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
