package dt

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/golangsnmp/godts/internal/types"
)

var aliasNameRe = regexp.MustCompile(`^[0-9a-z-]+$`)

// finalizer runs the post-parse phases over a tree.
type finalizer struct {
	tree *Tree
	types.Logger
}

// Finalize resolves references and builds the tree indexes. It runs, in
// order: phandle registration, marker fixup, alias registration, removal of
// unreferenced /omit-if-no-ref/ nodes and label registration. The tree must
// not be used if Finalize returns an error.
func (t *Tree) Finalize(logger *slog.Logger) error {
	if t.root == nil {
		return &SemanticError{Msg: "no root node defined"}
	}
	f := &finalizer{tree: t, Logger: types.Logger{L: types.Component(logger, "finalize")}}

	phases := []struct {
		name string
		run  func() error
	}{
		{"phandles", f.registerPhandles},
		{"fixup", f.fixupProps},
		{"aliases", f.registerAliases},
		{"omit-if-no-ref", f.removeUnreferenced},
		{"labels", f.registerLabels},
	}
	for _, phase := range phases {
		f.Log(slog.LevelDebug, "starting phase", slog.String("phase", phase.name))
		if err := phase.run(); err != nil {
			return err
		}
	}
	t.finalized = true

	f.Log(slog.LevelDebug, "tree finalized",
		slog.Int("nodes", len(t.Nodes())),
		slog.Int("phandles", len(t.PhandleToNode)),
		slog.Int("labels", len(t.LabelToNode)+len(t.LabelToProp)+len(t.LabelToPropOffset)))
	return nil
}

// registerPhandles records explicit phandle properties so that allocation
// skips them, checking their format on the way.
func (f *finalizer) registerPhandles() error {
	t := f.tree
	for _, node := range t.Nodes() {
		prop, ok := node.Property("phandle")
		if !ok {
			continue
		}
		if len(prop.Value) != 4 {
			return semanticErrorf(node.Path(), "bad phandle length (%d), expected 4 bytes", len(prop.Value))
		}

		selfRef := false
		for _, m := range prop.markers {
			if m.Kind != MarkerPhandle {
				continue
			}
			// A node may set its phandle to its own phandle, which forces
			// one to be allocated
			target, err := t.ResolveRef(m.Ref)
			if err != nil {
				return semanticErrorf(node.Path(), "%s", errorMsg(err))
			}
			if target != node {
				return semanticErrorf(node.Path(), "%s refers to another node", prop.Name)
			}
			selfRef = true
			break
		}
		if selfRef {
			continue
		}

		phandle := binary.BigEndian.Uint32(prop.Value)
		if phandle == 0 || phandle == 0xFFFFFFFF {
			return semanticErrorf(node.Path(), "bad value 0x%08x for %s", phandle, prop.Name)
		}
		if prev, dup := t.PhandleToNode[phandle]; dup {
			return semanticErrorf(node.Path(), "duplicated phandle %#x (seen before at %s)", phandle, prev.Path())
		}
		t.PhandleToNode[phandle] = node
	}
	return nil
}

// fixupProps patches path and phandle references into property values and
// records labels within values. References may point forward and nodes may
// be deleted during parsing, so this has to wait until the tree is
// complete.
func (f *finalizer) fixupProps() error {
	t := f.tree
	for _, node := range t.Nodes() {
		for _, prop := range node.Properties() {
			if len(prop.markers) == 0 {
				continue
			}
			// prevPos and pos index the unpatched value
			var res []byte
			prevPos := 0
			for _, m := range prop.markers {
				pos := m.Offset
				res = append(res, prop.Value[prevPos:pos]...)

				if m.Kind == MarkerLabel {
					ol := OffsetLabel{Label: m.Ref, Offset: len(res)}
					if !slices.Contains(prop.OffsetLabels, ol) {
						prop.OffsetLabels = append(prop.OffsetLabels, ol)
					}
					prevPos = pos
					continue
				}

				target, err := t.ResolveRef(m.Ref)
				if err != nil {
					return semanticErrorf(node.Path(), "%s", errorMsg(err))
				}
				target.isReferenced = true

				if m.Kind == MarkerPath {
					res = append(res, target.Path()...)
					res = append(res, 0)
				} else {
					res = append(res, t.nodePhandle(target)...)
					// Skip the placeholder
					pos += 4
				}
				if f.TraceEnabled() {
					f.Trace("marker resolved",
						slog.String("node", node.Path()),
						slog.String("prop", prop.Name),
						slog.String("kind", m.Kind.String()),
						slog.String("ref", m.Ref))
				}
				prevPos = pos
			}
			prop.Value = append(res, prop.Value[prevPos:]...)
			prop.markers = nil
		}
	}
	return nil
}

// nodePhandle returns the phandle bytes for node, allocating the smallest
// free phandle if the node has none. Self-referential phandles (still zero
// at this point) are rewritten in place so their labels survive.
func (t *Tree) nodePhandle(node *Node) []byte {
	prop, ok := node.Property("phandle")
	if !ok {
		prop = &Property{Name: "phandle", node: node, Value: []byte{0, 0, 0, 0}}
	}
	if binary.BigEndian.Uint32(prop.Value) == 0 {
		phandle := uint32(1)
		for {
			if _, used := t.PhandleToNode[phandle]; !used {
				break
			}
			phandle++
		}
		t.PhandleToNode[phandle] = node
		prop.Value = binary.BigEndian.AppendUint32(nil, phandle)
		node.props.Put("phandle", prop)
	}
	return prop.Value
}

// registerAliases fills AliasToNode from /aliases.
func (f *finalizer) registerAliases() error {
	t := f.tree
	// Build into a separate map so alias paths can't go through other
	// aliases while being checked
	aliasToNode := make(map[string]*Node)

	if aliases, ok := t.root.Child("aliases"); ok {
		for _, prop := range aliases.Properties() {
			if !aliasNameRe.MatchString(prop.Name) {
				return semanticErrorf("/aliases",
					"alias property name '%s' should include only characters from [0-9a-z-]", prop.Name)
			}
			path, err := prop.ToString()
			if err != nil {
				return err
			}
			node, err := t.GetNode(path)
			if err != nil {
				return semanticErrorf("/aliases", "bad path for '%s': %s", prop.Name, errorMsg(err))
			}
			aliasToNode[prop.Name] = node
		}
	}

	t.AliasToNode = aliasToNode
	f.Log(slog.LevelDebug, "phase complete", slog.String("phase", "aliases"),
		slog.Int("aliases", len(aliasToNode)))
	return nil
}

// removeUnreferenced deletes /omit-if-no-ref/ nodes that nothing refers to.
func (f *finalizer) removeUnreferenced() error {
	removed := 0
	for _, node := range f.tree.Nodes() {
		if node.omitIfNoRef && !node.isReferenced {
			node.Delete()
			removed++
		}
	}
	f.Log(slog.LevelDebug, "phase complete", slog.String("phase", "omit-if-no-ref"),
		slog.Int("removed", removed))
	return nil
}

// labelTarget is something a label can point at: a node, a property, or an
// offset within a property value.
type labelTarget struct {
	node   *Node
	prop   *Property
	offset int
	inVal  bool
}

func (lt labelTarget) describe() string {
	switch {
	case lt.node != nil:
		return "on " + lt.node.Path()
	case lt.inVal:
		return fmt.Sprintf("in the value of property '%s' of node %s", lt.prop.Name, lt.prop.node.Path())
	default:
		return fmt.Sprintf("on property '%s' of node %s", lt.prop.Name, lt.prop.node.Path())
	}
}

// registerLabels fills the label indexes and rejects labels that point at
// more than one thing.
func (f *finalizer) registerLabels() error {
	t := f.tree
	targets := make(map[string][]labelTarget)
	add := func(label string, lt labelTarget) {
		if !slices.Contains(targets[label], lt) {
			targets[label] = append(targets[label], lt)
		}
	}

	t.LabelToNode = make(map[string]*Node)
	t.LabelToProp = make(map[string]*Property)
	t.LabelToPropOffset = make(map[string]PropOffset)

	for _, node := range t.Nodes() {
		for _, label := range node.Labels {
			add(label, labelTarget{node: node})
			t.LabelToNode[label] = node
		}
		for _, prop := range node.Properties() {
			for _, label := range prop.Labels {
				add(label, labelTarget{prop: prop})
				t.LabelToProp[label] = prop
			}
			for _, ol := range prop.OffsetLabels {
				add(ol.Label, labelTarget{prop: prop, offset: ol.Offset, inVal: true})
				t.LabelToPropOffset[ol.Label] = PropOffset{Prop: prop, Offset: ol.Offset}
			}
		}
	}

	for _, label := range sortedKeys(targets) {
		things := targets[label]
		if len(things) < 2 {
			continue
		}
		descs := make([]string, len(things))
		for i, lt := range things {
			descs[i] = lt.describe()
		}
		slices.Sort(descs)
		return &SemanticError{Msg: fmt.Sprintf("Label '%s' appears %s", label, strings.Join(descs, " and "))}
	}
	return nil
}
