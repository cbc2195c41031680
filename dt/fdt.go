package dt

import (
	"fmt"
	"io"

	fdt "github.com/u-root/u-root/pkg/dt"
)

// FDT converts the tree to a flattened device tree. The tree should be
// finalized so that references have been patched into the values.
func (t *Tree) FDT() (*fdt.FDT, error) {
	if t.root == nil {
		return nil, &SemanticError{Msg: "no root node defined"}
	}
	out := &fdt.FDT{
		Header: fdt.Header{
			Magic:           fdt.Magic,
			Version:         17,
			LastCompVersion: 16,
		},
		RootNode: toFDTNode(t.root),
	}
	for _, m := range t.Memreserves {
		out.ReserveEntries = append(out.ReserveEntries, fdt.ReserveEntry{
			Address: m.Address,
			Size:    m.Length,
		})
	}
	return out, nil
}

func toFDTNode(n *Node) *fdt.Node {
	name := n.Name
	if n.parent == nil {
		name = ""
	}
	out := &fdt.Node{Name: name}
	for _, prop := range n.Properties() {
		out.Properties = append(out.Properties, fdt.Property{
			Name:  prop.Name,
			Value: prop.Value,
		})
	}
	for _, child := range n.Children() {
		out.Children = append(out.Children, toFDTNode(child))
	}
	return out
}

// WriteDTB writes the tree to w as a device tree blob.
func (t *Tree) WriteDTB(w io.Writer) error {
	if !t.finalized {
		return &SemanticError{Msg: "tree has unresolved references"}
	}
	blob, err := t.FDT()
	if err != nil {
		return err
	}
	if _, err := blob.Write(w); err != nil {
		return fmt.Errorf("writing device tree blob: %w", err)
	}
	return nil
}

// ReadDTB decodes a device tree blob into a finalized tree. A blob keeps
// no labels, so the tree has none.
func ReadDTB(filename string, r io.ReadSeeker) (*Tree, error) {
	blob, err := fdt.ReadFDT(r)
	if err != nil {
		return nil, fmt.Errorf("reading device tree blob %s: %w", filename, err)
	}
	t := NewTree(filename)
	for _, e := range blob.ReserveEntries {
		t.AddMemreserve(Memreserve{Address: e.Address, Length: e.Size})
	}
	if blob.RootNode != nil {
		fromFDTNode(t.EnsureRoot(), blob.RootNode)
	}
	if err := t.Finalize(nil); err != nil {
		return nil, err
	}
	return t, nil
}

func fromFDTNode(n *Node, src *fdt.Node) {
	for _, prop := range src.Properties {
		n.GetOrCreateProperty(prop.Name).AppendValue(prop.Value...)
	}
	for _, child := range src.Children {
		fromFDTNode(n.GetOrCreateChild(child.Name), child)
	}
}
