package dt

import (
	"fmt"
	"strings"
)

// String returns the tree as DTS text. Parsing the output gives back an
// equivalent tree.
func (t *Tree) String() string {
	var b strings.Builder
	b.WriteString("/dts-v1/;\n\n")

	if len(t.Memreserves) > 0 {
		for _, m := range t.Memreserves {
			for _, label := range m.Labels {
				b.WriteString(label + ": ")
			}
			fmt.Fprintf(&b, "/memreserve/ 0x%016x 0x%016x;\n", m.Address, m.Length)
		}
		b.WriteString("\n")
	}

	if t.root != nil {
		writeNode(&b, t.root, 0)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("\t", depth)

	b.WriteString(indent)
	for _, label := range n.Labels {
		b.WriteString(label + ": ")
	}
	b.WriteString(n.Name + " {\n")

	for _, prop := range n.Properties() {
		b.WriteString(indent + "\t")
		writeProperty(b, prop)
		b.WriteString("\n")
	}
	for _, child := range n.Children() {
		writeNode(b, child, depth+1)
		b.WriteString("\n")
	}

	b.WriteString(indent + "};")
}

// writeProperty renders the value as a byte array, which is lossless.
func writeProperty(b *strings.Builder, p *Property) {
	for _, label := range p.Labels {
		b.WriteString(label + ": ")
	}
	b.WriteString(p.Name)

	if len(p.Value) == 0 {
		b.WriteString(";")
		return
	}

	b.WriteString(" = [")
	offset := 0
	for _, ol := range p.OffsetLabels {
		for _, c := range p.Value[offset:ol.Offset] {
			fmt.Fprintf(b, " %02X", c)
		}
		b.WriteString(" " + ol.Label + ":")
		offset = ol.Offset
	}
	for _, c := range p.Value[offset:] {
		fmt.Fprintf(b, " %02X", c)
	}
	b.WriteString(" ];")
}
