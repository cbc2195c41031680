package dt

import "strings"

// MarkerKind identifies what a value marker refers to.
type MarkerKind int

const (
	// MarkerPath is a '&ref' outside '< >', replaced by the node path.
	MarkerPath MarkerKind = iota
	// MarkerPhandle is a '&ref' inside '< >', replaced by the phandle.
	MarkerPhandle
	// MarkerLabel is a label inside a value.
	MarkerLabel
)

// String returns the marker kind name.
func (k MarkerKind) String() string {
	switch k {
	case MarkerPath:
		return "path"
	case MarkerPhandle:
		return "phandle"
	case MarkerLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Marker is a reference or label within a property value awaiting
// resolution.
type Marker struct {
	Offset int
	Ref    string
	Kind   MarkerKind
}

// OffsetLabel is a label within a property value.
type OffsetLabel struct {
	Label  string
	Offset int
}

// Property is a device tree property ('name = value;').
//
// Values are raw bytes: numbers are big-endian and strings are
// NUL-terminated. 'x = "foo", < 0x12345678 >, [ 9A ];' gives the value
// "foo\x00\x12\x34\x56\x78\x9a".
type Property struct {
	Name   string
	Value  []byte
	Labels []string
	// OffsetLabels lists labels within the value, ordered by offset.
	// Filled in when the tree is finalized.
	OffsetLabels []OffsetLabel

	node    *Node
	markers []Marker
}

// Node returns the node the property is on.
func (p *Property) Node() *Node {
	return p.node
}

// Markers returns the pending markers. The list is empty once the tree is
// finalized.
func (p *Property) Markers() []Marker {
	return p.markers
}

// Reset clears the value and markers ahead of a reassignment.
func (p *Property) Reset() {
	p.Value = nil
	p.markers = nil
}

// AppendValue appends raw bytes to the value.
func (p *Property) AppendValue(b ...byte) {
	p.Value = append(p.Value, b...)
}

// AddMarker records a reference or label at the current end of the value.
// Phandle markers reserve four zero bytes as a placeholder.
func (p *Property) AddMarker(ref string, kind MarkerKind) {
	p.markers = append(p.markers, Marker{Offset: len(p.Value), Ref: ref, Kind: kind})
	if kind == MarkerPhandle {
		p.Value = append(p.Value, 0, 0, 0, 0)
	}
}

// AddLabel adds a label to the property unless it is already present.
func (p *Property) AddLabel(label string) {
	p.Labels = appendNoDup(p.Labels, label)
}

// String returns the DTS text for the property.
func (p *Property) String() string {
	var b strings.Builder
	writeProperty(&b, p)
	return b.String()
}
