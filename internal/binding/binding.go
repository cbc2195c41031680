// Package binding loads YAML binding files and resolves them into merged
// documents keyed by compatible string and bus.
//
// A binding file declares the compatible string it describes in its
// 'properties' section ('constraint: "vnd,dev"'). Files may pull in other
// files with the '!include' tag, normally under 'inherits'. Inherited
// documents are merged depth-first, with keys from the including file
// taking precedence.
package binding

import (
	"fmt"
)

// Error is a malformed binding, a missing or ambiguous !include, or a bad
// merge.
type Error struct {
	Path string // binding file
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

func errorf(path, format string, args ...any) error {
	return &Error{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Binding is a merged binding document.
type Binding struct {
	// Path is the top-level file the binding was loaded from.
	Path string
	// Compat is the compatible string found by the constraint scan.
	Compat string

	doc *Map
}

// New wraps an already merged document. Used for sub-node bindings and
// by tests.
func New(path, compat string, doc *Map) *Binding {
	if doc == nil {
		doc = NewMap()
	}
	return &Binding{Path: path, Compat: compat, doc: doc}
}

// Title returns the 'title' key.
func (b *Binding) Title() string {
	return b.doc.getString("title")
}

// Description returns the 'description' key.
func (b *Binding) Description() string {
	return b.doc.getString("description")
}

// Bus returns the bus the device itself sits on ('parent: bus:'), or ""
// if the binding doesn't declare one.
func (b *Binding) Bus() string {
	if parent := b.doc.getMap("parent"); parent != nil {
		return parent.getString("bus")
	}
	return ""
}

// ChildBus returns the bus that children of the device sit on
// ('child: bus:'), or "".
func (b *Binding) ChildBus() string {
	if child := b.doc.getMap("child"); child != nil {
		return child.getString("bus")
	}
	return ""
}

// SubNode returns the binding that applies to child nodes without a
// 'compatible' property, or nil.
func (b *Binding) SubNode() *Binding {
	sub := b.doc.getMap("sub-node")
	if sub == nil {
		return nil
	}
	return New(b.Path, b.Compat, sub)
}

// HasCells reports whether the binding has a '#cells' key.
func (b *Binding) HasCells() bool {
	return b.doc.Has("#cells")
}

// CellNames returns the '#cells' list naming the cells of a specifier.
// A missing list is treated as empty. ok is false if '#cells' is present
// but not a list.
func (b *Binding) CellNames() (names []string, ok bool) {
	v, present := b.doc.Get("#cells")
	if !present {
		return nil, true
	}
	list, isList := v.([]any)
	if !isList {
		return nil, false
	}
	for _, e := range list {
		names = append(names, formatValue(e))
	}
	return names, true
}

// PropSpec is one entry of a binding's 'properties' section.
type PropSpec struct {
	Name        string
	Type        string // "" if missing
	Category    string // "required", "optional" or ""
	Generation  string
	Description string
	Constraint  string

	// HasGeneration is false when the entry has no 'generation' key.
	HasGeneration bool
	// Enum lists the allowed values, or is nil when there is no 'enum'.
	Enum []any
}

// Optional reports whether the property has 'category: optional'.
func (p PropSpec) Optional() bool {
	return p.Category == "optional"
}

// Properties returns the 'properties' section in declaration order.
func (b *Binding) Properties() ([]PropSpec, error) {
	v, ok := b.doc.Get("properties")
	if !ok || v == nil {
		return nil, nil
	}
	props, ok := v.(*Map)
	if !ok {
		return nil, errorf(b.Path, "'properties' should be a mapping, not %s", formatValue(v))
	}

	specs := make([]PropSpec, 0, props.Len())
	for _, name := range props.Keys() {
		opts := props.getMap(name)
		if opts == nil {
			raw, _ := props.Get(name)
			return nil, errorf(b.Path, "entry for property '%s' should be a mapping, not %s", name, formatValue(raw))
		}
		spec := PropSpec{
			Name:          name,
			Type:          opts.getString("type"),
			Category:      opts.getString("category"),
			Generation:    opts.getString("generation"),
			Description:   opts.getString("description"),
			Constraint:    opts.getString("constraint"),
			HasGeneration: opts.Has("generation"),
		}
		if enum, ok := opts.Get("enum"); ok {
			list, isList := enum.([]any)
			if !isList {
				return nil, errorf(b.Path, "'enum' for property '%s' should be a list, not %s", name, formatValue(enum))
			}
			spec.Enum = list
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
