package edt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/golangsnmp/godts/internal/binding"
	"github.com/golangsnmp/godts/internal/types"
)

// PropValue is the value of a device property, typed by the 'type' key of
// its binding entry. It is one of Bool, Int, Array, Bytes, String or
// Strings.
type PropValue interface {
	// Type returns the binding type name, e.g. "string-array".
	Type() string
	propValue()
}

// Bool is a 'boolean' property: true if the property is present.
type Bool bool

// Int is an 'int' property: a single cell.
type Int uint32

// Array is an 'array' property: a list of cells.
type Array []uint32

// Bytes is a 'uint8-array' property.
type Bytes []byte

// String is a 'string' property.
type String string

// Strings is a 'string-array' property.
type Strings []string

func (Bool) Type() string    { return "boolean" }
func (Int) Type() string     { return "int" }
func (Array) Type() string   { return "array" }
func (Bytes) Type() string   { return "uint8-array" }
func (String) Type() string  { return "string" }
func (Strings) Type() string { return "string-array" }

func (Bool) propValue()    {}
func (Int) propValue()     {}
func (Array) propValue()   {}
func (Bytes) propValue()   {}
func (String) propValue()  {}
func (Strings) propValue() {}

// Property is a device tree property described by the device's binding.
type Property struct {
	Name  string
	Value PropValue
	// EnumIndex is the index of Value in the binding's 'enum' list, or -1
	// if the binding has no 'enum'.
	EnumIndex int
}

// HasEnum reports whether the binding restricts the property to an
// 'enum' list.
func (p *Property) HasEnum() bool {
	return p.EnumIndex >= 0
}

func (p *Property) String() string {
	s := fmt.Sprintf("%s = %v", p.Name, p.Value)
	if p.HasEnum() {
		s += fmt.Sprintf(" (enum index %d)", p.EnumIndex)
	}
	return s
}

// initProps creates a Property for every entry in the binding's
// 'properties' section that has a value on the node.
func (d *Device) initProps() error {
	d.props = make(map[string]*Property)
	if d.binding == nil {
		return nil
	}

	specs, err := d.binding.Properties()
	if err != nil {
		return err
	}
	for _, spec := range specs {
		// '#size-cells'-style and '*-map' properties need no generation
		if !spec.HasGeneration && !strings.HasPrefix(spec.Name, "#") && !strings.HasSuffix(spec.Name, "-map") {
			d.graph.warn(types.DiagPropNoGeneration, d.Path(),
				fmt.Sprintf("'%s' lacks 'generation' in binding '%s'", spec.Name, d.binding.Path))
		}
		if spec.Type == "" {
			return errorf(d.node, "'%s' lacks 'type' in binding '%s'", spec.Name, d.binding.Path)
		}

		val, err := d.propValue(spec)
		if err != nil {
			return err
		}
		if val == nil {
			continue
		}

		prop := &Property{Name: spec.Name, Value: val, EnumIndex: -1}
		if spec.Enum != nil {
			idx := enumIndex(val, spec.Enum)
			if idx < 0 {
				return errorf(d.node, "value (%v) for property (%s) is not in enumerated list %s",
					val, spec.Name, formatEnum(spec.Enum))
			}
			prop.EnumIndex = idx
		}
		d.props[spec.Name] = prop
		d.propOrder = append(d.propOrder, spec.Name)
	}
	return nil
}

// propValue reads the property spec describes from the node. It returns
// nil if the property is missing.
func (d *Device) propValue(spec binding.PropSpec) (PropValue, error) {
	node := d.node
	if spec.Type == "boolean" {
		return Bool(node.HasProperty(spec.Name)), nil
	}

	prop, ok := node.Property(spec.Name)
	if !ok {
		if !spec.Optional() && d.enabled {
			d.graph.warn(types.DiagRequiredPropMissing, d.Path(),
				fmt.Sprintf("'%s' appears in 'properties' in binding '%s', but not in the device tree node",
					spec.Name, d.binding.Path))
		}
		return nil, nil
	}

	switch spec.Type {
	case "int":
		n, err := prop.ToNum()
		return Int(n), err
	case "array":
		nums, err := prop.ToNums()
		return Array(nums), err
	case "uint8-array":
		return Bytes(slices.Clone(prop.Value)), nil
	case "string":
		s, err := prop.ToString()
		return String(s), err
	case "string-array":
		strs, err := prop.ToStrings()
		return Strings(strs), err
	default:
		d.graph.warn(types.DiagUnknownPropType, d.Path(),
			fmt.Sprintf("'%s' has unknown type '%s' in binding '%s'", spec.Name, spec.Type, d.binding.Path))
		return nil, nil
	}
}

// enumIndex returns the position of val in enum, or -1.
func enumIndex(val PropValue, enum []any) int {
	for i, e := range enum {
		switch v := val.(type) {
		case Int:
			if n, ok := e.(int); ok && int64(n) == int64(v) {
				return i
			}
		case String:
			if s, ok := e.(string); ok && s == string(v) {
				return i
			}
		default:
			if fmt.Sprint(val) == fmt.Sprint(e) {
				return i
			}
		}
	}
	return -1
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
