package binding

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Map is a YAML mapping that remembers key order. Values are *Map, []any,
// or the scalars yaml.v3 decodes to (string, int, float64, bool, nil).
type Map struct {
	m *linkedhashmap.Map
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{m: linkedhashmap.New()}
}

// Get returns the value for key.
func (m *Map) Get(key string) (any, bool) {
	return m.m.Get(key)
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.m.Get(key)
	return ok
}

// Set stores v under key. A new key goes last; an existing key keeps its
// position.
func (m *Map) Set(key string, v any) {
	m.m.Put(key, v)
}

// Delete removes key.
func (m *Map) Delete(key string) {
	m.m.Remove(key)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.m.Size())
	for _, k := range m.m.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return m.m.Size()
}

// String formats the mapping as "{k: v, ...}".
func (m *Map) String() string {
	return formatValue(m)
}

// getMap returns m[key] if it is a mapping.
func (m *Map) getMap(key string) *Map {
	v, _ := m.Get(key)
	sub, _ := v.(*Map)
	return sub
}

// getString returns m[key] as a string, or "" if absent or null.
func (m *Map) getString(key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return formatValue(v)
}

// equalValues compares two decoded YAML values.
func equalValues(a, b any) bool {
	switch a := a.(type) {
	case *Map:
		b, ok := b.(*Map)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for _, k := range a.Keys() {
			av, _ := a.Get(k)
			bv, ok := b.Get(k)
			if !ok || !equalValues(av, bv) {
				return false
			}
		}
		return true
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equalValues(a[i], b[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// formatValue renders a decoded YAML value for messages.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case *Map:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			val, _ := v.Get(k)
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(formatValue(val))
		}
		b.WriteByte('}')
		return b.String()
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
