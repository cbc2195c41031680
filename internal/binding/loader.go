package binding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/golangsnmp/godts/internal/graph"
	"github.com/golangsnmp/godts/internal/types"
)

// compatRe finds the compatible string a binding declares. Only the first
// match in a file counts.
var compatRe = regexp.MustCompile(`^\s+constraint:\s*"([^"]*)"`)

// Config configures Load.
type Config struct {
	Logger *slog.Logger
	// Diagnostics receives non-fatal findings. May be nil.
	Diagnostics *types.Diagnostics
}

// loader holds the state of one Load call. The !include handler lives
// here, so separate loads never share state.
type loader struct {
	types.Logger
	src   Source
	diags *types.Diagnostics

	byBase   map[string][]string   // basename -> paths
	docs     map[string]*yaml.Node // parsed files
	includes *graph.Graph[string]  // includer -> included
}

// Load reads the bindings in src whose compatible string is in compats and
// returns them keyed by (compatible, bus). Bindings for compatible strings
// that do not occur in compats are never fully parsed.
func Load(src Source, compats map[string]bool, cfg Config) (*Registry, error) {
	l := &loader{
		Logger:   types.Logger{L: cfg.Logger},
		src:      src,
		diags:    cfg.Diagnostics,
		byBase:   make(map[string][]string),
		docs:     make(map[string]*yaml.Node),
		includes: graph.New[string](),
	}
	return l.load(compats)
}

func (l *loader) load(compats map[string]bool) (*Registry, error) {
	files, err := l.src.ListFiles()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		base := baseName(path)
		l.byBase[base] = append(l.byBase[base], path)
	}

	l.Log(slog.LevelDebug, "starting phase", slog.String("phase", "bindings"),
		slog.Int("files", len(files)))

	reg := newRegistry()
	for _, path := range files {
		compat, err := l.scanCompat(path)
		if err != nil {
			return nil, err
		}
		if compat == "" || !compats[compat] {
			continue
		}

		b, err := l.loadBinding(path, compat)
		if err != nil {
			return nil, err
		}
		key := Key{Compat: compat, Bus: b.Bus()}
		if prev, ok := reg.bindings[key]; ok {
			l.warn(types.DiagBindingDuplicate, path,
				fmt.Sprintf("binding for '%s'%s also defined in '%s', which is replaced", compat, busSuffix(key.Bus), prev.Path))
		}
		reg.add(key, b)

		if l.TraceEnabled() {
			l.Trace("loaded binding", slog.String("path", path),
				slog.String("compat", compat), slog.String("bus", key.Bus))
		}
	}
	reg.includes = l.includes

	l.Log(slog.LevelDebug, "phase complete", slog.String("phase", "bindings"),
		slog.Int("bindings", reg.Len()))
	return reg, nil
}

// scanCompat returns the compatible string declared by the file at path,
// or "" if there is none. It avoids a full YAML parse.
func (l *loader) scanCompat(path string) (string, error) {
	r, err := l.src.Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if m := compatRe.FindStringSubmatch(sc.Text()); m != nil {
			return m[1], nil
		}
	}
	return "", sc.Err()
}

// loadBinding loads a top-level binding and merges its inherited
// documents into it.
func (l *loader) loadBinding(path, compat string) (*Binding, error) {
	v, err := l.loadFile(path)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*Map)
	if !ok {
		return nil, errorf(path, "expected a mapping at the top level, not %s", formatValue(v))
	}
	merged, err := l.merge(path, doc)
	if err != nil {
		return nil, err
	}
	return New(path, compat, merged), nil
}

// loadFile parses path and converts it to plain values, resolving
// !include tags. Each call returns fresh values, so merging one copy never
// affects another.
func (l *loader) loadFile(path string) (any, error) {
	node, err := l.parse(path)
	if err != nil {
		return nil, err
	}
	if node.Kind == 0 || len(node.Content) == 0 {
		return nil, nil
	}
	return l.convert(path, node.Content[0])
}

func (l *loader) parse(path string) (*yaml.Node, error) {
	if node, ok := l.docs[path]; ok {
		return node, nil
	}
	r, err := l.src.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil && err != io.EOF {
		return nil, errorf(path, "%v", err)
	}
	l.docs[path] = &node
	return &node, nil
}

// convert turns a YAML node into *Map, []any and scalar values.
func (l *loader) convert(path string, n *yaml.Node) (any, error) {
	if n.Tag == "!include" {
		return l.include(path, n)
	}

	switch n.Kind {
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := l.convert(path, n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := l.convert(path, c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.AliasNode:
		return l.convert(path, n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return l.convert(path, n.Content[0])
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, errorf(path, "line %d: %v", n.Line, err)
		}
		return v, nil
	}
}

// include implements '!include foo.yaml' and '!include [foo.yaml,
// bar.yaml]'. Both forms give a list with one document per file.
func (l *loader) include(path string, n *yaml.Node) (any, error) {
	var names []string
	switch n.Kind {
	case yaml.ScalarNode:
		names = []string{n.Value}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errorf(path, "line %d: expected file names in !include list", c.Line)
			}
			names = append(names, c.Value)
		}
	default:
		return nil, errorf(path, "line %d: unrecognised node type in !include statement", n.Line)
	}

	docs := make([]any, 0, len(names))
	for _, name := range names {
		target, err := l.findInclude(path, name)
		if err != nil {
			return nil, err
		}

		l.includes.AddEdge(path, target)
		if cycles := l.includes.FindCycles(); len(cycles) > 0 {
			return nil, errorf(path, "recursive !include: %s", strings.Join(cycleChain(cycles[0]), " -> "))
		}

		if l.TraceEnabled() {
			l.Trace("including binding", slog.String("from", path), slog.String("file", target))
		}
		doc, err := l.loadFile(target)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// findInclude maps an !include file name to a path. !include takes just
// the basename, so the name must be unique among all binding files.
func (l *loader) findInclude(path, name string) (string, error) {
	paths := l.byBase[name]
	switch len(paths) {
	case 0:
		return "", errorf(path, "'%s' not found", name)
	case 1:
		return paths[0], nil
	default:
		return "", errorf(path, "multiple candidates for '%s' in !include: %s", name, strings.Join(paths, ", "))
	}
}

// cycleChain closes a cycle for display: [a b] becomes [a b a].
func cycleChain(cycle []string) []string {
	return append(slices.Clone(cycle), cycle[0])
}

// merge merges top into the documents listed under its 'inherits' key,
// depth-first. Keys from top win over inherited ones. path is the
// top-level binding file, used in messages.
func (l *loader) merge(path string, top *Map) (*Map, error) {
	l.checkExpectedKeys(path, top)

	inherits, ok := top.Get("inherits")
	if !ok {
		return top, nil
	}
	top.Delete("inherits")

	list, ok := inherits.([]any)
	if !ok {
		return nil, errorf(path, "'inherits' should be a list of !include'd bindings, not %s", formatValue(inherits))
	}
	for _, v := range list {
		inherited, ok := v.(*Map)
		if !ok {
			return nil, errorf(path, "inherited binding should be a mapping, not %s", formatValue(v))
		}
		inherited, err := l.merge(path, inherited)
		if err != nil {
			return nil, err
		}
		if err := l.mergeProps(path, "", inherited, top); err != nil {
			return nil, err
		}
		top = inherited
	}
	return top, nil
}

// checkExpectedKeys warns about a missing title, version or description.
func (l *loader) checkExpectedKeys(path string, doc *Map) {
	for _, key := range []string{"title", "version", "description"} {
		if !doc.Has(key) {
			l.warn(types.DiagBindingMissingKey, path, fmt.Sprintf("binding lacks '%s' property", key))
		}
	}
}

// mergeProps merges from into to. Mappings present on both sides merge
// recursively; any other value from 'from' replaces the one in 'to'.
// parent names the mapping holding the keys, for messages.
func (l *loader) mergeProps(path, parent string, to, from *Map) error {
	for _, key := range from.Keys() {
		fv, _ := from.Get(key)
		tv, exists := to.Get(key)

		fm, fromIsMap := fv.(*Map)
		tm, toIsMap := tv.(*Map)
		if fromIsMap && toIsMap {
			if err := l.mergeProps(path, key, tm, fm); err != nil {
				return err
			}
			continue
		}

		if exists && !equalValues(tv, fv) {
			if err := l.checkOverwrite(path, parent, key, tv, fv); err != nil {
				return err
			}
		}
		to.Set(key, fv)
	}
	return nil
}

// checkOverwrite handles an includer replacing a differing !include'd
// value. title, version and description are replaced silently, as is a
// category going from optional to required. A category going from
// required to optional is an error. Anything else warns.
func (l *loader) checkOverwrite(path, parent, key string, oldVal, newVal any) error {
	switch key {
	case "title", "version", "description":
		return nil
	case "category":
		switch {
		case oldVal == "optional" && newVal == "required":
			return nil
		case oldVal == "required" && newVal == "optional":
			return errorf(path, "%s'category' from !include'd file narrowed from 'required' to 'optional'", inParent(parent))
		}
	}
	l.warn(types.DiagBindingOverwrite, path,
		fmt.Sprintf("%s'%s' from !include'd file overwritten ('%s' replaced with '%s')",
			inParent(parent), key, formatValue(oldVal), formatValue(newVal)))
	return nil
}

func inParent(parent string) string {
	if parent == "" {
		return ""
	}
	return "(in '" + parent + "') "
}

func busSuffix(bus string) string {
	if bus == "" {
		return ""
	}
	return " on bus '" + bus + "'"
}

func (l *loader) warn(code, path, msg string) {
	d := types.Diagnostic{Severity: types.SeverityWarning, Code: code, Message: msg, Path: path}
	if l.diags != nil && !l.diags.Add(d) {
		return
	}
	l.Log(slog.LevelWarn, msg, slog.String("binding", path), slog.String("code", code))
}
