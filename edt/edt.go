// Package edt builds an extended device tree: a graph of devices where each
// device tree node is combined with the binding that describes it.
//
// # Construction
//
// New runs in three phases over a finalized dt.Tree:
//
//  1. Devices: one Device per node in tree order, parent before child. The
//     binding, typed properties, registers and instance numbers are set up
//     here.
//  2. Links: interrupts, GPIOs, PWMs and clocks. These reference other
//     devices by phandle, so they wait until every device exists. Nexus
//     nodes ('<kind>-map') are followed to the final controller.
//  3. Ordinals: every device gets a dependency ordinal that places it after
//     its parent and the controllers it references.
//
// Any malformed input aborts construction with a *dt.SemanticError or a
// BindingError. Non-fatal issues are collected as Diagnostics.
package edt

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/binding"
	"github.com/golangsnmp/godts/internal/graph"
	"github.com/golangsnmp/godts/internal/types"
)

// Config configures New.
type Config struct {
	// Logger receives phase and per-link logging. Nil disables logging.
	Logger *slog.Logger
	// Diagnostics filters the diagnostics the graph records.
	Diagnostics DiagnosticConfig
}

// Graph is the device graph for one device tree.
type Graph struct {
	types.Logger

	tree     *dt.Tree
	registry *binding.Registry

	devices []*Device
	byNode  map[*dt.Node]*Device

	diags types.Diagnostics
}

// New builds the device graph for tree, which must be finalized, using the
// bindings in reg. reg may be nil, in which case no device has a binding.
func New(tree *dt.Tree, reg *binding.Registry, cfg Config) (*Graph, error) {
	g := &Graph{
		Logger:   types.Logger{L: cfg.Logger},
		tree:     tree,
		registry: reg,
		byNode:   make(map[*dt.Node]*Device),
		diags:    types.Diagnostics{Config: cfg.Diagnostics},
	}

	g.Log(slog.LevelDebug, "starting phase", slog.String("phase", "devices"))
	for _, node := range tree.Nodes() {
		d, err := g.newDevice(node)
		if err != nil {
			return nil, err
		}
		g.devices = append(g.devices, d)
		g.byNode[node] = d
	}
	g.Log(slog.LevelDebug, "phase complete", slog.String("phase", "devices"),
		slog.Int("devices", len(g.devices)))

	g.Log(slog.LevelDebug, "starting phase", slog.String("phase", "links"))
	for _, d := range g.devices {
		if err := d.initInterrupts(); err != nil {
			return nil, err
		}
		if err := d.initGPIOs(); err != nil {
			return nil, err
		}
		if err := d.initPWMs(); err != nil {
			return nil, err
		}
		if err := d.initClocks(); err != nil {
			return nil, err
		}
	}
	g.Log(slog.LevelDebug, "phase complete", slog.String("phase", "links"))

	g.Log(slog.LevelDebug, "starting phase", slog.String("phase", "ordinals"))
	if err := g.initOrdinals(); err != nil {
		return nil, err
	}
	g.Log(slog.LevelDebug, "phase complete", slog.String("phase", "ordinals"))

	slices.SortStableFunc(g.devices, func(a, b *Device) int {
		return cmp.Compare(a.Name(), b.Name())
	})

	g.Log(slog.LevelInfo, "device graph complete",
		slog.Int("devices", len(g.devices)),
		slog.Int("diagnostics", len(g.diags.List())))
	return g, nil
}

// initOrdinals numbers the devices so that each one comes after its parent
// and every controller it links to. A cycle is an error.
func (g *Graph) initOrdinals() error {
	deps := graph.New[string]()
	byPath := make(map[string]*Device, len(g.devices))
	for _, d := range g.devices {
		byPath[d.Path()] = d
		deps.AddNode(d.Path())
		if parent := d.Parent(); parent != nil {
			deps.AddEdge(d.Path(), parent.Path())
		}
		for _, controller := range d.controllers() {
			if controller != d {
				deps.AddEdge(d.Path(), controller.Path())
			}
		}
	}

	order, cycles := deps.ResolutionOrder()
	if len(cycles) > 0 {
		node := byPath[cycles[0][0]].node
		return errorf(node, "dependency cycle between %s", strings.Join(cycles[0], ", "))
	}
	for i, path := range order {
		byPath[path].depOrdinal = i
	}

	for _, d := range g.devices {
		path := d.Path()
		for _, dep := range sortedPaths(deps.Dependencies(path)) {
			d.dependsOn = append(d.dependsOn, byPath[dep])
		}
		for _, dep := range deps.Dependents(path) {
			d.requiredBy = append(d.requiredBy, byPath[dep])
		}
		if g.TraceEnabled() {
			g.Trace("dependency ordinal", slog.String("device", path),
				slog.Int("ordinal", d.depOrdinal),
				slog.Int("depends_on", len(d.dependsOn)))
		}
	}
	return nil
}

// controllers returns the devices the device links to through interrupts,
// GPIOs, clocks and PWMs.
func (d *Device) controllers() []*Device {
	var out []*Device
	for _, irq := range d.interrupts {
		out = append(out, irq.Controller)
	}
	for _, prefix := range d.gpioOrder {
		for _, gpio := range d.gpios[prefix] {
			out = append(out, gpio.Controller)
		}
	}
	for _, clk := range d.clocks {
		out = append(out, clk.Controller)
	}
	for _, pwm := range d.pwms {
		out = append(out, pwm.Controller)
	}
	return out
}

func sortedPaths(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return out
}

// TreeCompats returns every string that appears in a 'compatible'
// property in tree. Only bindings for these need to be loaded.
func TreeCompats(tree *dt.Tree) map[string]bool {
	compats := make(map[string]bool)
	for _, node := range tree.Nodes() {
		prop, ok := node.Property("compatible")
		if !ok {
			continue
		}
		strs, err := prop.ToStrings()
		if err != nil {
			// Reported when the device is created
			continue
		}
		for _, s := range strs {
			compats[s] = true
		}
	}
	return compats
}

// Tree returns the device tree the graph was built from.
func (g *Graph) Tree() *dt.Tree { return g.tree }

// Devices returns all devices sorted by name.
func (g *Graph) Devices() []*Device { return slices.Clone(g.devices) }

// Device returns the device at the given path or alias.
func (g *Graph) Device(pathOrAlias string) (*Device, error) {
	node, err := g.tree.GetNode(pathOrAlias)
	if err != nil {
		return nil, err
	}
	return g.byNode[node], nil
}

// DeviceForNode returns the device of node, or nil if node is not part of
// the graph's tree.
func (g *Graph) DeviceForNode(node *dt.Node) *Device {
	return g.byNode[node]
}

// Chosen returns the device that the /chosen property prop points at, e.g.
// "zephyr,console". It returns nil if there is no /chosen node or it lacks
// prop.
func (g *Graph) Chosen(prop string) (*Device, error) {
	chosen, err := g.tree.GetNode("/chosen")
	if err != nil {
		return nil, nil
	}
	p, ok := chosen.Property(prop)
	if !ok {
		return nil, nil
	}
	path, err := p.ToString()
	if err != nil {
		return nil, err
	}
	node, err := g.tree.GetNode(path)
	if err != nil {
		return nil, errorf(chosen, "%s points to %s, which does not exist", prop, path)
	}
	return g.byNode[node], nil
}

// Diagnostics returns the non-fatal issues found while building the graph.
func (g *Graph) Diagnostics() []Diagnostic {
	return g.diags.List()
}

func (g *Graph) String() string {
	return fmt.Sprintf("<Graph, %d devices>", len(g.devices))
}

func (g *Graph) warn(code, path, msg string) {
	g.addDiag(types.SeverityWarning, code, path, msg)
}

func (g *Graph) addDiag(sev types.Severity, code, path, msg string) {
	d := types.Diagnostic{Severity: sev, Code: code, Message: msg, Path: path}
	if !g.diags.Add(d) {
		return
	}
	level := slog.LevelWarn
	if sev == types.SeverityInfo {
		level = slog.LevelDebug
	}
	g.Log(level, msg, slog.String("code", code), slog.String("path", path))
}
