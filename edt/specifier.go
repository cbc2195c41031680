package edt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golangsnmp/godts/dt"
)

// Specifier is a decoded specifier: the cells following a phandle, named
// by the '#cells' list in the controller's binding.
type Specifier struct {
	Names  []string
	Values []uint32
}

// Get returns the value of the named cell.
func (s Specifier) Get(name string) (uint32, bool) {
	for i, n := range s.Names {
		if n == name {
			return s.Values[i], true
		}
	}
	return 0, false
}

// Map returns the cells as a map from name to value.
func (s Specifier) Map() map[string]uint32 {
	m := make(map[string]uint32, len(s.Names))
	for i, n := range s.Names {
		m[n] = s.Values[i]
	}
	return m
}

// String formats the specifier as "{name: value, ...}".
func (s Specifier) String() string {
	parts := make([]string, len(s.Names))
	for i, n := range s.Names {
		parts[i] = fmt.Sprintf("%s: %d", n, s.Values[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Interrupt is an interrupt generated by a device.
type Interrupt struct {
	// Name is from 'interrupt-names', or "".
	Name string
	// Controller is the interrupt controller the interrupt ends up at,
	// after any 'interrupt-map' translation.
	Controller *Device
	Specifier  Specifier
}

// GPIO is a GPIO used by a device.
type GPIO struct {
	// Name is the <name> part of a '<name>-gpios' property, or "" for
	// 'gpios'.
	Name string
	// Controller is the GPIO controller, after any 'gpio-map' translation.
	Controller *Device
	Specifier  Specifier
}

// Clock is a clock used by a device.
type Clock struct {
	// Name is from 'clock-names', or "".
	Name       string
	Controller *Device
	Specifier  Specifier
}

// PWM is a PWM used by a device.
type PWM struct {
	// Name is from 'pwm-names', or "".
	Name       string
	Controller *Device
	Specifier  Specifier
}

// link is a resolved (controller, specifier) pair. Interrupt, GPIO, Clock
// and PWM share its layout.
type link struct {
	Name       string
	Controller *Device
	Specifier  Specifier
}

// rawLink is a (node, raw specifier) pair before naming.
type rawLink struct {
	node *dt.Node
	spec []byte
}

func (d *Device) initInterrupts() error {
	raw, err := interrupts(d.node)
	if err != nil {
		return err
	}
	links, err := d.resolveLinks(raw, "interrupt", "interrupt-names")
	if err != nil {
		return err
	}
	for _, l := range links {
		d.interrupts = append(d.interrupts, Interrupt(l))
	}
	return nil
}

func (d *Device) initGPIOs() error {
	d.gpios = make(map[string][]GPIO)
	for _, prop := range d.node.Properties() {
		prefix, ok := gpioPrefix(prop.Name)
		if !ok {
			continue
		}
		raw, err := phandleValList(prop, "#gpio-cells")
		if err != nil {
			return err
		}
		for i, r := range raw {
			node, spec, err := mapGPIO(d.node, r.node, r.spec)
			if err != nil {
				return err
			}
			raw[i] = rawLink{node: node, spec: spec}
		}
		links, err := d.resolveLinks(raw, "GPIO", "")
		if err != nil {
			return err
		}
		gpios := make([]GPIO, 0, len(links))
		for _, l := range links {
			l.Name = prefix
			gpios = append(gpios, GPIO(l))
		}
		d.gpios[prefix] = gpios
		d.gpioOrder = append(d.gpioOrder, prefix)
	}
	return nil
}

// gpioPrefix returns the <prefix> of a '<prefix>-gpios' property name, or
// "" for 'gpios'.
func gpioPrefix(name string) (string, bool) {
	if name == "gpios" {
		return "", true
	}
	return strings.CutSuffix(name, "-gpios")
}

func (d *Device) initClocks() error {
	raw, err := optionalPhandleValList(d.node, "clocks", "#clock-cells")
	if err != nil {
		return err
	}
	links, err := d.resolveLinks(raw, "clock", "clock-names")
	if err != nil {
		return err
	}
	for _, l := range links {
		d.clocks = append(d.clocks, Clock(l))
	}
	return nil
}

func (d *Device) initPWMs() error {
	raw, err := optionalPhandleValList(d.node, "pwms", "#pwm-cells")
	if err != nil {
		return err
	}
	links, err := d.resolveLinks(raw, "PWM", "pwm-names")
	if err != nil {
		return err
	}
	for _, l := range links {
		d.pwms = append(d.pwms, PWM(l))
	}
	return nil
}

// resolveLinks names the specifiers in raw and attaches the names from
// the namesProp property, if any.
func (d *Device) resolveLinks(raw []rawLink, kind, namesProp string) ([]link, error) {
	links := make([]link, 0, len(raw))
	for _, r := range raw {
		controller := d.graph.byNode[r.node]
		spec, err := d.namedCells(controller, r.spec, kind)
		if err != nil {
			return nil, err
		}
		links = append(links, link{Controller: controller, Specifier: spec})
		if d.graph.TraceEnabled() {
			d.graph.Trace("resolved specifier", slog.String("device", d.Path()),
				slog.String("kind", kind), slog.String("controller", controller.Path()),
				slog.String("specifier", spec.String()))
		}
	}

	if namesProp != "" {
		names, err := readNames(d.node, namesProp, len(links))
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			links[i].Name = name
		}
	}
	return links, nil
}

// namedCells decodes spec using the '#cells' list from the controller's
// binding.
func (d *Device) namedCells(controller *Device, spec []byte, kind string) (Specifier, error) {
	if controller.binding == nil {
		return Specifier{}, errorf(d.node, "%s controller %s lacks binding", kind, controller.Path())
	}
	names, ok := controller.binding.CellNames()
	if !ok {
		return Specifier{}, errorf(d.node, "binding for %s controller %s has malformed #cells array",
			kind, controller.Path())
	}

	nums, err := dt.ToNums(spec, 4)
	if err != nil {
		return Specifier{}, atNode(d.node, err)
	}
	if len(nums) != len(names) {
		return Specifier{}, errorf(d.node, "unexpected #cells length in binding for %s - %d instead of %d",
			controller.Path(), len(names), len(nums))
	}
	values := make([]uint32, len(nums))
	for i, n := range nums {
		values[i] = uint32(n)
	}
	return Specifier{Names: names, Values: values}, nil
}

// readNames reads a '*-names' property, which must have one entry per object.
// Returns nil if the property is missing.
func readNames(node *dt.Node, prop string, count int) ([]string, error) {
	p, ok := node.Property(prop)
	if !ok {
		return nil, nil
	}
	strs, err := p.ToStrings()
	if err != nil {
		return nil, err
	}
	if len(strs) != count {
		return nil, errorf(node, "%s property has %d strings, expected %d strings", prop, len(strs), count)
	}
	return strs, nil
}

// interrupts returns the interrupts of node, each mapped to its final
// controller. 'interrupts-extended' takes precedence over 'interrupts'.
func interrupts(node *dt.Node) ([]rawLink, error) {
	var raw []rawLink
	if prop, ok := node.Property("interrupts-extended"); ok {
		var err error
		raw, err = phandleValList(prop, "#interrupt-cells")
		if err != nil {
			return nil, err
		}
	} else if prop, ok := node.Property("interrupts"); ok {
		// Same as 'interrupts-extended' with one interrupt parent for all
		// interrupts
		iparent, err := interruptParent(node)
		if err != nil {
			return nil, err
		}
		cells, err := ownCells(iparent, "#interrupt-cells")
		if err != nil {
			return nil, err
		}
		specs, err := slice(prop, 4*cells)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			raw = append(raw, rawLink{node: iparent, spec: spec})
		}
	}

	for i, r := range raw {
		controller, spec, err := mapInterrupt(node, r.node, r.spec)
		if err != nil {
			return nil, err
		}
		raw[i] = rawLink{node: controller, spec: spec}
	}
	return raw, nil
}

// interruptParent returns the node named by the nearest 'interrupt-parent'
// on node or its ancestors.
func interruptParent(node *dt.Node) (*dt.Node, error) {
	for n := node; n != nil; n = n.Parent() {
		if prop, ok := n.Property("interrupt-parent"); ok {
			return prop.ToNode()
		}
	}
	return nil, errorf(node, "has 'interrupts' but no 'interrupt-parent' on it or its ancestors")
}

// mapInterrupt maps an interrupt specifier sent to parent through any
// 'interrupt-map' tables until it reaches an interrupt controller.
func mapInterrupt(child, parent *dt.Node, spec []byte) (*dt.Node, []byte, error) {
	if parent.HasProperty("interrupt-controller") {
		return parent, spec, nil
	}

	unitAddr, err := rawUnitAddr(child)
	if err != nil {
		return nil, nil, err
	}
	childSpec := append(unitAddr, spec...)

	// Interrupt specifiers in 'interrupt-map' are prefixed with a unit
	// address sized by the #address-cells on the target node itself
	specLen := func(node *dt.Node) (int, error) {
		addrCells, err := mapAddressCells(node)
		if err != nil {
			return 0, err
		}
		intCells, err := ownCells(node, "#interrupt-cells")
		if err != nil {
			return 0, err
		}
		return 4 * (addrCells + intCells), nil
	}

	controller, raw, err := mapSpecifier("interrupt", child, parent, childSpec, specLen)
	if err != nil {
		return nil, nil, err
	}

	// Strip the unit address part
	addrCells, err := mapAddressCells(controller)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) < 4*addrCells {
		return nil, nil, errorf(controller, "interrupt specifier shorter than #address-cells (while handling interrupt-map)")
	}
	return controller, raw[4*addrCells:], nil
}

// mapAddressCells returns the #address-cells set on node itself.
func mapAddressCells(node *dt.Node) (int, error) {
	prop, ok := node.Property("#address-cells")
	if !ok {
		return 0, errorf(node, "missing #address-cells (while handling interrupt-map)")
	}
	n, err := prop.ToNum()
	return int(n), err
}

// mapGPIO maps a GPIO specifier through any 'gpio-map' tables.
func mapGPIO(child, parent *dt.Node, spec []byte) (*dt.Node, []byte, error) {
	if !parent.HasProperty("gpio-map") {
		return parent, spec, nil
	}
	return mapSpecifier("gpio", child, parent, spec, func(node *dt.Node) (int, error) {
		cells, err := ownCells(node, "#gpio-cells")
		return 4 * cells, err
	})
}

// mapSpecifier translates childSpec, a specifier child sends to parent,
// through parent's '<prefix>-map' nexus table. It recurses until it
// reaches a node without a map. specLen gives the specifier length of a
// node named in the map.
func mapSpecifier(prefix string, child, parent *dt.Node, childSpec []byte,
	specLen func(*dt.Node) (int, error)) (*dt.Node, []byte, error) {

	mapProp, ok := parent.Property(prefix + "-map")
	if !ok {
		return parent, childSpec, nil
	}

	masked, err := maskSpecifier(prefix, child, parent, childSpec)
	if err != nil {
		return nil, nil, err
	}

	tree := parent.Tree()
	raw := mapProp.Value
	for len(raw) > 0 {
		if len(raw) < len(childSpec) {
			return nil, nil, propErrorf(mapProp, "bad value, missing/truncated child specifier")
		}
		entry := raw[:len(childSpec)]
		raw = raw[len(childSpec):]

		if len(raw) < 4 {
			return nil, nil, propErrorf(mapProp, "bad value, missing/truncated phandle")
		}
		phandle := binary.BigEndian.Uint32(raw)
		raw = raw[4:]

		mapParent, ok := tree.PhandleToNode[phandle]
		if !ok {
			return nil, nil, propErrorf(mapProp, "bad phandle 0x%x", phandle)
		}
		n, err := specLen(mapParent)
		if err != nil {
			return nil, nil, err
		}
		if len(raw) < n {
			return nil, nil, propErrorf(mapProp, "bad value, missing/truncated parent specifier")
		}
		parentSpec := raw[:n]
		raw = raw[n:]

		if bytes.Equal(entry, masked) {
			parentSpec, err = passThru(prefix, child, parent, childSpec, parentSpec)
			if err != nil {
				return nil, nil, err
			}
			return mapSpecifier(prefix, parent, mapParent, parentSpec, specLen)
		}
	}

	return nil, nil, propErrorf(mapProp, "child specifier for %s (% x) does not appear in map",
		child.Path(), childSpec)
}

// maskSpecifier applies '<prefix>-map-mask', if present, to childSpec.
func maskSpecifier(prefix string, child, parent *dt.Node, childSpec []byte) ([]byte, error) {
	maskProp, ok := parent.Property(prefix + "-map-mask")
	if !ok {
		return childSpec, nil
	}
	if len(maskProp.Value) != len(childSpec) {
		return nil, propErrorf(maskProp, "expected to be %d bytes (the length of the specifier from %s), is %d bytes",
			len(childSpec), child.Path(), len(maskProp.Value))
	}
	return andBytes(childSpec, maskProp.Value), nil
}

// passThru applies '<prefix>-map-pass-thru', if present: bits set in the
// pass-thru mask come from the child specifier, the rest from the parent
// specifier in the map.
func passThru(prefix string, child, parent *dt.Node, childSpec, parentSpec []byte) ([]byte, error) {
	ptProp, ok := parent.Property(prefix + "-map-pass-thru")
	if !ok {
		return parentSpec, nil
	}
	pt := ptProp.Value
	if len(pt) != len(childSpec) {
		return nil, propErrorf(ptProp, "expected to be %d bytes (the length of the specifier from %s), is %d bytes",
			len(childSpec), child.Path(), len(pt))
	}

	res := orBytes(andBytes(childSpec, pt), andBytes(parentSpec, notBytes(pt)))
	// Truncate to the length of the parent specifier
	return res[len(res)-len(parentSpec):], nil
}

// phandleValList parses a '<phandle> <specifier> <phandle> <specifier>
// ...' value. The specifier length comes from the cellsProp property on
// the node each phandle points to.
func phandleValList(prop *dt.Property, cellsProp string) ([]rawLink, error) {
	tree := prop.Node().Tree()
	var res []rawLink

	raw := prop.Value
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, propErrorf(prop, "bad value, truncated phandle")
		}
		phandle := binary.BigEndian.Uint32(raw)
		raw = raw[4:]

		node, ok := tree.PhandleToNode[phandle]
		if !ok {
			return nil, propErrorf(prop, "bad phandle 0x%x", phandle)
		}
		cells, err := ownCells(node, cellsProp)
		if err != nil {
			return nil, err
		}
		if len(raw) < 4*cells {
			return nil, propErrorf(prop, "missing data after phandle 0x%x", phandle)
		}
		res = append(res, rawLink{node: node, spec: raw[:4*cells]})
		raw = raw[4*cells:]
	}
	return res, nil
}

func optionalPhandleValList(node *dt.Node, name, cellsProp string) ([]rawLink, error) {
	prop, ok := node.Property(name)
	if !ok {
		return nil, nil
	}
	return phandleValList(prop, cellsProp)
}
