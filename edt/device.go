package edt

import (
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/binding"
	"github.com/golangsnmp/godts/internal/types"
)

// Register is a register block of a device.
type Register struct {
	// Name is from 'reg-names', or "".
	Name string
	// Addr is the start address, translated through the 'ranges' of all
	// ancestors. It has as many bits as the address cells need, so PCI
	// style three-cell addresses are kept whole.
	Addr *big.Int
	// Size is the length in bytes, or nil when the parent's #size-cells
	// is 0.
	Size *big.Int
}

func (r Register) String() string {
	s := fmt.Sprintf("addr %#x", r.Addr)
	if r.Size != nil {
		s += fmt.Sprintf(", size %#x", r.Size)
	}
	if r.Name != "" {
		s = r.Name + ": " + s
	}
	return s
}

// Device is a device tree node together with the information from its
// binding.
type Device struct {
	graph *Graph
	node  *dt.Node

	binding        *binding.Binding
	matchingCompat string
	compats        []string

	label    string
	enabled  bool
	readOnly bool

	unitAddr *big.Int

	props     map[string]*Property
	propOrder []string
	regs      []Register

	interrupts []Interrupt
	gpios      map[string][]GPIO
	gpioOrder  []string
	clocks     []Clock
	pwms       []PWM

	instanceNo map[string]int

	depOrdinal int
	dependsOn  []*Device
	requiredBy []*Device
}

// Node returns the underlying device tree node.
func (d *Device) Node() *dt.Node { return d.node }

// Name returns the node name, e.g. "uart@4000".
func (d *Device) Name() string { return d.node.Name }

// Path returns the node path.
func (d *Device) Path() string { return d.node.Path() }

// Label returns the value of the node's 'label' property, or "".
func (d *Device) Label() string { return d.label }

// Enabled reports whether the node lacks 'status = "disabled"'.
func (d *Device) Enabled() bool { return d.enabled }

// ReadOnly reports whether the node has a 'read-only' property.
func (d *Device) ReadOnly() bool { return d.readOnly }

// Parent returns the device of the parent node, or nil for the root.
func (d *Device) Parent() *Device {
	return d.graph.byNode[d.node.Parent()]
}

// Aliases returns the aliases in /aliases that point at the device.
func (d *Device) Aliases() []string {
	return d.graph.tree.Aliases(d.node)
}

// Compats returns the node's 'compatible' strings.
func (d *Device) Compats() []string { return slices.Clone(d.compats) }

// MatchingCompat returns the compatible string whose binding matched, or
// "" if the device has no binding. Devices bound through a parent's
// 'sub-node' report the parent's matching compatible.
func (d *Device) MatchingCompat() string { return d.matchingCompat }

// HasBinding reports whether a binding was found for the device.
func (d *Device) HasBinding() bool { return d.binding != nil }

// BindingPath returns the file the device's binding came from, or "".
func (d *Device) BindingPath() string {
	if d.binding == nil {
		return ""
	}
	return d.binding.Path
}

// Title returns the binding's 'title', or "" without a binding.
func (d *Device) Title() string {
	if d.binding == nil {
		return ""
	}
	return d.binding.Title()
}

// Description returns the binding's 'description', or "" without a
// binding.
func (d *Device) Description() string {
	if d.binding == nil {
		return ""
	}
	return d.binding.Description()
}

// Bus returns the bus the device is on according to its binding
// ('parent: bus:'), or "".
func (d *Device) Bus() string {
	if d.binding == nil {
		return ""
	}
	return d.binding.Bus()
}

// UnitAddr returns the part of the name after '@' as a number, translated
// through any 'ranges' on ancestors. It returns nil if the name has no unit
// address or it is not a hex number.
func (d *Device) UnitAddr() *big.Int {
	return cloneInt(d.unitAddr)
}

// Props returns the properties described by the binding, in binding order.
func (d *Device) Props() []*Property {
	props := make([]*Property, len(d.propOrder))
	for i, name := range d.propOrder {
		props[i] = d.props[name]
	}
	return props
}

// Prop returns the property with the given name.
func (d *Device) Prop(name string) (*Property, bool) {
	p, ok := d.props[name]
	return p, ok
}

// Regs returns the device's registers.
func (d *Device) Regs() []Register {
	regs := make([]Register, len(d.regs))
	for i, r := range d.regs {
		regs[i] = Register{Name: r.Name, Addr: cloneInt(r.Addr), Size: cloneInt(r.Size)}
	}
	return regs
}

func cloneInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

// Interrupts returns the interrupts the device generates.
func (d *Device) Interrupts() []Interrupt { return slices.Clone(d.interrupts) }

// GPIOs returns the device's GPIOs keyed by property prefix: 'foo-gpios'
// gives "foo", plain 'gpios' gives "".
func (d *Device) GPIOs() map[string][]GPIO {
	return maps.Clone(d.gpios)
}

// GPIOPrefixes returns the keys of GPIOs in property order.
func (d *Device) GPIOPrefixes() []string { return slices.Clone(d.gpioOrder) }

// Clocks returns the clocks from the 'clocks' property.
func (d *Device) Clocks() []Clock { return slices.Clone(d.clocks) }

// PWMs returns the PWMs from the 'pwms' property.
func (d *Device) PWMs() []PWM { return slices.Clone(d.pwms) }

// InstanceNo returns the index of the device among the enabled devices
// with compatible string compat, counted in tree order. The value is
// meaningless for disabled devices.
func (d *Device) InstanceNo(compat string) (int, bool) {
	n, ok := d.instanceNo[compat]
	return n, ok
}

// DepOrdinal returns the device's position in an order where every device
// comes after its parent and the controllers it references.
func (d *Device) DepOrdinal() int { return d.depOrdinal }

// DependsOn returns the devices this device directly depends on, sorted
// by path.
func (d *Device) DependsOn() []*Device { return slices.Clone(d.dependsOn) }

// RequiredBy returns the devices that directly depend on this device,
// sorted by path.
func (d *Device) RequiredBy() []*Device { return slices.Clone(d.requiredBy) }

// FlashController returns the flash controller of a flash partition
// device. The controller is the grandparent, or the grandparent's parent
// when the grandparent is a 'soc-nv-flash' flash node.
func (d *Device) FlashController() (*Device, error) {
	parent := d.Parent()
	if parent == nil || parent.Parent() == nil {
		return nil, errorf(d.node, "flash partition lacks parent or grandparent node")
	}
	controller := parent.Parent()
	if controller.matchingCompat == "soc-nv-flash" && controller.Parent() != nil {
		return controller.Parent(), nil
	}
	return controller, nil
}

// SPICSGPIO returns the chip select GPIO of an SPI device from its
// controller's 'cs-gpios', indexed by the device's first register
// address. It returns nil if the device is not on an SPI bus or the
// controller has no 'cs-gpios'.
func (d *Device) SPICSGPIO() (*GPIO, error) {
	parent := d.Parent()
	if d.Bus() != "spi" || parent == nil {
		return nil, nil
	}
	cs, ok := parent.gpios["cs"]
	if !ok {
		return nil, nil
	}
	if len(d.regs) == 0 {
		return nil, errorf(d.node, "SPI device has no 'reg' to select a chip select GPIO")
	}
	idx := d.regs[0].Addr
	if !idx.IsInt64() || idx.Int64() >= int64(len(cs)) {
		return nil, errorf(d.node, "chip select %d is out of range of 'cs-gpios' on %s (%d entries)",
			idx, parent.Path(), len(cs))
	}
	gpio := cs[idx.Int64()]
	return &gpio, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("<Device %s, %d regs>", d.Name(), len(d.regs))
}

// newDevice creates the device for node. The device of node's parent must
// already exist.
func (g *Graph) newDevice(node *dt.Node) (*Device, error) {
	d := &Device{graph: g, node: node}

	if err := d.initBasics(); err != nil {
		return nil, err
	}
	if err := d.initBinding(); err != nil {
		return nil, err
	}
	if err := d.initProps(); err != nil {
		return nil, err
	}
	if err := d.initRegs(); err != nil {
		return nil, err
	}
	if err := d.initUnitAddr(); err != nil {
		return nil, err
	}
	d.initInstanceNo()
	return d, nil
}

func (d *Device) initBasics() error {
	node := d.node

	if prop, ok := node.Property("label"); ok {
		label, err := prop.ToString()
		if err != nil {
			return err
		}
		d.label = label
	}

	d.enabled = true
	if prop, ok := node.Property("status"); ok {
		status, err := prop.ToString()
		if err != nil {
			return err
		}
		d.enabled = status != "disabled"
	}

	d.readOnly = node.HasProperty("read-only")

	if prop, ok := node.Property("compatible"); ok {
		compats, err := prop.ToStrings()
		if err != nil {
			return err
		}
		d.compats = compats
	}
	return nil
}

// initBinding finds the binding for the device. A node with 'compatible'
// is matched on (compatible, bus) where the bus comes from the parent's
// binding. A node without one uses the parent binding's 'sub-node'.
func (d *Device) initBinding() error {
	parent := d.Parent()

	if d.node.HasProperty("compatible") {
		var bus string
		if parent != nil && parent.binding != nil {
			bus = parent.binding.ChildBus()
		}
		for _, compat := range d.compats {
			if b, ok := d.graph.registry.Lookup(compat, bus); ok {
				d.binding = b
				d.matchingCompat = compat
				return nil
			}
		}
		if len(d.compats) > 0 {
			d.graph.addDiag(types.SeverityInfo, types.DiagDeviceNoBinding, d.Path(),
				fmt.Sprintf("no binding for %q%s", d.compats, busSuffix(bus)))
		}
		return nil
	}

	if parent != nil && parent.binding != nil {
		if sub := parent.binding.SubNode(); sub != nil {
			d.binding = sub
			d.matchingCompat = parent.matchingCompat
		}
	}
	return nil
}

func busSuffix(bus string) string {
	if bus == "" {
		return ""
	}
	return " on bus '" + bus + "'"
}

func (d *Device) initRegs() error {
	prop, ok := d.node.Property("reg")
	if !ok {
		return nil
	}

	addrCells, err := addressCells(d.node)
	if err != nil {
		return err
	}
	sizeCellsN, err := sizeCells(d.node)
	if err != nil {
		return err
	}

	chunks, err := slice(prop, 4*(addrCells+sizeCellsN))
	if err != nil {
		return err
	}
	for _, raw := range chunks {
		addr, err := translate(dt.ToBigNum(raw[:4*addrCells]), d.node)
		if err != nil {
			return err
		}
		reg := Register{Addr: addr}
		if sizeCellsN != 0 {
			reg.Size = dt.ToBigNum(raw[4*addrCells:])
		}
		d.regs = append(d.regs, reg)
	}

	names, err := readNames(d.node, "reg-names", len(d.regs))
	if err != nil {
		return err
	}
	for i, name := range names {
		d.regs[i].Name = name
	}
	return nil
}

// initUnitAddr translates the unit address and checks it against the
// first register. Non-hex unit addresses are left unset.
func (d *Device) initUnitAddr() error {
	addr, err := parseUnitAddr(d.node)
	if err != nil || addr == nil {
		return nil
	}
	addr, err = translate(addr, d.node)
	if err != nil {
		return err
	}
	d.unitAddr = addr

	if len(d.regs) > 0 && d.regs[0].Addr.Cmp(addr) != 0 {
		d.graph.warn(types.DiagUnitAddrMismatch, d.Path(),
			fmt.Sprintf("unit-address and first reg (%#x) don't match", d.regs[0].Addr))
	}
	return nil
}

// initInstanceNo numbers the device among the enabled devices created
// before it that share each compatible string.
func (d *Device) initInstanceNo() {
	d.instanceNo = make(map[string]int, len(d.compats))
	for _, compat := range d.compats {
		n := 0
		for _, other := range d.graph.devices {
			if other.enabled && slices.Contains(other.compats, compat) {
				n++
			}
		}
		d.instanceNo[compat] = n
	}
}
