package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golangsnmp/godts"
	"github.com/golangsnmp/godts/cmd/internal/cliutil"
	"github.com/golangsnmp/godts/edt"
)

const dumpUsage = `godts dump - Output the device graph as JSON

Usage:
  godts dump [options] FILE

Options:
  -o, --output FILE   Write to FILE instead of stdout
  --compact           Minified JSON (no indentation)
  --enabled           Only include devices whose status is not "disabled"
  -h, --help          Show help

Examples:
  godts dump -b dts/bindings board.dts
  godts dump --compact board.dts | jq '.devices[] | select(.binding)'
`

func (c *cli) cmdDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, dumpUsage) }

	output := fs.String("o", "", "write to file")
	fs.StringVar(output, "output", "", "write to file")
	compact := fs.Bool("compact", false, "minified JSON")
	enabledOnly := fs.Bool("enabled", false, "only include enabled devices")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *help || c.HelpFlag {
		_, _ = fmt.Fprint(os.Stdout, dumpUsage)
		return exitOK
	}

	path, ok := singleFile(fs.Args(), dumpUsage)
	if !ok {
		return exitError
	}

	e, err := c.load(path)
	if err != nil {
		printError("failed to load: %v", err)
		return exitError
	}

	data, err := marshalJSON(buildDumpOutput(e, *enabledOnly), !*compact)
	if err != nil {
		printError("failed to marshal JSON: %v", err)
		return exitError
	}

	out, done, err := cliutil.GetOutput(*output)
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer done()

	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		printError("writing output: %v", err)
		return exitError
	}
	return exitOK
}

// buildDumpOutput creates the JSON output structure.
func buildDumpOutput(e *godts.EDT, enabledOnly bool) *DumpOutput {
	tree := e.Tree()
	output := &DumpOutput{
		File:    tree.Filename,
		Devices: []DeviceJSON{},
	}

	for _, m := range tree.Memreserves {
		output.Memreserves = append(output.Memreserves, MemreserveJSON{
			Address: m.Address,
			Length:  m.Length,
		})
	}

	for _, d := range e.Devices() {
		if enabledOnly && !d.Enabled() {
			continue
		}
		output.Devices = append(output.Devices, buildDeviceJSON(d))
	}

	if chosen, err := tree.GetNode("/chosen"); err == nil {
		for _, p := range chosen.Properties() {
			d, err := e.Chosen(p.Name)
			if err != nil || d == nil {
				// Not a path, e.g. 'bootargs'
				continue
			}
			if output.Chosen == nil {
				output.Chosen = make(map[string]string)
			}
			output.Chosen[p.Name] = d.Path()
		}
	}

	for _, d := range e.Diagnostics() {
		output.Diagnostics = append(output.Diagnostics, DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code,
			Path:     d.Path,
			Message:  d.Message,
		})
	}
	return output
}

func buildDeviceJSON(d *godts.Device) DeviceJSON {
	out := DeviceJSON{
		Path:       d.Path(),
		Name:       d.Name(),
		Label:      d.Label(),
		Aliases:    d.Aliases(),
		Enabled:    d.Enabled(),
		ReadOnly:   d.ReadOnly(),
		Compatible: d.Compats(),
		Matching:   d.MatchingCompat(),
		Binding:    d.BindingPath(),
		Title:      d.Title(),
		Desc:       d.Description(),
		Bus:        d.Bus(),
		UnitAddr:   d.UnitAddr(),
		Ordinal:    d.DepOrdinal(),
	}
	if compat := d.MatchingCompat(); compat != "" {
		if n, ok := d.InstanceNo(compat); ok {
			out.Instance = &n
		}
	}
	for _, dep := range d.DependsOn() {
		out.DependsOn = append(out.DependsOn, dep.Path())
	}
	for _, dep := range d.RequiredBy() {
		out.RequiredBy = append(out.RequiredBy, dep.Path())
	}
	for _, r := range d.Regs() {
		out.Regs = append(out.Regs, RegJSON{Name: r.Name, Addr: r.Addr, Size: r.Size})
	}
	for _, irq := range d.Interrupts() {
		out.Interrupts = append(out.Interrupts, linkJSON(irq.Name, irq.Controller, irq.Specifier))
	}
	for _, prefix := range d.GPIOPrefixes() {
		for _, gpio := range d.GPIOs()[prefix] {
			out.GPIOs = append(out.GPIOs, linkJSON(gpio.Name, gpio.Controller, gpio.Specifier))
		}
	}
	for _, clk := range d.Clocks() {
		out.Clocks = append(out.Clocks, linkJSON(clk.Name, clk.Controller, clk.Specifier))
	}
	for _, pwm := range d.PWMs() {
		out.PWMs = append(out.PWMs, linkJSON(pwm.Name, pwm.Controller, pwm.Specifier))
	}
	for _, p := range d.Props() {
		prop := PropJSON{Name: p.Name, Type: p.Value.Type(), Value: propValue(p.Value)}
		if p.HasEnum() {
			idx := p.EnumIndex
			prop.EnumIndex = &idx
		}
		out.Props = append(out.Props, prop)
	}
	return out
}

func linkJSON(name string, controller *godts.Device, spec godts.Specifier) LinkJSON {
	return LinkJSON{Name: name, Controller: controller.Path(), Cells: spec.Map()}
}

// propValue converts a typed value to plain JSON types. Bytes would
// otherwise be encoded as base64.
func propValue(v godts.PropValue) any {
	if b, ok := v.(edt.Bytes); ok {
		out := make([]int, len(b))
		for i, x := range b {
			out[i] = int(x)
		}
		return out
	}
	return v
}
