package main

import (
	"cmp"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/golangsnmp/godts"
	"github.com/golangsnmp/godts/internal/types"
)

const devicesUsage = `godts devices - List devices and their bindings

Usage:
  godts devices [options] FILE

Loads FILE, matches every node against the bindings, and lists the
resulting devices. Diagnostics are printed after the list.

Options:
  --enabled        Only list devices whose status is not "disabled"
  --order          Sort by dependency ordinal instead of name
  --details        Show registers, interrupts, GPIOs, clocks, PWMs and properties
  --ignore CODES   Comma-separated diagnostic codes to suppress (globs allowed)
  --strict         Exit with status 2 if any warning is reported
  --list-codes     List the known diagnostic codes and exit
  -h, --help       Show help

Examples:
  godts devices -b dts/bindings board.dts
  godts devices --enabled --details board.dts
  godts devices --order --ignore 'unit-addr-*' board.dts
`

func (c *cli) cmdDevices(args []string) int {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, devicesUsage) }

	enabledOnly := fs.Bool("enabled", false, "only list enabled devices")
	byOrder := fs.Bool("order", false, "sort by dependency ordinal")
	details := fs.Bool("details", false, "show device details")
	ignore := fs.String("ignore", "", "diagnostic codes to suppress")
	strict := fs.Bool("strict", false, "fail on warnings")
	listCodes := fs.Bool("list-codes", false, "list diagnostic codes")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *help || c.HelpFlag {
		_, _ = fmt.Fprint(os.Stdout, devicesUsage)
		return exitOK
	}

	if *listCodes {
		for _, info := range types.AllDiagnosticCodes() {
			fmt.Printf("%-24s %s\n", info.Code, info.Phase)
		}
		return exitOK
	}

	path, ok := singleFile(fs.Args(), devicesUsage)
	if !ok {
		return exitError
	}

	e, err := c.load(path, godts.WithDiagnosticConfig(diagConfig(*ignore)))
	if err != nil {
		printError("failed to load: %v", err)
		return exitError
	}

	devices := e.Devices()
	if *byOrder {
		slices.SortFunc(devices, func(a, b *godts.Device) int {
			return cmp.Compare(a.DepOrdinal(), b.DepOrdinal())
		})
	}

	for _, d := range devices {
		if *enabledOnly && !d.Enabled() {
			continue
		}
		printDevice(d, *details)
	}

	diags := e.Diagnostics()
	hasWarnings := false
	if len(diags) > 0 {
		fmt.Println()
		fmt.Println("Diagnostics:")
		for _, d := range diags {
			printDiagnostic(d)
			if d.Severity.AtLeast(godts.SeverityWarning) {
				hasWarnings = true
			}
		}
	}

	if *strict && hasWarnings {
		return exitStrictViolation
	}
	return exitOK
}

func diagConfig(ignore string) godts.DiagnosticConfig {
	var dc godts.DiagnosticConfig
	for _, code := range strings.Split(ignore, ",") {
		if code = strings.TrimSpace(code); code != "" {
			dc.Ignore = append(dc.Ignore, code)
		}
	}
	return dc
}

func printDevice(d *godts.Device, details bool) {
	line := fmt.Sprintf("%4d  %s", d.DepOrdinal(), d.Path())
	if compat := d.MatchingCompat(); compat != "" {
		line += "  " + compat
	}
	if !d.Enabled() {
		line += "  (disabled)"
	}
	fmt.Println(line)

	if !details {
		return
	}
	if d.HasBinding() {
		fmt.Printf("        binding: %s\n", d.BindingPath())
		if title := d.Title(); title != "" {
			fmt.Printf("        title: %s\n", title)
		}
	}
	if bus := d.Bus(); bus != "" {
		fmt.Printf("        bus: %s\n", bus)
	}
	for _, r := range d.Regs() {
		fmt.Printf("        reg: %s\n", r)
	}
	for _, irq := range d.Interrupts() {
		fmt.Printf("        interrupt: %s\n", linkString(irq.Name, irq.Controller, irq.Specifier))
	}
	for _, prefix := range d.GPIOPrefixes() {
		for _, gpio := range d.GPIOs()[prefix] {
			fmt.Printf("        gpio: %s\n", linkString(gpio.Name, gpio.Controller, gpio.Specifier))
		}
	}
	for _, clk := range d.Clocks() {
		fmt.Printf("        clock: %s\n", linkString(clk.Name, clk.Controller, clk.Specifier))
	}
	for _, pwm := range d.PWMs() {
		fmt.Printf("        pwm: %s\n", linkString(pwm.Name, pwm.Controller, pwm.Specifier))
	}
	for _, p := range d.Props() {
		fmt.Printf("        prop: %s\n", p)
	}
	if deps := d.DependsOn(); len(deps) > 0 {
		paths := make([]string, len(deps))
		for i, dep := range deps {
			paths[i] = dep.Path()
		}
		fmt.Printf("        depends on: %s\n", strings.Join(paths, ", "))
	}
}

func linkString(name string, controller *godts.Device, spec godts.Specifier) string {
	s := controller.Path() + " " + spec.String()
	if name != "" {
		s = name + ": " + s
	}
	return s
}

func printDiagnostic(d godts.Diagnostic) {
	prefix := "  " + d.Severity.String() + ": "
	if d.Code != "" {
		prefix += "[" + d.Code + "] "
	}
	if d.Path != "" {
		fmt.Printf("%s%s: %s\n", prefix, d.Path, d.Message)
	} else {
		fmt.Printf("%s%s\n", prefix, d.Message)
	}
}
