// Command godts is a CLI tool for parsing devicetree source, converting it
// to DTB, and inspecting the device graph built from bindings.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/golangsnmp/godts"
	"github.com/golangsnmp/godts/cmd/internal/cliutil"
)

// Exit codes.
const (
	exitOK              = 0 // success
	exitError           = 1 // user error or processing failure
	exitStrictViolation = 2 // strict mode found warnings
)

const usage = `godts - devicetree parser and device graph tool

Usage:
  godts <command> [options] [arguments]

Commands:
  parse    Parse a DTS or DTB file and print normalized DTS
  dtb      Compile a DTS file to a flattened device tree blob
  devices  List devices and their bindings
  dump     Output the device graph as JSON
  paths    Show binding and include search paths
  version  Show version

Common options:
  -b, --bindings DIR  Add binding directory, searched recursively (repeatable)
  -I, --include DIR   Add /include/ search directory (repeatable)
  -v, --verbose       Enable debug logging
  -vv                 Enable trace logging (implies -v)
  -h, --help          Show help

Without -b, binding and include directories are discovered from ZEPHYR_BASE,
DTS_ROOT, GODTS_BINDINGS, GODTS_INCLUDE, /etc/godts.conf and ~/.godtsrc.

Examples:
  godts parse board.dts
  godts dtb -o board.dtb board.dts
  godts devices -b dts/bindings board.dts
  godts dump -b dts/bindings board.dts | jq '.devices'
  godts paths
`

type cli struct {
	cliutil.Flags
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, cmd, cmdArgs := cliutil.ParseArgs(args)
	c := &cli{Flags: flags}

	if c.HelpFlag && cmd == "" {
		_, _ = fmt.Fprint(os.Stdout, usage)
		return exitOK
	}

	if cmd == "" {
		_, _ = fmt.Fprint(os.Stderr, usage)
		return exitError
	}

	switch cmd {
	case "parse":
		return c.cmdParse(cmdArgs)
	case "dtb":
		return c.cmdDTB(cmdArgs)
	case "devices":
		return c.cmdDevices(cmdArgs)
	case "dump":
		return c.cmdDump(cmdArgs)
	case "paths":
		return c.cmdPaths(cmdArgs)
	case "version":
		printVersion()
		return exitOK
	case "help":
		_, _ = fmt.Fprint(os.Stdout, usage)
		return exitOK
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		_, _ = fmt.Fprint(os.Stderr, usage)
		return exitError
	}
}

func (c *cli) setupLogger() *slog.Logger {
	if c.Verbose == 0 {
		return nil
	}
	level := slog.LevelDebug
	if c.Verbose >= 2 {
		level = godts.LevelTrace
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// buildSources returns a source per -b directory. Returns (nil, true) when
// no -b is given, meaning WithSystemPaths should be used instead.
func (c *cli) buildSources() ([]godts.Source, bool, error) {
	if len(c.Bindings) == 0 {
		return nil, true, nil
	}
	var sources []godts.Source
	for _, p := range c.Bindings {
		if src, err := godts.DirTree(p); err == nil {
			sources = append(sources, src)
		} else {
			fmt.Fprintf(os.Stderr, "warning: cannot access path %s: %v\n", p, err)
		}
	}
	if len(sources) == 0 {
		return nil, false, godts.ErrNoSources
	}
	return sources, false, nil
}

// options returns the options shared by every command that reads a file.
func (c *cli) options(extra ...godts.Option) ([]godts.Option, error) {
	var opts []godts.Option

	sources, useSystem, err := c.buildSources()
	if err != nil {
		return nil, err
	}
	if useSystem {
		opts = append(opts, godts.WithSystemPaths())
	} else {
		opts = append(opts, godts.WithBindings(sources...))
	}
	if len(c.Includes) > 0 {
		opts = append(opts, godts.WithIncludePaths(c.Includes...))
	}
	if logger := c.setupLogger(); logger != nil {
		opts = append(opts, godts.WithLogger(logger))
	}
	return append(opts, extra...), nil
}

func (c *cli) parseFile(path string) (*godts.Tree, error) {
	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	return godts.ParseFile(path, opts...)
}

func (c *cli) load(path string, extra ...godts.Option) (*godts.EDT, error) {
	opts, err := c.options(extra...)
	if err != nil {
		return nil, err
	}
	return godts.Load(path, opts...)
}

// singleFile returns the one positional argument of a command.
func singleFile(args []string, cmdUsage string) (string, bool) {
	if len(args) != 1 {
		if len(args) == 0 {
			printError("no input file specified")
		} else {
			printError("expected one input file, got %d", len(args))
		}
		fmt.Fprint(os.Stderr, cmdUsage)
		return "", false
	}
	return args[0], true
}

func printVersion() {
	version := "(devel)"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Printf("godts %s\n", version)
}

func printError(format string, args ...any) {
	cliutil.PrintError(format, args...)
}
