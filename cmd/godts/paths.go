package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golangsnmp/godts"
)

const pathsUsage = `godts paths - Show binding and include search paths

Usage:
  godts paths [options]

Shows the directories that would be searched. When -b paths are specified,
shows those and the -I paths. Otherwise the -I paths are followed by the
directories discovered from ZEPHYR_BASE, DTS_ROOT, GODTS_BINDINGS,
GODTS_INCLUDE, /etc/godts.conf and ~/.godtsrc.

Options:
  -h, --help   Show help

Examples:
  godts paths
  ZEPHYR_BASE=~/zephyrproject/zephyr godts paths
`

func (c *cli) cmdPaths(args []string) int {
	fs := flag.NewFlagSet("paths", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, pathsUsage) }

	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *help || c.HelpFlag {
		_, _ = fmt.Fprint(os.Stdout, pathsUsage)
		return exitOK
	}

	var bindings, include []string
	if len(c.Bindings) > 0 {
		bindings, include = c.Bindings, c.Includes
	} else {
		bindings, include = godts.DiscoverSystemPaths()
		include = append(c.Includes[:len(c.Includes):len(c.Includes)], include...)
	}

	if len(bindings) == 0 && len(include) == 0 {
		fmt.Fprintln(os.Stderr, "no search paths found")
		return exitOK
	}

	for _, p := range bindings {
		fmt.Printf("bindings %s\n", p)
	}
	for _, p := range include {
		fmt.Printf("include  %s\n", p)
	}
	return exitOK
}
