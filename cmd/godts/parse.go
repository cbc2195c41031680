package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golangsnmp/godts/cmd/internal/cliutil"
)

const parseUsage = `godts parse - Parse a DTS or DTB file and print normalized DTS

Usage:
  godts parse [options] FILE

The output has all references resolved, nodes merged, and deleted nodes
and properties removed. A DTB input is decompiled; it carries no labels.

Options:
  -o, --output FILE   Write to FILE instead of stdout
  -h, --help          Show help

Examples:
  godts parse board.dts
  godts parse -I dts/common board.dts
  godts parse -o flat.dts board.dtb
`

func (c *cli) cmdParse(args []string) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, parseUsage) }

	output := fs.String("o", "", "write to file")
	fs.StringVar(output, "output", "", "write to file")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *help || c.HelpFlag {
		_, _ = fmt.Fprint(os.Stdout, parseUsage)
		return exitOK
	}

	path, ok := singleFile(fs.Args(), parseUsage)
	if !ok {
		return exitError
	}

	tree, err := c.parseFile(path)
	if err != nil {
		printError("%v", err)
		return exitError
	}

	out, done, err := cliutil.GetOutput(*output)
	if err != nil {
		printError("%v", err)
		return exitError
	}
	defer done()

	if _, err := fmt.Fprintln(out, tree.String()); err != nil {
		printError("writing output: %v", err)
		return exitError
	}
	return exitOK
}
