package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/golangsnmp/godts/cmd/internal/cliutil"
)

const dtbUsage = `godts dtb - Compile a DTS file to a flattened device tree blob

Usage:
  godts dtb -o OUTPUT [options] FILE

Options:
  -o, --output FILE   Write the blob to FILE ("-" for stdout)
  -h, --help          Show help

Examples:
  godts dtb -o board.dtb board.dts
  godts dtb -o - board.dts | fdtdump -
`

func (c *cli) cmdDTB(args []string) int {
	fs := flag.NewFlagSet("dtb", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, dtbUsage) }

	output := fs.String("o", "", "write blob to file")
	fs.StringVar(output, "output", "", "write blob to file")
	help := fs.Bool("h", false, "show help")
	fs.BoolVar(help, "help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *help || c.HelpFlag {
		_, _ = fmt.Fprint(os.Stdout, dtbUsage)
		return exitOK
	}

	if *output == "" {
		printError("no output file specified")
		fmt.Fprint(os.Stderr, dtbUsage)
		return exitError
	}

	path, ok := singleFile(fs.Args(), dtbUsage)
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

	w := bufio.NewWriter(out)
	if err := tree.WriteDTB(w); err != nil {
		printError("writing blob: %v", err)
		return exitError
	}
	if err := w.Flush(); err != nil {
		printError("writing blob: %v", err)
		return exitError
	}
	return exitOK
}
