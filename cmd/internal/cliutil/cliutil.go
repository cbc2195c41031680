// Package cliutil provides shared CLI utilities for godts command-line tools.
package cliutil

import (
	"fmt"
	"os"
	"strings"
)

// Flags holds the global flags shared by all subcommands.
type Flags struct {
	Bindings []string
	Includes []string
	Verbose  int
	HelpFlag bool
}

// ParseArgs parses global flags and extracts the subcommand from args.
// Flags handled: -b/--bindings, -I/--include, -v/--verbose, -vv, -h/--help.
// Unrecognized flags are passed through to the subcommand.
func ParseArgs(args []string) (flags Flags, cmd string, cmdArgs []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			flags.HelpFlag = true
		case arg == "-v" || arg == "--verbose":
			flags.Verbose = max(flags.Verbose, 1)
		case arg == "-vv":
			flags.Verbose = 2
		case arg == "-b" || arg == "--bindings":
			if i+1 < len(args) {
				i++
				flags.Bindings = append(flags.Bindings, args[i])
			}
		case strings.HasPrefix(arg, "--bindings="):
			flags.Bindings = append(flags.Bindings, arg[len("--bindings="):])
		case strings.HasPrefix(arg, "-b") && len(arg) > 2:
			flags.Bindings = append(flags.Bindings, arg[2:])
		case arg == "-I" || arg == "--include":
			if i+1 < len(args) {
				i++
				flags.Includes = append(flags.Includes, args[i])
			}
		case strings.HasPrefix(arg, "--include="):
			flags.Includes = append(flags.Includes, arg[len("--include="):])
		case strings.HasPrefix(arg, "-I") && len(arg) > 2:
			flags.Includes = append(flags.Includes, arg[2:])
		case len(arg) > 1 && arg[0] == '-':
			cmdArgs = append(cmdArgs, arg)
		default:
			if cmd == "" {
				cmd = arg
			} else {
				cmdArgs = append(cmdArgs, arg)
			}
		}
	}
	return
}

// GetOutput opens the output file or returns stdout.
func GetOutput(outputFile string) (*os.File, func(), error) {
	if outputFile == "" || outputFile == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
