package godts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/edt"
	"github.com/golangsnmp/godts/internal/binding"
	"github.com/golangsnmp/godts/internal/parser"
	"github.com/golangsnmp/godts/internal/types"
)

// EDT is a device graph together with the diagnostics from loading its
// bindings.
type EDT struct {
	*edt.Graph
	bindingDiags []Diagnostic
}

// Diagnostics returns the binding diagnostics followed by the device graph
// diagnostics.
func (e *EDT) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, len(e.bindingDiags))
	out = append(out, e.bindingDiags...)
	return append(out, e.Graph.Diagnostics()...)
}

// Parse parses DTS source. filename is used in error messages and as the
// base for relative /include/ paths. The returned tree is finalized.
//
// Example:
//
//	tree, err := godts.Parse("board.dts", src,
//	    godts.WithIncludePaths("dts/common"),
//	)
func Parse(filename string, src []byte, opts ...Option) (*Tree, error) {
	cfg := newConfig(opts)
	logger := types.Logger{L: cfg.logger}

	includes := cfg.includePaths
	if cfg.systemPaths {
		sp := discoverSystemPaths(logger)
		includes = append(includes[:len(includes):len(includes)], sp.include...)
	}
	return parseSource(filename, src, includes, cfg.logger)
}

func parseSource(filename string, src []byte, includes []string, logger *slog.Logger) (*Tree, error) {
	tree, err := parser.New(filename, src, includes, types.Component(logger, "parser")).Parse()
	if err != nil {
		return nil, err
	}
	if err := tree.Finalize(types.Component(logger, "dt")); err != nil {
		return nil, err
	}
	return tree, nil
}

// ParseFile reads and parses the file at path. Files that start with the
// flattened device tree magic are decoded as DTB instead.
func ParseFile(path string, opts ...Option) (*Tree, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch detectFormat(content) {
	case formatDTB:
		return dt.ReadDTB(path, bytes.NewReader(content))
	case formatBinary:
		return nil, fmt.Errorf("%s: not a devicetree source file", path)
	}
	return Parse(path, content, opts...)
}

// Load parses the devicetree at path and builds its device graph from the
// configured bindings.
//
// Example:
//
//	e, err := godts.Load("board.dts",
//	    godts.WithBindings(godts.MustDirTree("dts/bindings")),
//	    godts.WithLogger(slog.Default()),
//	)
func Load(path string, opts ...Option) (*EDT, error) {
	tree, err := ParseFile(path, opts...)
	if err != nil {
		return nil, err
	}
	return LoadTree(tree, opts...)
}

// LoadTree builds the device graph of an already parsed tree. Only the
// bindings whose compatible string appears in the tree are parsed.
// Returns ErrNoSources if no binding source was configured or discovered.
func LoadTree(tree *Tree, opts ...Option) (*EDT, error) {
	cfg := newConfig(opts)
	logger := types.Logger{L: cfg.logger}

	sources := cfg.bindings
	if cfg.systemPaths {
		sysSources := discoverSystemSources(logger, cfg.extensions)
		sources = append(sources[:len(sources):len(sources)], sysSources...)
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	diags := &types.Diagnostics{Config: cfg.diagConfig}
	reg, err := binding.Load(Multi(sources...), edt.TreeCompats(tree), binding.Config{
		Logger:      types.Component(cfg.logger, "binding"),
		Diagnostics: diags,
	})
	if err != nil {
		return nil, err
	}

	g, err := edt.New(tree, reg, edt.Config{
		Logger:      types.Component(cfg.logger, "edt"),
		Diagnostics: cfg.diagConfig,
	})
	if err != nil {
		return nil, err
	}

	logger.Log(slog.LevelInfo, "load complete",
		slog.String("file", tree.Filename),
		slog.Int("bindings", reg.Len()),
		slog.Int("devices", len(g.Devices())))
	return &EDT{Graph: g, bindingDiags: diags.List()}, nil
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type fileFormat int

const (
	formatSource fileFormat = iota
	formatDTB
	formatBinary
)

const (
	fdtMagic      = 0xd00dfeed
	fdtHeaderSize = 40

	binaryCheckSize = 1024
)

// detectFormat guesses the format of content: a device tree blob, some
// other binary file, or source text.
func detectFormat(content []byte) fileFormat {
	if len(content) >= fdtHeaderSize && binary.BigEndian.Uint32(content) == fdtMagic {
		return formatDTB
	}
	checkLen := min(binaryCheckSize, len(content))
	if bytes.IndexByte(content[:checkLen], 0) >= 0 {
		return formatBinary
	}
	return formatSource
}
