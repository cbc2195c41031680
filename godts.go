package godts

import (
	"errors"
	"log/slog"

	"github.com/golangsnmp/godts/internal/types"
)

// ErrNoSources is returned when Load is called without binding sources.
var ErrNoSources = errors.New("no binding sources provided")

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (tokens, markers, map rows).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = types.LevelTrace

// Option configures Parse, ParseFile, Load and LoadTree.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	includePaths []string
	bindings     []Source
	extensions   []string
	systemPaths  bool
	diagConfig   DiagnosticConfig
}

func newConfig(opts []Option) config {
	cfg := config{
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger for debug/trace output.
// If not set, no logging occurs (zero overhead).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithIncludePaths adds directories searched for /include/ and /incbin/
// files after the directory of the including file.
func WithIncludePaths(dirs ...string) Option {
	return func(c *config) { c.includePaths = append(c.includePaths, dirs...) }
}

// WithBindings adds sources of binding files. Later sources are searched
// after earlier ones; use Multi to combine sources explicitly.
func WithBindings(sources ...Source) Option {
	return func(c *config) { c.bindings = append(c.bindings, sources...) }
}

// WithBindingExtensions sets the file extensions recognized as bindings
// in directories found by WithSystemPaths. Sources created with Dir or
// DirTree take their own WithExtensions option.
func WithBindingExtensions(exts ...string) Option {
	return func(c *config) { c.extensions = exts }
}

// WithSystemPaths enables discovery of binding and include directories
// from the environment and configuration files. Discovered directories are
// searched after any explicit ones.
func WithSystemPaths() Option {
	return func(c *config) { c.systemPaths = true }
}

// WithDiagnosticConfig sets which diagnostics are reported.
func WithDiagnosticConfig(dc DiagnosticConfig) Option {
	return func(c *config) { c.diagConfig = dc }
}
