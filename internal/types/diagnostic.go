package types

import (
	"slices"
	"strings"
)

// Severity orders non-fatal diagnostics. Fatal problems are returned as
// errors and never become diagnostics.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityInfo
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s <= other
}

// Diagnostic is a non-fatal issue found while building a device graph.
type Diagnostic struct {
	Severity Severity
	Code     string // e.g., "binding-missing-title", "required-prop-missing"
	Message  string
	Path     string // node path or binding file, empty if not applicable
}

// String returns a human-readable representation of the diagnostic.
// Format: "[severity] path: message" with the path omitted when empty.
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(d.Severity.String())
	b.WriteString("] ")
	if d.Path != "" {
		b.WriteString(d.Path)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// DiagnosticConfig controls diagnostic filtering.
type DiagnosticConfig struct {
	// Ignore lists diagnostic codes to suppress entirely.
	// Supports glob patterns (e.g., "binding-*").
	Ignore []string
}

// ShouldReport returns true if a diagnostic with the given code
// should be reported under this configuration.
func (c DiagnosticConfig) ShouldReport(code string) bool {
	return !slices.ContainsFunc(c.Ignore, func(pattern string) bool {
		return MatchGlob(pattern, code)
	})
}

// MatchGlob performs simple glob matching with * wildcard.
func MatchGlob(pattern, s string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(s, suffix)
	}
	return pattern == s
}

// Diagnostics accumulates diagnostics under a config.
type Diagnostics struct {
	Config DiagnosticConfig
	list   []Diagnostic
}

// Add records d unless its code is ignored. Returns true if recorded.
func (ds *Diagnostics) Add(d Diagnostic) bool {
	if !ds.Config.ShouldReport(d.Code) {
		return false
	}
	ds.list = append(ds.list, d)
	return true
}

// List returns a copy of the recorded diagnostics.
func (ds *Diagnostics) List() []Diagnostic {
	return slices.Clone(ds.list)
}
