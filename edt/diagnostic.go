package edt

import "github.com/golangsnmp/godts/internal/types"

// Diagnostic is a non-fatal issue found while loading bindings or building
// the device graph.
type Diagnostic = types.Diagnostic

// DiagnosticConfig controls diagnostic filtering.
type DiagnosticConfig = types.DiagnosticConfig

// Severity orders diagnostics.
type Severity = types.Severity

const (
	SeverityWarning = types.SeverityWarning
	SeverityInfo    = types.SeverityInfo
)
