// Package godts parses devicetree source (DTS) and builds an extended
// device tree: every node combined with the binding that describes it,
// with registers, interrupts, GPIOs, clocks and PWMs resolved to the
// devices they refer to.
//
// Parse and ParseFile produce a *Tree. Load and LoadTree additionally
// read YAML bindings and produce an *EDT.
package godts

import (
	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/edt"
	"github.com/golangsnmp/godts/internal/types"
)

// Type aliases for the public API. The types live in the dt and edt
// subpackages.

// Tree is a parsed device tree.
type Tree = dt.Tree

// Node is a device tree node.
type Node = dt.Node

// Property is a device tree property.
type Property = dt.Property

// Graph is the device graph of a tree.
type Graph = edt.Graph

// Device is a node combined with its binding.
type Device = edt.Device

// Register is a register block of a device.
type Register = edt.Register

// Interrupt is an interrupt generated by a device.
type Interrupt = edt.Interrupt

// GPIO is a GPIO used by a device.
type GPIO = edt.GPIO

// Clock is a clock used by a device.
type Clock = edt.Clock

// PWM is a PWM used by a device.
type PWM = edt.PWM

// Specifier is a decoded specifier with named cells.
type Specifier = edt.Specifier

// PropValue is the typed value of a device property.
type PropValue = edt.PropValue

// ParseError is a lexical or grammar error in DTS source.
type ParseError = dt.ParseError

// SemanticError is an error found after parsing.
type SemanticError = dt.SemanticError

// BindingError is an error in a binding file.
type BindingError = edt.BindingError

// Diagnostic is a non-fatal issue found while loading.
type Diagnostic = types.Diagnostic

// DiagnosticConfig controls diagnostic filtering.
type DiagnosticConfig = types.DiagnosticConfig

// Severity orders diagnostics.
type Severity = types.Severity

const (
	SeverityWarning = types.SeverityWarning
	SeverityInfo    = types.SeverityInfo
)
