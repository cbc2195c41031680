package types

// Diagnostic codes emitted by the binding resolver and the device graph
// builder. Centralizing these prevents silent breakage from typos in
// string literals.

// Binding diagnostic codes.
const (
	DiagBindingMissingKey = "binding-missing-key"
	DiagBindingOverwrite  = "binding-overwrite"
	DiagBindingDuplicate  = "binding-duplicate"
	DiagPropNoGeneration  = "prop-no-generation"
)

// Device graph diagnostic codes.
const (
	DiagDeviceNoBinding     = "device-no-binding"
	DiagRequiredPropMissing = "required-prop-missing"
	DiagUnitAddrMismatch    = "unit-addr-mismatch"
	DiagUnknownPropType     = "unknown-prop-type"
)

// AllDiagnosticCodes returns all known diagnostic codes grouped by phase.
func AllDiagnosticCodes() []DiagCodeInfo {
	return []DiagCodeInfo{
		// Bindings
		{Code: DiagBindingMissingKey, Phase: "binding"},
		{Code: DiagBindingOverwrite, Phase: "binding"},
		{Code: DiagBindingDuplicate, Phase: "binding"},
		{Code: DiagPropNoGeneration, Phase: "binding"},
		// Devices
		{Code: DiagDeviceNoBinding, Phase: "devices"},
		{Code: DiagRequiredPropMissing, Phase: "devices"},
		{Code: DiagUnitAddrMismatch, Phase: "devices"},
		{Code: DiagUnknownPropType, Phase: "devices"},
	}
}

// DiagCodeInfo describes a diagnostic code and the phase that emits it.
type DiagCodeInfo struct {
	Code  string
	Phase string
}
