package main

import (
	"encoding/json"
	"math/big"
)

// DumpOutput is the top-level JSON output for the dump command.
type DumpOutput struct {
	File        string            `json:"file"`
	Memreserves []MemreserveJSON  `json:"memreserves,omitempty"`
	Devices     []DeviceJSON      `json:"devices"`
	Chosen      map[string]string `json:"chosen,omitempty"`
	Diagnostics []DiagnosticJSON  `json:"diagnostics,omitempty"`
}

// MemreserveJSON holds a /memreserve/ entry.
type MemreserveJSON struct {
	Address uint64 `json:"address"`
	Length  uint64 `json:"length"`
}

// DeviceJSON holds the JSON-serializable form of a device.
type DeviceJSON struct {
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Label      string     `json:"label,omitempty"`
	Aliases    []string   `json:"aliases,omitempty"`
	Enabled    bool       `json:"enabled"`
	ReadOnly   bool       `json:"readOnly,omitempty"`
	Compatible []string   `json:"compatible,omitempty"`
	Matching   string     `json:"matchingCompatible,omitempty"`
	Binding    string     `json:"binding,omitempty"`
	Title      string     `json:"title,omitempty"`
	Desc       string     `json:"description,omitempty"`
	Bus        string     `json:"bus,omitempty"`
	UnitAddr   *big.Int   `json:"unitAddr,omitempty"`
	Instance   *int       `json:"instance,omitempty"`
	Ordinal    int        `json:"ordinal"`
	DependsOn  []string   `json:"dependsOn,omitempty"`
	RequiredBy []string   `json:"requiredBy,omitempty"`
	Regs       []RegJSON  `json:"regs,omitempty"`
	Interrupts []LinkJSON `json:"interrupts,omitempty"`
	GPIOs      []LinkJSON `json:"gpios,omitempty"`
	Clocks     []LinkJSON `json:"clocks,omitempty"`
	PWMs       []LinkJSON `json:"pwms,omitempty"`
	Props      []PropJSON `json:"props,omitempty"`
}

// RegJSON holds a register block. Addresses can exceed 64 bits and are
// encoded as plain JSON numbers.
type RegJSON struct {
	Name string   `json:"name,omitempty"`
	Addr *big.Int `json:"addr"`
	Size *big.Int `json:"size,omitempty"`
}

// LinkJSON holds an interrupt, GPIO, clock or PWM.
type LinkJSON struct {
	Name       string            `json:"name,omitempty"`
	Controller string            `json:"controller"`
	Cells      map[string]uint32 `json:"cells"`
}

// PropJSON holds a property typed by the device's binding.
type PropJSON struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
	EnumIndex *int   `json:"enumIndex,omitempty"`
}

// DiagnosticJSON holds a binding or device graph diagnostic.
type DiagnosticJSON struct {
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

func marshalJSON(v any, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
