package edt

import (
	"errors"
	"fmt"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/binding"
)

// BindingError is a malformed binding file, a missing or ambiguous
// !include, or a bad merge.
type BindingError = binding.Error

// errorf returns a SemanticError for node.
func errorf(node *dt.Node, format string, args ...any) error {
	return &dt.SemanticError{Path: node.Path(), Msg: fmt.Sprintf(format, args...)}
}

// propErrorf returns a SemanticError for a property.
func propErrorf(prop *dt.Property, format string, args ...any) error {
	return &dt.SemanticError{Path: prop.Node().Path(), Prop: prop.Name, Msg: fmt.Sprintf(format, args...)}
}

// atNode gives a location-less conversion error the path of node.
func atNode(node *dt.Node, err error) error {
	var serr *dt.SemanticError
	if errors.As(err, &serr) && serr.Path == "" && serr.Prop == "" {
		return &dt.SemanticError{Path: node.Path(), Msg: serr.Msg}
	}
	return err
}
