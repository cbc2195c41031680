package dt

import "fmt"

// ParseError is a lexical or grammar error in DTS source.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d (column %d): parse error: %s", e.File, e.Line, e.Column, e.Msg)
}

// SemanticError is an error found after parsing: an unresolved reference,
// a duplicate phandle or label, a malformed value, and so on. Path is the
// node path and Prop the property name when known.
type SemanticError struct {
	Path string
	Prop string
	Msg  string
}

func (e *SemanticError) Error() string {
	switch {
	case e.Prop != "":
		return fmt.Sprintf("%s (for property '%s' on %s)", e.Msg, e.Prop, e.Path)
	case e.Path != "":
		return e.Path + ": " + e.Msg
	default:
		return e.Msg
	}
}

// semanticErrorf returns a SemanticError for a node path.
func semanticErrorf(path, format string, args ...any) error {
	return &SemanticError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// errorMsg returns the message of err without any location prefix.
func errorMsg(err error) string {
	if se, ok := err.(*SemanticError); ok && se.Path == "" && se.Prop == "" {
		return se.Msg
	}
	return err.Error()
}
