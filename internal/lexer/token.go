// Package lexer provides tokenization for devicetree source text.
package lexer

import (
	"math/big"

	"github.com/golangsnmp/godts/internal/types"
)

// Token is a token with kind, value and source position.
type Token struct {
	Kind TokenKind
	// Val is the token text. For strings and character literals it is the
	// raw text between the quotes, for labels the name without ':', for
	// references the label or '{path}' without '&', and for names the name
	// without a leading backslash.
	Val string
	// Num is the value of a TokNum or TokByte.
	Num *big.Int
	Pos types.Pos
}

// Is reports whether the token is the operator or punctuation op.
func (t Token) Is(op string) bool {
	return t.Kind == TokMisc && t.Val == op
}

// TokenKind identifies a token type.
type TokenKind int

const (
	// TokBad is text that does not form a token in the current mode.
	TokBad TokenKind = iota
	// TokEOF is end of input.
	TokEOF

	// TokString is a quoted string.
	TokString
	// TokCharLiteral is a quoted character ('a').
	TokCharLiteral
	// TokNum is an integer literal.
	TokNum
	// TokByte is a two-digit hex byte inside '[ ]'.
	TokByte
	// TokLabel is 'name:'.
	TokLabel
	// TokRef is '&label' or '&{/path}'.
	TokRef
	// TokPropNodeName is a property or node name.
	TokPropNodeName
	// TokMisc is an operator or punctuation.
	TokMisc

	// TokDTSV1 is '/dts-v1/'.
	TokDTSV1
	// TokPlugin is '/plugin/'.
	TokPlugin
	// TokMemreserve is '/memreserve/'.
	TokMemreserve
	// TokBits is '/bits/'.
	TokBits
	// TokDelProp is '/delete-property/'.
	TokDelProp
	// TokDelNode is '/delete-node/'.
	TokDelNode
	// TokOmitIfNoRef is '/omit-if-no-ref/'.
	TokOmitIfNoRef
	// TokIncbin is '/incbin/'.
	TokIncbin
)

// String returns the token kind name.
func (k TokenKind) String() string {
	switch k {
	case TokBad:
		return "BAD"
	case TokEOF:
		return "EOF"
	case TokString:
		return "STRING"
	case TokCharLiteral:
		return "CHAR_LITERAL"
	case TokNum:
		return "NUM"
	case TokByte:
		return "BYTE"
	case TokLabel:
		return "LABEL"
	case TokRef:
		return "REF"
	case TokPropNodeName:
		return "PROPNODENAME"
	case TokMisc:
		return "MISC"
	case TokDTSV1:
		return "DTS_V1"
	case TokPlugin:
		return "PLUGIN"
	case TokMemreserve:
		return "MEMRESERVE"
	case TokBits:
		return "BITS"
	case TokDelProp:
		return "DEL_PROP"
	case TokDelNode:
		return "DEL_NODE"
	case TokOmitIfNoRef:
		return "OMIT_IF_NO_REF"
	case TokIncbin:
		return "INCBIN"
	default:
		return "UNKNOWN"
	}
}

// directives lists the directives tried after strings and before labels.
// /incbin/ is matched separately, after references.
var directives = []struct {
	text string
	kind TokenKind
}{
	{"/dts-v1/", TokDTSV1},
	{"/plugin/", TokPlugin},
	{"/memreserve/", TokMemreserve},
	{"/bits/", TokBits},
	{"/delete-property/", TokDelProp},
	{"/delete-node/", TokDelNode},
	{"/omit-if-no-ref/", TokOmitIfNoRef},
}

// operators is ordered so that longer operators are tried before their
// prefixes.
var operators = []string{
	"==", "!=", "!", "=", ",", ";", "+", "-", "*", "/", "%", "~", "?", ":",
	"^", "(", ")", "{", "}", "[", "]", "<<", "<=", "<", ">>", ">=", ">",
	"||", "|", "&&", "&",
}
