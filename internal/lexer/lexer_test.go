package lexer

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, source string) []Token {
	t.Helper()
	l := New("test.dts", []byte(source), nil, nil)
	var tokens []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF || tok.Kind == TokBad {
			return tokens
		}
	}
}

func tokenKinds(t *testing.T, source string) []TokenKind {
	t.Helper()
	var kinds []TokenKind
	for _, tok := range lexAll(t, source) {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func tokenVals(t *testing.T, source string) []string {
	t.Helper()
	var vals []string
	for _, tok := range lexAll(t, source) {
		if tok.Kind != TokEOF {
			vals = append(vals, tok.Val)
		}
	}
	return vals
}

func TestEmptyInput(t *testing.T) {
	assert.Equal(t, []TokenKind{TokEOF}, tokenKinds(t, ""))
	assert.Equal(t, []TokenKind{TokEOF}, tokenKinds(t, "  \n\t/* c */ // c\n"))
}

func TestDirectives(t *testing.T) {
	kinds := tokenKinds(t, "/dts-v1/ /plugin/ /memreserve/ /bits/ /delete-property/ x /delete-node/ y /omit-if-no-ref/ z /incbin/")
	assert.Equal(t, []TokenKind{
		TokDTSV1, TokPlugin, TokMemreserve, TokBits,
		TokDelProp, TokPropNodeName, TokDelNode, TokPropNodeName,
		TokOmitIfNoRef, TokPropNodeName, TokIncbin, TokEOF,
	}, kinds)
}

func TestModes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kinds  []TokenKind
		vals   []string
	}{
		{
			name:   "names after brace and semicolon",
			source: "/ { #address-cells; node@1,2 { }; };",
			kinds: []TokenKind{
				TokMisc, TokMisc, TokPropNodeName, TokMisc,
				TokPropNodeName, TokMisc, TokMisc, TokMisc, TokMisc, TokMisc, TokEOF,
			},
			vals: []string{"/", "{", "#address-cells", ";", "node@1,2", "{", "}", ";", "}", ";"},
		},
		{
			name:   "numbers in default mode",
			source: "< 0x1F 017 10 1ULL 2U 3L >",
			kinds:  []TokenKind{TokMisc, TokNum, TokNum, TokNum, TokNum, TokNum, TokNum, TokMisc, TokEOF},
			vals:   []string{"<", "0x1F", "017", "10", "1ULL", "2U", "3L", ">"},
		},
		{
			name:   "bytes in brackets",
			source: "[ 0a1B ff ] 12",
			kinds:  []TokenKind{TokMisc, TokByte, TokByte, TokByte, TokMisc, TokNum, TokEOF},
			vals:   []string{"[", "0a", "1B", "ff", "]", "12"},
		},
		{
			name:   "escaped name",
			source: "{ \\node",
			kinds:  []TokenKind{TokMisc, TokPropNodeName, TokEOF},
			vals:   []string{"{", "node"},
		},
		{
			name:   "name mode ends after one name",
			source: "{ a 1",
			kinds:  []TokenKind{TokMisc, TokPropNodeName, TokNum, TokEOF},
			vals:   []string{"{", "a", "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kinds, tokenKinds(t, tt.source))
			assert.Equal(t, tt.vals, tokenVals(t, tt.source))
		})
	}
}

func TestNumberValues(t *testing.T) {
	tokens := lexAll(t, "0x1F 017 10 0 18446744073709551616")
	var got []string
	for _, tok := range tokens {
		if tok.Kind == TokNum {
			got = append(got, tok.Num.String())
		}
	}
	assert.Equal(t, []string{"31", "15", "10", "0", "18446744073709551616"}, got)
}

func TestInvalidOctal(t *testing.T) {
	l := New("test.dts", []byte("089"), nil, nil)
	_, err := l.Next()
	var pe *dt.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Msg, "invalid number")
}

func TestLabelsAndRefs(t *testing.T) {
	kinds := tokenKinds(t, "l1: &l2 &{/foo/bar@1} &&")
	assert.Equal(t, []TokenKind{TokLabel, TokRef, TokRef, TokMisc, TokEOF}, kinds)
	assert.Equal(t, []string{"l1", "l2", "{/foo/bar@1}", "&&"}, tokenVals(t, "l1: &l2 &{/foo/bar@1} &&"))
}

func TestStringsAndCharLiterals(t *testing.T) {
	tokens := lexAll(t, `"a\"b" 'x' '\n'`)
	require.Len(t, tokens, 4)
	assert.Equal(t, TokString, tokens[0].Kind)
	assert.Equal(t, `a\"b`, tokens[0].Val)
	assert.Equal(t, TokCharLiteral, tokens[1].Kind)
	assert.Equal(t, "x", tokens[1].Val)
	assert.Equal(t, `\n`, tokens[2].Val)
}

func TestOperatorsLongestMatch(t *testing.T) {
	vals := tokenVals(t, "== != ! = << <= < >> >= > || | && & ? : ~ ^ % * + -")
	assert.Equal(t, []string{
		"==", "!=", "!", "=", "<<", "<=", "<", ">>", ">=", ">",
		"||", "|", "&&", "&", "?", ":", "~", "^", "%", "*", "+", "-",
	}, vals)
}

func TestBadToken(t *testing.T) {
	tokens := lexAll(t, "< $")
	require.Len(t, tokens, 2)
	assert.Equal(t, TokBad, tokens[1].Kind)
	assert.Equal(t, 3, tokens[1].Pos.Column)
}

func TestPositions(t *testing.T) {
	tokens := lexAll(t, "/dts-v1/;\n/* multi\nline */ / {\n\tx;\n};")
	require.GreaterOrEqual(t, len(tokens), 4)

	assert.Equal(t, 1, tokens[0].Pos.Line)
	assert.Equal(t, 1, tokens[0].Pos.Column)

	// '/' after the comment
	assert.Equal(t, 3, tokens[2].Pos.Line)
	assert.Equal(t, 9, tokens[2].Pos.Column)

	// 'x' after a tab
	assert.Equal(t, "x", tokens[4].Val)
	assert.Equal(t, 4, tokens[4].Pos.Line)
	assert.Equal(t, 2, tokens[4].Pos.Column)
}

func TestErrorfFormat(t *testing.T) {
	l := New("foo.dts", []byte("\n  abc"), nil, nil)
	_, err := l.Next()
	require.NoError(t, err)
	assert.EqualError(t, l.Errorf("oops"), "foo.dts:2 (column 3): parse error: oops")
}

func TestLineDirective(t *testing.T) {
	l := New("test.dts", []byte("#line 10 \"other.dts\"\n1\n# 20 \"third.dts\" 1\n2"), nil, nil)

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "other.dts", tok.Pos.File)
	assert.Equal(t, 10, tok.Pos.Line)

	tok, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, "third.dts", tok.Pos.File)
	assert.Equal(t, 20, tok.Pos.Line)
}

func TestInclude(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"inc.dtsi":     "\n\n1",
		"inc/lib.dtsi": "3",
	})

	l := New(filepath.Join(dir, "top.dts"),
		[]byte("/include/ \"inc.dtsi\" 2 /include/ \"lib.dtsi\"\n4"),
		[]string{filepath.Join(dir, "inc")}, nil)

	type seen struct {
		num  string
		file string
		line int
	}
	var got []seen
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == TokEOF {
			break
		}
		require.Equal(t, TokNum, tok.Kind)
		got = append(got, seen{tok.Num.String(), filepath.Base(tok.Pos.File), tok.Pos.Line})
	}
	assert.Equal(t, []seen{
		{"1", "inc.dtsi", 3},
		{"2", "top.dts", 1},
		{"3", "lib.dtsi", 1},
		{"4", "top.dts", 2},
	}, got)
}

func TestIncludeSearchOrder(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"top.dts":      "",
		"a.dtsi":       "1",
		"path/a.dtsi":  "2",
		"path/b.dtsi":  "3",
		"path2/b.dtsi": "4",
	})
	l := New(filepath.Join(dir, "top.dts"),
		[]byte(`/include/ "a.dtsi" /include/ "b.dtsi"`),
		[]string{filepath.Join(dir, "path"), filepath.Join(dir, "path2")}, nil)

	var nums []string
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == TokEOF {
			break
		}
		nums = append(nums, tok.Num.String())
	}
	assert.Equal(t, []string{"1", "3"}, nums)
}

func TestIncludeErrors(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"top.dts":   `/include/ "self.dtsi"`,
		"self.dtsi": "\n/include/ \"self.dtsi\"",
	})
	top := filepath.Join(dir, "top.dts")

	t.Run("missing", func(t *testing.T) {
		l := New(top, []byte(`/include/ "missing.dtsi"`), nil, nil)
		_, err := l.Next()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "'missing.dtsi' could not be found")
	})

	t.Run("recursive", func(t *testing.T) {
		l := New(top, []byte(`/include/ "self.dtsi"`), nil, nil)
		_, err := l.Next()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recursive /include/:\n")
		assert.Contains(t, err.Error(), "self.dtsi:2 ->\nself.dtsi")
	})
}

func TestReadFile(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"bin/blob.bin": "\x01\x02",
	})
	l := New(filepath.Join(dir, "top.dts"), nil, []string{filepath.Join(dir, "bin")}, nil)
	data, err := l.ReadFile("blob.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	_, err = l.ReadFile("nope.bin")
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`a\\b`, `a\b`},
		{`\"q\"`, `"q"`},
		{`\a\b\t\n\v\f\r`, "\a\b\t\n\v\f\r"},
		{`\x41\x4`, "A\x04"},
		{`\101\7`, "A\x07"},
		{`\q`, `\q`},
		{`\x`, `\x`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Unescape([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := Unescape([]byte(`\777`))
	assert.EqualError(t, err, "octal escape out of range (> 255)")
}
