package lexer

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/types"
)

// Mode selects which context-dependent tokens the lexer recognizes.
type Mode int

const (
	// ModeDefault recognizes numbers.
	ModeDefault Mode = iota
	// ModeName recognizes property and node names.
	ModeName
	// ModeByte recognizes two-digit hex bytes.
	ModeByte
)

// fileState is a suspended includer.
type fileState struct {
	filename  string
	line      int
	lineStart int
	source    []byte
	pos       int
}

// Lexer tokenizes devicetree source text, following /include/ directives
// as they are encountered.
type Lexer struct {
	filename     string
	source       []byte
	pos          int
	line         int
	lineStart    int // offset of the first byte of the current line
	tokStart     int
	mode         Mode
	stack        []fileState
	includePaths []string
	types.Logger
}

// New returns a Lexer for source, which was read from filename. Included
// files are searched for in the directory of the including file and then
// in includePaths.
func New(filename string, source []byte, includePaths []string, logger *slog.Logger) *Lexer {
	l := &Lexer{
		filename:     filename,
		source:       source,
		line:         1,
		includePaths: includePaths,
		Logger:       types.Logger{L: logger},
	}
	l.Log(slog.LevelDebug, "lexer initialized",
		slog.String("file", filename),
		slog.Int("bytes", len(source)))
	return l
}

// Filename returns the name of the file being lexed. It reflects /include/
// and #line directives.
func (l *Lexer) Filename() string {
	return l.filename
}

// Pos returns the position of the most recently lexed token.
func (l *Lexer) Pos() types.Pos {
	lineStart := l.lineStart
	if l.tokStart < lineStart {
		// Token started before the newlines it contains
		lineStart = bytes.LastIndexByte(l.source[:l.tokStart], '\n') + 1
	}
	return types.Pos{File: l.filename, Line: l.line, Column: l.tokStart - lineStart + 1}
}

// Errorf returns a ParseError located at the most recently lexed token.
func (l *Lexer) Errorf(format string, args ...any) error {
	pos := l.Pos()
	return &dt.ParseError{
		File:   pos.File,
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (l *Lexer) traceToken(tok Token) {
	if l.TraceEnabled() {
		l.Trace("token",
			slog.String("kind", tok.Kind.String()),
			slog.String("val", tok.Val),
			slog.Int("line", tok.Pos.Line),
			slog.Int("column", tok.Pos.Column))
	}
}

// Next returns the next token. The returned error is a *dt.ParseError for
// /include/ failures and malformed numbers; text that doesn't form a token
// is returned as TokBad so the parser can report it in context.
func (l *Lexer) Next() (Token, error) {
	for {
		start := l.pos
		l.tokStart = start

		if tok, ok, err := l.scanContextFree(); err != nil || ok {
			if err != nil {
				return Token{}, err
			}
			if tok.Kind == TokEOF && len(l.stack) > 0 {
				l.leaveFile()
				continue
			}
			if tok.Kind == tokSkip {
				continue
			}
			return l.emit(tok), nil
		}

		tok, ok, err := l.scanModal()
		if err != nil {
			return Token{}, err
		}
		if ok {
			return l.emit(tok), nil
		}

		if op, ok := l.matchOperator(); ok {
			l.pos += len(op)
			return l.emit(Token{Kind: TokMisc, Val: op}), nil
		}

		l.tokStart = l.pos
		tok = Token{Kind: TokBad, Val: "<unknown token>", Pos: l.Pos()}
		l.traceToken(tok)
		return tok, nil
	}
}

// emit finishes a token: fills in its position and updates the mode.
func (l *Lexer) emit(tok Token) Token {
	tok.Pos = l.Pos()
	l.consumedNewlines(l.tokStart, l.pos)

	switch {
	case tok.Kind == TokDelProp || tok.Kind == TokDelNode || tok.Kind == TokOmitIfNoRef ||
		tok.Is("{") || tok.Is(";"):
		l.mode = ModeName
	case tok.Is("["):
		l.mode = ModeByte
	case tok.Kind == TokMemreserve || tok.Kind == TokBits || tok.Is("]"):
		l.mode = ModeDefault
	}
	l.traceToken(tok)
	return tok
}

// tokSkip is an internal kind for whitespace, comments and handled
// directives.
const tokSkip TokenKind = -1

// scanContextFree matches the tokens recognized in every mode. It handles
// /include/ and #line itself and reports them as tokSkip.
func (l *Lexer) scanContextFree() (Token, bool, error) {
	rest := l.source[l.pos:]

	if bytes.HasPrefix(rest, []byte("/include/")) {
		if end, ok := l.scanIncludeFilename(l.pos + len("/include/")); ok {
			l.tokStart = l.pos
			quote := bytes.IndexByte(l.source[l.pos:end], '"')
			name := l.source[l.pos+quote+1 : end-1]
			l.consumedNewlines(l.pos, end)
			l.pos = end
			if err := l.enterFile(name); err != nil {
				return Token{}, false, err
			}
			return Token{Kind: tokSkip}, true, nil
		}
	}

	if l.atLineStart() && len(rest) > 0 && rest[0] == '#' {
		if ok := l.scanLineDirective(); ok {
			return Token{Kind: tokSkip}, true, nil
		}
	}

	if len(rest) > 0 && rest[0] == '"' {
		if end, ok := l.scanQuoted(l.pos, '"'); ok {
			val := string(l.source[l.pos+1 : end-1])
			l.pos = end
			return Token{Kind: TokString, Val: val}, true, nil
		}
	}

	for _, d := range directives {
		if bytes.HasPrefix(rest, []byte(d.text)) {
			l.pos += len(d.text)
			return Token{Kind: d.kind, Val: d.text}, true, nil
		}
	}

	if n := identLen(rest); n > 0 && n < len(rest) && rest[n] == ':' {
		l.pos += n + 1
		return Token{Kind: TokLabel, Val: string(rest[:n])}, true, nil
	}

	if len(rest) > 0 && rest[0] == '\'' {
		if end, ok := l.scanQuoted(l.pos, '\''); ok {
			val := string(l.source[l.pos+1 : end-1])
			l.pos = end
			return Token{Kind: TokCharLiteral, Val: val}, true, nil
		}
	}

	if len(rest) > 1 && rest[0] == '&' {
		if n := identLen(rest[1:]); n > 0 {
			l.pos += 1 + n
			return Token{Kind: TokRef, Val: string(rest[1 : 1+n])}, true, nil
		}
		if rest[1] == '{' {
			n := 2
			for n < len(rest) && isPathChar(rest[n]) {
				n++
			}
			if n < len(rest) && rest[n] == '}' {
				l.pos += n + 1
				return Token{Kind: TokRef, Val: string(rest[1 : n+1])}, true, nil
			}
		}
	}

	if bytes.HasPrefix(rest, []byte("/incbin/")) {
		l.pos += len("/incbin/")
		return Token{Kind: TokIncbin, Val: "/incbin/"}, true, nil
	}

	if l.skipSpaceAndComments() {
		return Token{Kind: tokSkip}, true, nil
	}

	if len(rest) == 0 {
		return Token{Kind: TokEOF, Val: "<EOF>"}, true, nil
	}
	return Token{}, false, nil
}

// scanModal matches the mode-dependent tokens.
func (l *Lexer) scanModal() (Token, bool, error) {
	rest := l.source[l.pos:]

	switch l.mode {
	case ModeDefault:
		return l.scanNumber()

	case ModeName:
		n := 0
		if len(rest) > 0 && rest[0] == '\\' {
			n = 1
		}
		start := n
		for n < len(rest) && isNameChar(rest[n]) {
			n++
		}
		if n == start {
			return Token{}, false, nil
		}
		l.pos += n
		l.mode = ModeDefault
		return Token{Kind: TokPropNodeName, Val: string(rest[start:n])}, true, nil

	default:
		if len(rest) < 2 || !isHexDigit(rest[0]) || !isHexDigit(rest[1]) {
			return Token{}, false, nil
		}
		l.pos += 2
		v := hexValue(rest[0])*16 + hexValue(rest[1])
		return Token{Kind: TokByte, Val: string(rest[:2]), Num: big.NewInt(int64(v))}, true, nil
	}
}

// scanNumber matches a hex, octal or decimal literal with an optional
// C integer suffix.
func (l *Lexer) scanNumber() (Token, bool, error) {
	rest := l.source[l.pos:]
	if len(rest) == 0 || !isDigit(rest[0]) {
		return Token{}, false, nil
	}

	var digits string
	base := 10
	n := 0
	if len(rest) > 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') && isHexDigit(rest[2]) {
		n = 2
		for n < len(rest) && isHexDigit(rest[n]) {
			n++
		}
		digits = string(rest[2:n])
		base = 16
	} else {
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
		digits = string(rest[:n])
		if len(digits) > 1 && digits[0] == '0' {
			base = 8
		}
	}
	text := string(rest[:n])

	for _, suffix := range []string{"ULL", "UL", "LL", "U", "L"} {
		if bytes.HasPrefix(rest[n:], []byte(suffix)) {
			n += len(suffix)
			break
		}
	}

	l.tokStart = l.pos
	num, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Token{}, false, l.Errorf("invalid number '%s'", text)
	}
	l.pos += n
	return Token{Kind: TokNum, Val: string(rest[:n]), Num: num}, true, nil
}

func (l *Lexer) matchOperator() (string, bool) {
	rest := l.source[l.pos:]
	for _, op := range operators {
		if bytes.HasPrefix(rest, []byte(op)) {
			return op, true
		}
	}
	return "", false
}

// skipSpaceAndComments skips one run of whitespace or one comment.
func (l *Lexer) skipSpaceAndComments() bool {
	rest := l.source[l.pos:]
	switch {
	case len(rest) > 0 && isSpace(rest[0]):
		n := 0
		for n < len(rest) && isSpace(rest[n]) {
			n++
		}
		l.advanceTo(l.pos + n)
		return true

	case bytes.HasPrefix(rest, []byte("/*")):
		end := bytes.Index(rest[2:], []byte("*/"))
		if end < 0 {
			return false
		}
		l.advanceTo(l.pos + 2 + end + 2)
		return true

	case bytes.HasPrefix(rest, []byte("//")):
		end := bytes.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
		}
		l.advanceTo(l.pos + end)
		return true
	}
	return false
}

// advanceTo moves to pos, counting the newlines passed over.
func (l *Lexer) advanceTo(pos int) {
	l.consumedNewlines(l.pos, pos)
	l.pos = pos
}

// consumedNewlines updates the line count for source[from:to]. Calling it
// twice for the same range is harmless.
func (l *Lexer) consumedNewlines(from, to int) {
	if from < l.lineStart {
		from = l.lineStart
	}
	if from >= to {
		return
	}
	text := l.source[from:to]
	if n := bytes.Count(text, []byte{'\n'}); n > 0 {
		l.line += n
		l.lineStart = from + bytes.LastIndexByte(text, '\n') + 1
	}
}

func (l *Lexer) atLineStart() bool {
	return l.pos == 0 || l.source[l.pos-1] == '\n'
}

// scanQuoted returns the offset just past the closing quote of the quoted
// text starting at start. Backslash escapes the next character, except a
// newline.
func (l *Lexer) scanQuoted(start int, quote byte) (int, bool) {
	for i := start + 1; i < len(l.source); i++ {
		switch l.source[i] {
		case quote:
			return i + 1, true
		case '\\':
			if i+1 >= len(l.source) || l.source[i+1] == '\n' {
				return 0, false
			}
			i++
		}
	}
	return 0, false
}

// scanIncludeFilename matches '\s*"file"' at from.
func (l *Lexer) scanIncludeFilename(from int) (int, bool) {
	i := from
	for i < len(l.source) && isSpace(l.source[i]) {
		i++
	}
	if i >= len(l.source) || l.source[i] != '"' {
		return 0, false
	}
	return l.scanQuoted(i, '"')
}

// scanLineDirective handles '#line N "file"' and '# N "file"' lines left
// by a C preprocessor.
func (l *Lexer) scanLineDirective() bool {
	rest := l.source[l.pos+1:]
	rest = bytes.TrimPrefix(rest, []byte("line"))
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i == 0 {
		return false
	}
	numStart := i
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	if i == numStart {
		return false
	}
	lineNo, err := strconv.Atoi(string(rest[numStart:i]))
	if err != nil {
		return false
	}
	sep := i
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i == sep || i >= len(rest) || rest[i] != '"' {
		return false
	}
	base := len(l.source) - len(rest)
	end, ok := l.scanQuoted(base+i, '"')
	if !ok {
		return false
	}
	filename := string(l.source[base+i+1 : end-1])

	// An optional trailing flag number
	j := end
	for j < len(l.source) && (l.source[j] == ' ' || l.source[j] == '\t') {
		j++
	}
	if k := j; k < len(l.source) && isDigit(l.source[k]) {
		for k < len(l.source) && isDigit(l.source[k]) {
			k++
		}
		end = k
	}

	l.pos = end
	// The newline ending the directive brings the count to lineNo
	l.line = lineNo - 1
	l.filename = filename
	l.Log(slog.LevelDebug, "line directive",
		slog.String("file", filename),
		slog.Int("line", lineNo))
	return true
}

// enterFile switches to the /include/d file, saving the current position.
func (l *Lexer) enterFile(rawName []byte) error {
	unescaped, err := Unescape(rawName)
	if err != nil {
		return l.Errorf("%s", err)
	}
	name := string(unescaped)

	path, data, err := l.open(name)
	if err != nil {
		return err
	}

	cur := fileState{
		filename:  l.filename,
		line:      l.line,
		lineStart: l.lineStart,
		source:    l.source,
		pos:       l.pos,
	}
	files := append(l.stack[:len(l.stack):len(l.stack)], cur)
	for i, parent := range files {
		if parent.filename != path && parent.filename != name {
			continue
		}
		var chain []string
		for _, p := range files[i:] {
			chain = append(chain, fmt.Sprintf("%s:%d", p.filename, p.line))
		}
		chain = append(chain, name)
		return l.Errorf("recursive /include/:\n%s", strings.Join(chain, " ->\n"))
	}

	l.stack = files
	l.filename = path
	l.source = data
	l.pos = 0
	l.line = 1
	l.lineStart = 0

	l.Log(slog.LevelDebug, "entering file",
		slog.String("file", path),
		slog.Int("depth", len(l.stack)))
	return nil
}

// leaveFile returns to the file that /include/d the current one.
func (l *Lexer) leaveFile() {
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	l.Log(slog.LevelDebug, "leaving file",
		slog.String("file", l.filename),
		slog.String("resume", top.filename))
	l.filename = top.filename
	l.line = top.line
	l.lineStart = top.lineStart
	l.source = top.source
	l.pos = top.pos
}

// ReadFile reads name using the /include/ search rules: the directory of
// the current file first, then each include path in order.
func (l *Lexer) ReadFile(name string) ([]byte, error) {
	_, data, err := l.open(name)
	return data, err
}

func (l *Lexer) open(name string) (string, []byte, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = []string{filepath.Join(filepath.Dir(l.filename), name)}
		for _, dir := range l.includePaths {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, l.Errorf("could not read '%s': %s", name, err)
		}
	}
	return "", nil, l.Errorf("'%s' could not be found", name)
}

// identLen returns the length of the C identifier at the start of b.
func identLen(b []byte) int {
	if len(b) == 0 || !(isAlpha(b[0]) || b[0] == '_') {
		return 0
	}
	n := 1
	for n < len(b) && (isAlpha(b[n]) || isDigit(b[n]) || b[n] == '_') {
		n++
	}
	return n
}

func isNameChar(b byte) bool {
	if isAlpha(b) || isDigit(b) {
		return true
	}
	return strings.IndexByte(",._+*#?@-", b) >= 0
}

func isPathChar(b byte) bool {
	return isNameChar(b) || b == '/'
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
