// Package parser provides recursive-descent parsing of devicetree source
// into a dt.Tree.
//
// The parser builds the raw tree only: references inside values are
// recorded as markers and resolved later by dt.Tree.Finalize. References
// used structurally (reopening a node with '&label { ... };', /delete-node/
// and /omit-if-no-ref/ at the top level) are resolved immediately, so they
// must refer to nodes defined earlier in the file.
//
// Parsing stops at the first error; there is no recovery.
package parser

import (
	"log/slog"
	"strings"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/lexer"
	"github.com/golangsnmp/godts/internal/types"
)

// Parser converts devicetree source into a tree.
type Parser struct {
	lex   *lexer.Lexer
	tree  *dt.Tree
	saved *lexer.Token // single token of lookahead
	types.Logger
}

// New returns a Parser for source read from filename. includePaths is
// searched for /include/ and /incbin/ files after the directory of the
// including file. Pass nil for logger to disable logging.
func New(filename string, source []byte, includePaths []string, logger *slog.Logger) *Parser {
	p := &Parser{
		lex:    lexer.New(filename, source, includePaths, types.Component(logger, "lexer")),
		tree:   dt.NewTree(filename),
		Logger: types.Logger{L: logger},
	}
	p.Log(slog.LevelDebug, "parser initialized", slog.String("file", filename))
	return p
}

// Parse parses the whole input and returns the raw, unfinalized tree.
func (p *Parser) Parse() (*dt.Tree, error) {
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	if err := p.parseMemreserves(); err != nil {
		return nil, err
	}
	if err := p.parseTopLevel(); err != nil {
		return nil, err
	}
	p.tree.Filename = p.lex.Filename()

	p.Log(slog.LevelDebug, "parse complete",
		slog.Int("memreserves", len(p.tree.Memreserves)),
		slog.Int("nodes", len(p.tree.Nodes())))
	return p.tree, nil
}

func (p *Parser) next() (lexer.Token, error) {
	if p.saved != nil {
		tok := *p.saved
		p.saved = nil
		return tok, nil
	}
	return p.lex.Next()
}

// peek returns the next token without consuming it. The lexer mode is
// fixed when the token is first lexed.
func (p *Parser) peek() (lexer.Token, error) {
	if p.saved == nil {
		tok, err := p.lex.Next()
		if err != nil {
			return lexer.Token{}, err
		}
		p.saved = &tok
	}
	return *p.saved, nil
}

// check consumes the next token if it is the operator op.
func (p *Parser) check(op string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if tok.Is(op) {
		p.saved = nil
		return true, nil
	}
	return false, nil
}

// expect consumes the next token, which must be the operator op.
func (p *Parser) expect(op string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if !tok.Is(op) {
		return p.errorf("expected '%s', not '%s'", op, tok.Val)
	}
	return nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return p.lex.Errorf(format, args...)
}

// parseHeader parses '/dts-v1/;' and rejects '/plugin/'.
func (p *Parser) parseHeader() error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind != lexer.TokDTSV1 {
		return p.errorf("expected /dts-v1/ -- other versions are not supported")
	}
	if err := p.expect(";"); err != nil {
		return err
	}

	tok, err = p.peek()
	if err != nil {
		return err
	}
	if tok.Kind == lexer.TokPlugin {
		return p.errorf("/plugin/ is not supported")
	}
	return nil
}

// parseMemreserves parses '[label:]... /memreserve/ <addr> <len>;'
// statements at the start of the file.
func (p *Parser) parseMemreserves() error {
	for {
		var labels []string
		for {
			tok, err := p.peek()
			if err != nil {
				return err
			}
			if tok.Kind != lexer.TokLabel {
				break
			}
			p.saved = nil
			labels = appendNoDup(labels, tok.Val)
		}

		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Kind != lexer.TokMemreserve {
			if len(labels) > 0 {
				return p.errorf("expected /memreserve/ after labels at beginning of file")
			}
			return nil
		}
		p.saved = nil

		addr, err := p.evalUint64()
		if err != nil {
			return err
		}
		length, err := p.evalUint64()
		if err != nil {
			return err
		}
		if err := p.expect(";"); err != nil {
			return err
		}
		p.tree.AddMemreserve(dt.Memreserve{
			Labels:  labels,
			Address: addr,
			Length:  length,
		})
	}
}

// parseTopLevel parses root node bodies, node references and top-level
// /delete-node/ and /omit-if-no-ref/ statements until end of input.
func (p *Parser) parseTopLevel() error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		switch {
		case tok.Is("/"):
			if err := p.expect("{"); err != nil {
				return err
			}
			if err := p.parseNode(p.tree.EnsureRoot()); err != nil {
				return err
			}

		case tok.Kind == lexer.TokLabel || tok.Kind == lexer.TokRef:
			label := ""
			if tok.Kind == lexer.TokLabel {
				label = tok.Val
				if tok, err = p.next(); err != nil {
					return err
				}
			}
			if tok.Kind != lexer.TokRef {
				return p.errorf("expected label reference")
			}
			node, err := p.resolveRef(tok.Val)
			if err != nil {
				return err
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			if err := p.parseNode(node); err != nil {
				return err
			}
			if label != "" {
				node.AddLabel(label)
			}

		case tok.Kind == lexer.TokDelNode:
			node, err := p.nextRef()
			if err != nil {
				return err
			}
			p.deleteNode(node)
			if err := p.expect(";"); err != nil {
				return err
			}

		case tok.Kind == lexer.TokOmitIfNoRef:
			node, err := p.nextRef()
			if err != nil {
				return err
			}
			node.MarkOmitIfNoRef()
			if err := p.expect(";"); err != nil {
				return err
			}

		case tok.Kind == lexer.TokEOF:
			if p.tree.Root() == nil {
				return p.errorf("no root node defined")
			}
			return nil

		default:
			return p.errorf("expected '/' or label reference")
		}
	}
}

// parseNode parses the '... };' part of a node body into node.
func (p *Parser) parseNode(node *dt.Node) error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		// Any number of labels and /omit-if-no-ref/s may precede a node
		var labels []string
		omitIfNoRef := false
		for tok.Kind == lexer.TokLabel || tok.Kind == lexer.TokOmitIfNoRef {
			if tok.Kind == lexer.TokLabel {
				labels = appendNoDup(labels, tok.Val)
			} else {
				omitIfNoRef = true
			}
			if tok, err = p.next(); err != nil {
				return err
			}
		}

		if tok.Kind != lexer.TokPropNodeName && (len(labels) > 0 || omitIfNoRef) {
			return p.errorf("expected node or property name")
		}

		switch {
		case tok.Kind == lexer.TokPropNodeName:
			if err := p.parseNodeItem(node, tok.Val, labels, omitIfNoRef); err != nil {
				return err
			}

		case tok.Kind == lexer.TokDelNode:
			name, err := p.next()
			if err != nil {
				return err
			}
			if name.Kind != lexer.TokPropNodeName {
				return p.errorf("expected node name")
			}
			if child, ok := node.Child(name.Val); ok {
				p.deleteNode(child)
			}
			if err := p.expect(";"); err != nil {
				return err
			}

		case tok.Kind == lexer.TokDelProp:
			name, err := p.next()
			if err != nil {
				return err
			}
			if name.Kind != lexer.TokPropNodeName {
				return p.errorf("expected property name")
			}
			node.DeleteProperty(name.Val)
			if err := p.expect(";"); err != nil {
				return err
			}

		case tok.Is("}"):
			return p.expect(";")

		default:
			return p.errorf("expected node name, property name, or '}'")
		}
	}
}

// parseNodeItem handles what follows a name in a node body: a child node,
// an assignment or an empty property.
func (p *Parser) parseNodeItem(node *dt.Node, name string, labels []string, omitIfNoRef bool) error {
	tok, err := p.next()
	if err != nil {
		return err
	}

	switch {
	case tok.Is("{"):
		if strings.Count(name, "@") > 1 {
			return p.errorf("multiple '@' in node name")
		}
		// Reopening an existing child merges into it
		child := node.GetOrCreateChild(name)
		for _, label := range labels {
			child.AddLabel(label)
		}
		if omitIfNoRef {
			child.MarkOmitIfNoRef()
		}
		return p.parseNode(child)

	case omitIfNoRef:
		return p.errorf("/omit-if-no-ref/ can only be used on nodes")

	case tok.Is("=") || tok.Is(";"):
		if strings.Contains(name, "@") {
			return p.errorf("'@' is only allowed in node names")
		}
		prop := node.GetOrCreateProperty(name)
		if tok.Is("=") {
			if err := p.parseAssignment(prop); err != nil {
				return err
			}
		}
		for _, label := range labels {
			prop.AddLabel(label)
		}
		return nil

	default:
		return p.errorf("expected '{', '=', or ';'")
	}
}

// nextRef consumes a label or path reference and returns the node it
// points to.
func (p *Parser) nextRef() (*dt.Node, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lexer.TokRef {
		return nil, p.errorf("expected label reference or path")
	}
	return p.resolveRef(tok.Val)
}

func (p *Parser) resolveRef(ref string) (*dt.Node, error) {
	node, err := p.tree.ResolveRef(ref)
	if err != nil {
		return nil, p.errorf("%s", err)
	}
	return node, nil
}

func (p *Parser) deleteNode(node *dt.Node) {
	p.Log(slog.LevelDebug, "deleting node", slog.String("path", node.Path()))
	node.Delete()
}

func appendNoDup(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
