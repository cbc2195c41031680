package parser

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/golangsnmp/godts/dt"
	"github.com/golangsnmp/godts/internal/lexer"
)

// parseAssignment parses the right-hand side of 'name = ...;'. Any
// previous value and markers are dropped first, so the last assignment
// wins.
func (p *Parser) parseAssignment(prop *dt.Property) error {
	prop.Reset()

	for {
		// Labels before the value ('..., label: < 0 >')
		if err := p.parseLabels(prop); err != nil {
			return err
		}

		tok, err := p.next()
		if err != nil {
			return err
		}

		switch {
		case tok.Is("<"):
			err = p.parseCells(prop, 32)

		case tok.Kind == lexer.TokBits:
			err = p.parseBits(prop)

		case tok.Is("["):
			err = p.parseBytes(prop)

		case tok.Kind == lexer.TokCharLiteral:
			var c byte
			if c, err = p.charLiteral(tok); err == nil {
				prop.AppendValue(c)
			}

		case tok.Kind == lexer.TokString:
			var s []byte
			if s, err = p.unescape(tok.Val); err == nil {
				prop.AppendValue(append(s, 0)...)
			}

		case tok.Kind == lexer.TokRef:
			prop.AddMarker(tok.Val, dt.MarkerPath)

		case tok.Kind == lexer.TokIncbin:
			err = p.parseIncbin(prop)

		default:
			return p.errorf("malformed value")
		}
		if err != nil {
			return err
		}

		// Labels after the value ('< 0 > label:, ...')
		if err := p.parseLabels(prop); err != nil {
			return err
		}

		tok, err = p.next()
		if err != nil {
			return err
		}
		if tok.Is(";") {
			return nil
		}
		if !tok.Is(",") {
			return p.errorf("expected ';' or ','")
		}
	}
}

// parseBits parses the 'N < ... >' after /bits/.
func (p *Parser) parseBits(prop *dt.Property) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind != lexer.TokNum {
		return p.errorf("expected number")
	}
	bits := 0
	if tok.Num.IsInt64() {
		bits = int(tok.Num.Int64())
	}
	switch bits {
	case 8, 16, 32, 64:
	default:
		return p.errorf("expected 8, 16, 32, or 64")
	}
	if err := p.expect("<"); err != nil {
		return err
	}
	return p.parseCells(prop, bits)
}

// parseCells parses the elements of '< ... >' up to and including '>'.
func (p *Parser) parseCells(prop *dt.Property, bits int) error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}

		switch {
		case tok.Kind == lexer.TokRef:
			p.saved = nil
			if bits != 32 {
				return p.errorf("phandle references are only allowed in arrays with 32-bit elements")
			}
			prop.AddMarker(tok.Val, dt.MarkerPhandle)

		case tok.Kind == lexer.TokLabel:
			p.saved = nil
			prop.AddMarker(tok.Val, dt.MarkerLabel)

		case tok.Is(">"):
			p.saved = nil
			return nil

		default:
			num, err := p.evalPrimary()
			if err != nil {
				return err
			}
			cell, err := encodeCell(num, bits)
			if err != nil {
				return p.errorf("%s", err)
			}
			prop.AppendValue(cell...)
		}
	}
}

// encodeCell encodes num big-endian in bits bits. Values that don't fit
// as unsigned numbers are encoded in two's complement if they fit as
// signed ones.
func encodeCell(num *big.Int, bits int) ([]byte, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits))

	v := num
	if num.Sign() < 0 || num.Cmp(limit) >= 0 {
		half := new(big.Int).Rsh(limit, 1)
		if num.Cmp(new(big.Int).Neg(half)) < 0 || num.Cmp(half) >= 0 {
			return nil, fmt.Errorf("%s does not fit in %d bits", num, bits)
		}
		v = new(big.Int).Add(num, limit)
	}
	return v.FillBytes(make([]byte, bits/8)), nil
}

// evalUint64 evaluates a primary expression as a 64-bit value.
func (p *Parser) evalUint64() (uint64, error) {
	num, err := p.evalPrimary()
	if err != nil {
		return 0, err
	}
	cell, err := encodeCell(num, 64)
	if err != nil {
		return 0, p.errorf("%s", err)
	}
	return binary.BigEndian.Uint64(cell), nil
}

// parseBytes parses the elements of '[ ... ]' up to and including ']'.
func (p *Parser) parseBytes(prop *dt.Property) error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == lexer.TokByte:
			prop.AppendValue(byte(tok.Num.Int64()))
		case tok.Kind == lexer.TokLabel:
			prop.AddMarker(tok.Val, dt.MarkerLabel)
		case tok.Is("]"):
			return nil
		default:
			return p.errorf("expected two-digit byte or ']'")
		}
	}
}

// parseIncbin parses '("file")' or '("file", offset, size)' after
// /incbin/ and appends the file contents.
func (p *Parser) parseIncbin(prop *dt.Property) error {
	if err := p.expect("("); err != nil {
		return err
	}

	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Kind != lexer.TokString {
		return p.errorf("expected quoted filename")
	}
	filename := tok.Val

	var offset, size *big.Int
	tok, err = p.next()
	if err != nil {
		return err
	}
	switch {
	case tok.Is(","):
		if offset, err = p.evalPrimary(); err != nil {
			return err
		}
		if err := p.expect(","); err != nil {
			return err
		}
		if size, err = p.evalPrimary(); err != nil {
			return err
		}
		if err := p.expect(")"); err != nil {
			return err
		}
	case !tok.Is(")"):
		return p.errorf("expected ',' or ')'")
	}

	data, err := p.lex.ReadFile(filename)
	if err != nil {
		return err
	}
	if offset != nil {
		if offset.Sign() < 0 || size.Sign() < 0 {
			return p.errorf("could not read '%s': negative offset or size", filename)
		}
		start, end := uint64(len(data)), uint64(len(data))
		if offset.IsUint64() && offset.Uint64() < start {
			start = offset.Uint64()
		}
		if size.IsUint64() && size.Uint64() < end-start {
			end = start + size.Uint64()
		}
		data = data[start:end]
	}
	p.Log(slog.LevelDebug, "incbin",
		slog.String("file", filename),
		slog.Int("bytes", len(data)))
	prop.AppendValue(data...)
	return nil
}

// parseLabels records labels that appear between values.
func (p *Parser) parseLabels(prop *dt.Property) error {
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok.Kind != lexer.TokLabel {
			return nil
		}
		p.saved = nil
		prop.AddMarker(tok.Val, dt.MarkerLabel)
	}
}

func (p *Parser) unescape(s string) ([]byte, error) {
	b, err := lexer.Unescape([]byte(s))
	if err != nil {
		return nil, p.errorf("%s", err)
	}
	return b, nil
}

func (p *Parser) charLiteral(tok lexer.Token) (byte, error) {
	b, err := p.unescape(tok.Val)
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, p.errorf("character literals must be length 1")
	}
	return b[0], nil
}
