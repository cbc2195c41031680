package parser

import (
	"math/big"

	"github.com/golangsnmp/godts/internal/lexer"
)

// Expressions follow C precedence. Each level below parses the next
// tighter-binding level for its operands. Results of comparisons and
// logical operators are 0 or 1.

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// evalPrimary parses a number, a character literal, or a parenthesized
// expression.
func (p *Parser) evalPrimary() (*big.Int, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lexer.TokNum:
		return new(big.Int).Set(tok.Num), nil
	case tok.Kind == lexer.TokCharLiteral:
		c, err := p.charLiteral(tok)
		if err != nil {
			return nil, err
		}
		return big.NewInt(int64(c)), nil
	case tok.Is("("):
	default:
		return nil, p.errorf("expected number or parenthesized expression")
	}

	val, err := p.evalTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return val, nil
}

func (p *Parser) evalTernary() (*big.Int, error) {
	val, err := p.evalOr()
	if err != nil {
		return nil, err
	}
	ok, err := p.check("?")
	if err != nil || !ok {
		return val, err
	}

	// Both branches are parsed; only one is used
	ifVal, err := p.evalTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	elseVal, err := p.evalTernary()
	if err != nil {
		return nil, err
	}
	if val.Sign() != 0 {
		return ifVal, nil
	}
	return elseVal, nil
}

// binaryLevel parses 'operand (op operand)*' for a set of left-associative
// operators at one precedence level.
func (p *Parser) binaryLevel(operand func() (*big.Int, error), ops []string,
	apply func(op string, a, b *big.Int) (*big.Int, error)) (*big.Int, error) {

	val, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			ok, err := p.check(op)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = op
				break
			}
		}
		if matched == "" {
			return val, nil
		}
		rhs, err := operand()
		if err != nil {
			return nil, err
		}
		if val, err = apply(matched, val, rhs); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) evalOr() (*big.Int, error) {
	return p.binaryLevel(p.evalAnd, []string{"||"}, func(_ string, a, b *big.Int) (*big.Int, error) {
		return boolInt(a.Sign() != 0 || b.Sign() != 0), nil
	})
}

func (p *Parser) evalAnd() (*big.Int, error) {
	return p.binaryLevel(p.evalBitOr, []string{"&&"}, func(_ string, a, b *big.Int) (*big.Int, error) {
		return boolInt(a.Sign() != 0 && b.Sign() != 0), nil
	})
}

func (p *Parser) evalBitOr() (*big.Int, error) {
	return p.binaryLevel(p.evalBitXor, []string{"|"}, func(_ string, a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Or(a, b), nil
	})
}

func (p *Parser) evalBitXor() (*big.Int, error) {
	return p.binaryLevel(p.evalBitAnd, []string{"^"}, func(_ string, a, b *big.Int) (*big.Int, error) {
		return new(big.Int).Xor(a, b), nil
	})
}

func (p *Parser) evalBitAnd() (*big.Int, error) {
	return p.binaryLevel(p.evalEquality, []string{"&"}, func(_ string, a, b *big.Int) (*big.Int, error) {
		return new(big.Int).And(a, b), nil
	})
}

func (p *Parser) evalEquality() (*big.Int, error) {
	return p.binaryLevel(p.evalRelational, []string{"==", "!="}, func(op string, a, b *big.Int) (*big.Int, error) {
		eq := a.Cmp(b) == 0
		if op == "!=" {
			eq = !eq
		}
		return boolInt(eq), nil
	})
}

func (p *Parser) evalRelational() (*big.Int, error) {
	return p.binaryLevel(p.evalShift, []string{"<", ">", "<=", ">="}, func(op string, a, b *big.Int) (*big.Int, error) {
		c := a.Cmp(b)
		switch op {
		case "<":
			return boolInt(c < 0), nil
		case ">":
			return boolInt(c > 0), nil
		case "<=":
			return boolInt(c <= 0), nil
		default:
			return boolInt(c >= 0), nil
		}
	})
}

// maxShift bounds shift counts so a stray '1 << 0xffffffff' can't exhaust
// memory.
const maxShift = 1 << 16

func (p *Parser) evalShift() (*big.Int, error) {
	return p.binaryLevel(p.evalAdditive, []string{"<<", ">>"}, func(op string, a, b *big.Int) (*big.Int, error) {
		if b.Sign() < 0 {
			return nil, p.errorf("negative shift count")
		}
		if !b.IsInt64() || b.Int64() > maxShift {
			return nil, p.errorf("shift count %s too large", b)
		}
		n := uint(b.Int64())
		if op == "<<" {
			return new(big.Int).Lsh(a, n), nil
		}
		return new(big.Int).Rsh(a, n), nil
	})
}

func (p *Parser) evalAdditive() (*big.Int, error) {
	return p.binaryLevel(p.evalMultiplicative, []string{"+", "-"}, func(op string, a, b *big.Int) (*big.Int, error) {
		if op == "+" {
			return new(big.Int).Add(a, b), nil
		}
		return new(big.Int).Sub(a, b), nil
	})
}

func (p *Parser) evalMultiplicative() (*big.Int, error) {
	return p.binaryLevel(p.evalUnary, []string{"*", "/", "%"}, func(op string, a, b *big.Int) (*big.Int, error) {
		if op == "*" {
			return new(big.Int).Mul(a, b), nil
		}
		if b.Sign() == 0 {
			return nil, p.errorf("division by zero")
		}
		q, r := floorDivMod(a, b)
		if op == "/" {
			return q, nil
		}
		return r, nil
	})
}

// floorDivMod divides rounding toward negative infinity. The remainder has
// the sign of the divisor.
func floorDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && r.Sign() != b.Sign() {
		q.Sub(q, bigOne)
		r.Add(r, b)
	}
	return q, r
}

func (p *Parser) evalUnary() (*big.Int, error) {
	for _, op := range []string{"-", "~", "!"} {
		ok, err := p.check(op)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		val, err := p.evalUnary()
		if err != nil {
			return nil, err
		}
		switch op {
		case "-":
			return new(big.Int).Neg(val), nil
		case "~":
			return new(big.Int).Not(val), nil
		default:
			return boolInt(val.Cmp(bigZero) == 0), nil
		}
	}
	return p.evalPrimary()
}
