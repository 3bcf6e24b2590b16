package expr

import (
	"fmt"
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// Binding strength of binary operators, lowest first.
const (
	precOr = iota + 1
	precAnd
	precCompare
	precAdditive
	precMultiplicative
)

var binaryPrec = map[string]int{
	"||": precOr, "|": precOr,
	"&&": precAnd, "&": precAnd,
	"<": precCompare, ">": precCompare, "<=": precCompare, ">=": precCompare, "==": precCompare, "!=": precCompare,
	"+": precAdditive, "-": precAdditive,
	"*": precMultiplicative, "/": precMultiplicative, "%": precMultiplicative,
}

var constants = map[string]float64{
	"$pi":  math.Pi,
	"$e":   math.E,
	"$phi": math.Phi,
}

type parser struct {
	tokens []token
	pos    int
	writes map[string]struct{}
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return domain.NewSyntaxError(t.pos, fmt.Sprintf(format, args...))
}

// parseProgram: statement { ";" statement }. Empty statements are allowed.
func (p *parser) parseProgram() ([]node, error) {
	var stmts []node
	for {
		for p.peek().kind == tokSemicolon {
			p.next()
		}
		if p.peek().kind == tokEOF {
			return stmts, nil
		}

		stmt, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)

		switch t := p.peek(); t.kind {
		case tokSemicolon, tokEOF:
		case tokRParen:
			return nil, p.errorf(t, "unmatched ')'")
		case tokOp:
			if t.text == "=" {
				return nil, p.errorf(t, "invalid assignment target")
			}
			return nil, p.errorf(t, "unexpected operator %q", t.text)
		default:
			return nil, p.errorf(t, "unexpected %s, missing ';'?", t)
		}
	}
}

// parseAssignment: ident "=" assignment | or-expression.
func (p *parser) parseAssignment() (node, error) {
	t := p.peek()
	if t.kind == tokIdent {
		if after := p.tokens[p.pos+1]; after.kind == tokOp && after.text == "=" {
			if _, isConst := constants[t.text]; isConst {
				return nil, p.errorf(t, "cannot assign to constant %s", t.text)
			}
			p.next()
			p.next()
			value, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			p.writes[t.text] = struct{}{}
			return &assignNode{name: t.text, value: value}, nil
		}
	}
	return p.parseBinary(precOr)
}

// parseBinary climbs precedence levels starting at minPrec. All binary operators are left associative.
func (p *parser) parseBinary(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		prec, ok := binaryPrec[t.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = makeBinary(t.text, left, right)
	}
}

// parseUnary: ("-" | "+" | "!") unary | power.
func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+" || t.text == "!") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		switch t.text {
		case "-":
			return &negNode{x: operand}, nil
		case "!":
			return &notNode{x: operand}, nil
		default:
			return operand, nil
		}
	}
	return p.parsePower()
}

// parsePower: primary [ "^" unary ]. Right associative through parseUnary.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && t.text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: opPow, l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return constNode(t.num), nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if v, ok := constants[t.text]; ok {
			return constNode(v), nil
		}
		return &varNode{name: t.text}, nil

	case tokLParen:
		inner, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "missing ')' for '(' at position %d", t.pos)
		}
		return inner, nil

	case tokEOF:
		return nil, p.errorf(t, "expected operand, found end of input")

	case tokRParen:
		return nil, p.errorf(t, "unmatched ')'")

	default:
		return nil, p.errorf(t, "expected operand, found %s", t)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	open := p.next()
	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, p.errorf(closing, "missing ')' for call to %s at position %d", name.text, open.pos)
	}
	return makeCall(name.text, args), nil
}
