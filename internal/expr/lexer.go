package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
)

type token struct {
	kind tokenKind
	pos  int
	text string
	num  float64
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return fmt.Sprintf("number %s", t.text)
	case tokIdent:
		return fmt.Sprintf("identifier %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// twoCharOps must be checked before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

const singleCharOps = "+-*/%^=<>!&|"

// tokenize splits source into tokens, dropping whitespace and comments.
func tokenize(src string) ([]token, error) {
	tokens := make([]token, 0, len(src)/2+1)
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, domain.NewSyntaxError(i, "unterminated comment")
			}
			i += end + 4

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			text := src[start:i]
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
					return nil, domain.NewSyntaxError(start, fmt.Sprintf("malformed number %q", text))
				}
			}
			tokens = append(tokens, token{kind: tokNumber, pos: start, text: text, num: finite(v)})

		case isIdentStart(c):
			start := i
			i++
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, pos: start, text: strings.ToLower(src[start:i])})

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i, text: ")"})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, pos: i, text: ","})
			i++
		case c == ';':
			tokens = append(tokens, token{kind: tokSemicolon, pos: i, text: ";"})
			i++

		default:
			if op, ok := matchOp(src[i:]); ok {
				tokens = append(tokens, token{kind: tokOp, pos: i, text: op})
				i += len(op)
				continue
			}
			return nil, domain.NewSyntaxError(i, fmt.Sprintf("unexpected character %q", c))
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func matchOp(s string) (string, bool) {
	for _, op := range twoCharOps {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	if strings.IndexByte(singleCharOps, s[0]) >= 0 {
		return s[:1], true
	}
	return "", false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
