// Package expr implements the scripting language used by effect nodes.
//
// A script is a list of statements separated by ';'. Statements are
// assignments (name = expression) or plain expressions; the value of the
// last statement is the value of the script. Operators, from lowest to
// highest precedence:
//
//	=                        assignment (right associative)
//	|| |                     logical or
//	&& &                     logical and
//	< > <= >= == !=          comparison
//	+ -                      additive
//	* / %                    multiplicative
//	- + !                    unary
//	^                        power (right associative)
//
// Evaluation never fails. Division or modulo by zero yields 0, any
// non-finite result yields 0, unknown variables read as 0, and calls with
// an unknown name or the wrong number of arguments yield 0.
package expr

import (
	"sort"
	"strings"
)

// Program is a compiled script. It is immutable and may be evaluated
// concurrently against different environments.
type Program struct {
	source string
	stmts  []node
	writes []string
}

// Compile parses source into a Program.
// Malformed input returns a *domain.SyntaxError.
func Compile(source string) (*Program, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, writes: make(map[string]struct{})}
	stmts, err := p.parseProgram()
	if err != nil {
		return nil, err
	}

	writes := make([]string, 0, len(p.writes))
	for name := range p.writes {
		writes = append(writes, name)
	}
	sort.Strings(writes)

	return &Program{source: source, stmts: stmts, writes: writes}, nil
}

// MustCompile is like Compile but panics on error.
// It simplifies initialization of built-in default scripts.
func MustCompile(source string) *Program {
	prog, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return prog
}

// Evaluate runs prog against env and returns the value of the last statement.
// A nil program evaluates to 0; a nil env is replaced by a scratch environment.
func Evaluate(prog *Program, env *Env) float64 {
	if prog == nil {
		return 0
	}
	return prog.Eval(env)
}

// Eval runs the program against env. See Evaluate.
func (p *Program) Eval(env *Env) float64 {
	if env == nil {
		env = NewEnv()
	}
	var result float64
	for _, stmt := range p.stmts {
		result = finite(stmt.eval(env))
	}
	return result
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string {
	return p.source
}

// Empty reports whether the program has no statements.
func (p *Program) Empty() bool {
	return len(p.stmts) == 0
}

// Writes reports whether the program assigns the variable anywhere.
func (p *Program) Writes(name string) bool {
	name = strings.ToLower(name)
	i := sort.SearchStrings(p.writes, name)
	return i < len(p.writes) && p.writes[i] == name
}

// Assigned returns the variables the program assigns, sorted.
func (p *Program) Assigned() []string {
	return append([]string(nil), p.writes...)
}
