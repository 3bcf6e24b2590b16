package expr

import (
	"math"
	"strings"
)

// Tolerance used by comparisons, matching legacy script behavior.
const closeFactor = 0.00001

type node interface {
	eval(env *Env) float64
}

type constNode float64

func (n constNode) eval(*Env) float64 { return float64(n) }

type varNode struct {
	name string
}

func (n *varNode) eval(env *Env) float64 { return env.get(n.name) }

type assignNode struct {
	name  string
	value node
}

func (n *assignNode) eval(env *Env) float64 {
	v := finite(n.value.eval(env))
	*env.slot(n.name) = v
	return v
}

type negNode struct {
	x node
}

func (n *negNode) eval(env *Env) float64 { return -n.x.eval(env) }

type notNode struct {
	x node
}

func (n *notNode) eval(env *Env) float64 { return boolf(math.Abs(n.x.eval(env)) < closeFactor) }

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opMod
	opPow
	opLess
	opGreater
	opLessEq
	opGreaterEq
	opEqual
	opNotEqual
)

type binaryNode struct {
	op   binaryOp
	l, r node
}

func (n *binaryNode) eval(env *Env) float64 {
	a := n.l.eval(env)
	b := n.r.eval(env)
	switch n.op {
	case opAdd:
		return finite(a + b)
	case opSub:
		return finite(a - b)
	case opMul:
		return finite(a * b)
	case opDiv:
		if b == 0 {
			return 0
		}
		return finite(a / b)
	case opMod:
		if b == 0 {
			return 0
		}
		return finite(math.Mod(a, b))
	case opPow:
		return finite(math.Pow(a, b))
	case opLess:
		return boolf(a < b)
	case opGreater:
		return boolf(a > b)
	case opLessEq:
		return boolf(a <= b)
	case opGreaterEq:
		return boolf(a >= b)
	case opEqual:
		return boolf(math.Abs(a-b) < closeFactor)
	case opNotEqual:
		return boolf(math.Abs(a-b) >= closeFactor)
	}
	return 0
}

// logicalNode short-circuits: the right side is only evaluated when it can change the result.
type logicalNode struct {
	and  bool
	l, r node
}

func (n *logicalNode) eval(env *Env) float64 {
	left := math.Abs(n.l.eval(env)) >= closeFactor
	if n.and && !left {
		return 0
	}
	if !n.and && left {
		return 1
	}
	return boolf(math.Abs(n.r.eval(env)) >= closeFactor)
}

// ifNode evaluates only the selected branch.
type ifNode struct {
	cond, then, otherwise node
}

func (n *ifNode) eval(env *Env) float64 {
	if math.Abs(n.cond.eval(env)) >= closeFactor {
		return n.then.eval(env)
	}
	return n.otherwise.eval(env)
}

type call1Node struct {
	fn func(float64) float64
	a  node
}

func (n *call1Node) eval(env *Env) float64 { return finite(n.fn(n.a.eval(env))) }

type call2Node struct {
	fn   func(a, b float64) float64
	a, b node
}

func (n *call2Node) eval(env *Env) float64 {
	return finite(n.fn(n.a.eval(env), n.b.eval(env)))
}

func makeBinary(op string, l, r node) node {
	switch op {
	case "||", "|":
		return &logicalNode{and: false, l: l, r: r}
	case "&&", "&":
		return &logicalNode{and: true, l: l, r: r}
	}
	return &binaryNode{op: binaryOps[op], l: l, r: r}
}

var binaryOps = map[string]binaryOp{
	"+": opAdd, "-": opSub, "*": opMul, "/": opDiv, "%": opMod,
	"<": opLess, ">": opGreater, "<=": opLessEq, ">=": opGreaterEq, "==": opEqual, "!=": opNotEqual,
}

var unaryFuncs = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"abs":   math.Abs,
	"sqrt":  math.Sqrt,
	"log":   math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"sqr":   func(x float64) float64 { return x * x },
	"sign": func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	},
	"invsqrt": func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return 1 / math.Sqrt(x)
	},
	"bnot": func(x float64) float64 { return boolf(math.Abs(x) < closeFactor) },
}

var binaryFuncs = map[string]func(a, b float64) float64{
	"min":   math.Min,
	"max":   math.Max,
	"pow":   math.Pow,
	"atan2": math.Atan2,
	"above": func(a, b float64) float64 { return boolf(a > b) },
	"below": func(a, b float64) float64 { return boolf(a < b) },
	"equal": func(a, b float64) float64 { return boolf(math.Abs(a-b) < closeFactor) },
	"band": func(a, b float64) float64 {
		return boolf(math.Abs(a) >= closeFactor && math.Abs(b) >= closeFactor)
	},
	"bor": func(a, b float64) float64 {
		return boolf(math.Abs(a) >= closeFactor || math.Abs(b) >= closeFactor)
	},
	"sigmoid": func(a, b float64) float64 {
		t := 1 + math.Exp(-a*b)
		if math.Abs(t) < closeFactor {
			return 0
		}
		return 1 / t
	},
}

// makeCall resolves a function at compile time. Unknown names and wrong
// argument counts compile to a constant 0 whose arguments are never evaluated.
func makeCall(name string, args []node) node {
	if name == "if" {
		if len(args) != 3 {
			return constNode(0)
		}
		return &ifNode{cond: args[0], then: args[1], otherwise: args[2]}
	}
	if fn, ok := unaryFuncs[name]; ok {
		if len(args) != 1 {
			return constNode(0)
		}
		return &call1Node{fn: fn, a: args[0]}
	}
	if fn, ok := binaryFuncs[name]; ok {
		if len(args) != 2 {
			return constNode(0)
		}
		return &call2Node{fn: fn, a: args[0], b: args[1]}
	}
	return constNode(0)
}

// IsFunction reports whether name is a built-in function.
func IsFunction(name string) bool {
	name = strings.ToLower(name)
	if name == "if" {
		return true
	}
	_, unary := unaryFuncs[name]
	_, binary := binaryFuncs[name]
	return unary || binary
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// finite maps NaN and infinities to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
