package effect

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/expr"
)

// Base implements the bookkeeping shared by every node: identity, the
// enabled flag, described parameters and compiled scripts.
// Concrete nodes embed it and override Initialize, Process and Reset.
type Base struct {
	id      string
	typ     string
	name    string
	enabled bool

	specs    []domain.ParamSpec
	index    map[string]int
	values   map[string]domain.ParamValue
	programs map[string]*expr.Program
	vars     *expr.Env

	width  int
	height int
}

// NewBase creates the embedded part of a node. Default script parameters must compile.
func NewBase(id, typ, name string, specs []domain.ParamSpec) Base {
	b := Base{
		id:       id,
		typ:      typ,
		name:     name,
		enabled:  true,
		specs:    specs,
		index:    make(map[string]int, len(specs)),
		values:   make(map[string]domain.ParamValue, len(specs)),
		programs: make(map[string]*expr.Program),
	}
	for i, spec := range specs {
		key := strings.ToLower(spec.Key)
		b.specs[i].Key = key
		b.index[key] = i
		if spec.Kind == domain.KindScript {
			b.programs[key] = expr.MustCompile(spec.Default.AsString(""))
		}
	}
	return b
}

// ID returns the stable node id.
func (b *Base) ID() string { return b.id }

// Type returns the registry type key.
func (b *Base) Type() string { return b.typ }

// DisplayName returns a human-readable name.
func (b *Base) DisplayName() string { return b.name }

// SetDisplayName changes the human-readable name.
func (b *Base) SetDisplayName(name string) { b.name = name }

// Enabled reports whether the chain should process the node.
func (b *Base) Enabled() bool { return b.enabled }

// SetEnabled turns processing on or off.
func (b *Base) SetEnabled(enabled bool) { b.enabled = enabled }

// Describe returns a copy of the parameter specs.
func (b *Base) Describe() []domain.ParamSpec {
	out := make([]domain.ParamSpec, len(b.specs))
	copy(out, b.specs)
	return out
}

// Param returns the current value of a parameter, or its default.
func (b *Base) Param(key string) (domain.ParamValue, bool) {
	key = strings.ToLower(key)
	i, ok := b.index[key]
	if !ok {
		return domain.ParamValue{}, false
	}
	if v, set := b.values[key]; set {
		return v, true
	}
	return b.specs[i].Default, true
}

// SetParam validates and stores a parameter value.
func (b *Base) SetParam(key string, value domain.ParamValue) error {
	key = strings.ToLower(key)
	i, ok := b.index[key]
	if !ok {
		return fmt.Errorf("%w: %s.%s", domain.ErrUnknownParam, b.typ, key)
	}
	spec := b.specs[i]

	if spec.Kind == domain.KindColor && value.Kind() == domain.KindString {
		c, err := colorful.Hex(strings.TrimSpace(value.AsString("")))
		if err != nil {
			return domain.NewValidationError(key, value.AsString(""), "not a #rrggbb color")
		}
		r, g, bl := c.RGB255()
		value = domain.ColorParam(domain.Color{R: r, G: g, B: bl})
	}

	coerced, err := spec.Coerce(value)
	if err != nil {
		return err
	}

	if spec.Kind == domain.KindScript {
		prog, err := expr.Compile(coerced.AsString(""))
		if err != nil {
			return fmt.Errorf("%s.%s: %w", b.id, key, err)
		}
		b.programs[key] = prog
	}

	b.values[key] = coerced
	return nil
}

// Initialize records the size. Nodes with per-size state call it first.
func (b *Base) Initialize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, width, height)
	}
	b.width = width
	b.height = height
	return nil
}

// Size returns the dimensions given to the last Initialize.
func (b *Base) Size() (width, height int) {
	return b.width, b.height
}

// Reset has nothing to clear for stateless nodes.
func (b *Base) Reset() {}

// Close has nothing to release for nodes without external resources.
func (b *Base) Close() error { return nil }

// Number reads a numeric parameter.
func (b *Base) Number(key string) float64 {
	v, _ := b.Param(key)
	return v.AsNumber(b.defaultOf(key).AsNumber(0))
}

// Int reads a numeric parameter rounded to the nearest integer.
func (b *Base) Int(key string) int {
	v, _ := b.Param(key)
	return v.AsInt(b.defaultOf(key).AsInt(0))
}

// Bool reads a boolean parameter.
func (b *Base) Bool(key string) bool {
	v, _ := b.Param(key)
	return v.AsBool(b.defaultOf(key).AsBool(false))
}

// Enum reads an enum parameter as its lower-case option name.
func (b *Base) Enum(key string) string {
	v, _ := b.Param(key)
	return strings.ToLower(v.AsString(b.defaultOf(key).AsString("")))
}

// Color reads a color parameter.
func (b *Base) Color(key string) domain.Color {
	v, _ := b.Param(key)
	return v.AsColor(b.defaultOf(key).AsColor(domain.Color{}))
}

// Program returns the compiled script stored under key, or nil.
func (b *Base) Program(key string) *expr.Program {
	return b.programs[strings.ToLower(key)]
}

// Scope returns the node's script variables layered over the frame
// environment. Variables a script creates stay private to the node while
// frame globals are shared. A new frame environment starts an empty scope,
// reported by fresh so the node can rerun its init script.
func (b *Base) Scope(frame *Frame) (env *expr.Env, fresh bool) {
	shared := frame.Vars()
	if b.vars == nil || b.vars.Parent() != shared {
		b.vars = expr.NewScope(shared)
		fresh = true
	}
	return b.vars, fresh
}

// Vars returns the node's script variables, or nil before its scripts ran.
func (b *Base) Vars() *expr.Env { return b.vars }

// ResetVars drops the node's script variables.
func (b *Base) ResetVars() { b.vars = nil }

// EdgeMode reads the "edgemode" enum parameter.
func (b *Base) EdgeMode() domain.EdgeMode {
	mode, err := domain.ParseEdgeMode(b.Enum("edgemode"))
	if err != nil {
		return domain.EdgeClamp
	}
	return mode
}

// BlendMode reads the "blend" enum parameter.
func (b *Base) BlendMode() domain.BlendMode {
	mode, err := domain.ParseBlendMode(b.Enum("blend"))
	if err != nil {
		return domain.BlendReplace
	}
	return mode
}

func (b *Base) defaultOf(key string) domain.ParamValue {
	if i, ok := b.index[strings.ToLower(key)]; ok {
		return b.specs[i].Default
	}
	return domain.ParamValue{}
}

// Shared parameter spec builders.

func numberSpec(key, desc string, lo, hi, def float64) domain.ParamSpec {
	return domain.ParamSpec{Key: key, Kind: domain.KindNumber, Description: desc, Min: lo, Max: hi, Default: domain.NumberParam(def)}
}

func boolSpec(key, desc string, def bool) domain.ParamSpec {
	return domain.ParamSpec{Key: key, Kind: domain.KindBool, Description: desc, Default: domain.BoolParam(def)}
}

func enumSpec(key, desc string, options []string, def string) domain.ParamSpec {
	return domain.ParamSpec{Key: key, Kind: domain.KindEnum, Description: desc, Options: options, Default: domain.EnumParam(def)}
}

func scriptSpec(key, desc, def string) domain.ParamSpec {
	return domain.ParamSpec{Key: key, Kind: domain.KindScript, Description: desc, Default: domain.ScriptParam(def)}
}

func colorSpec(key, desc string, def domain.Color) domain.ParamSpec {
	return domain.ParamSpec{Key: key, Kind: domain.KindColor, Description: desc, Default: domain.ColorParam(def)}
}

func edgeSpec(def domain.EdgeMode) domain.ParamSpec {
	return enumSpec("edgemode", "Out-of-bounds lookups", domain.EdgeModeNames, def.String())
}

func blendSpec(def domain.BlendMode) domain.ParamSpec {
	return enumSpec("blend", "Combine with destination", domain.BlendModeNames, def.String())
}
