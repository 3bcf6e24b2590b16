package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParamKind identifies the variant held by a ParamValue.
type ParamKind int

// Parameter kinds.
const (
	KindNone ParamKind = iota
	KindNumber
	KindBool
	KindString
	KindEnum
	KindColor
	KindScript
)

// String returns the string representation of ParamKind.
func (k ParamKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindColor:
		return "color"
	case KindScript:
		return "script"
	default:
		return "none"
	}
}

// Color is an opaque 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParamValue is a tagged parameter value. The zero value holds nothing.
// Accessors never fail; they return the caller's default when the variant does not fit.
type ParamValue struct {
	kind  ParamKind
	num   float64
	str   string
	color Color
}

// NumberParam creates a numeric parameter value.
func NumberParam(v float64) ParamValue {
	return ParamValue{kind: KindNumber, num: v}
}

// BoolParam creates a boolean parameter value.
func BoolParam(v bool) ParamValue {
	p := ParamValue{kind: KindBool}
	if v {
		p.num = 1
	}
	return p
}

// StringParam creates a free-form string parameter value.
func StringParam(v string) ParamValue {
	return ParamValue{kind: KindString, str: v}
}

// EnumParam creates an enumeration parameter value.
func EnumParam(v string) ParamValue {
	return ParamValue{kind: KindEnum, str: v}
}

// ScriptParam creates an expression script parameter value.
func ScriptParam(v string) ParamValue {
	return ParamValue{kind: KindScript, str: v}
}

// ColorParam creates a color parameter value.
func ColorParam(c Color) ParamValue {
	return ParamValue{kind: KindColor, color: c}
}

// ParamFromAny converts a decoded document value (YAML, JSON) into a ParamValue.
// Unsupported values produce the zero ParamValue.
func ParamFromAny(v interface{}) ParamValue {
	switch t := v.(type) {
	case ParamValue:
		return t
	case float64:
		return NumberParam(t)
	case float32:
		return NumberParam(float64(t))
	case int:
		return NumberParam(float64(t))
	case int64:
		return NumberParam(float64(t))
	case uint64:
		return NumberParam(float64(t))
	case bool:
		return BoolParam(t)
	case string:
		return StringParam(t)
	case Color:
		return ColorParam(t)
	default:
		return ParamValue{}
	}
}

// Kind returns the variant tag.
func (p ParamValue) Kind() ParamKind {
	return p.kind
}

// IsZero reports whether the value holds nothing.
func (p ParamValue) IsZero() bool {
	return p.kind == KindNone
}

// AsNumber returns the value as a float64, or def when it cannot be read as a finite number.
func (p ParamValue) AsNumber(def float64) float64 {
	switch p.kind {
	case KindNumber, KindBool:
		if math.IsNaN(p.num) || math.IsInf(p.num, 0) {
			return def
		}
		return p.num
	case KindString, KindEnum:
		v, err := strconv.ParseFloat(strings.TrimSpace(p.str), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	default:
		return def
	}
}

// AsInt returns the value rounded to the nearest integer, or def.
func (p ParamValue) AsInt(def int) int {
	v := p.AsNumber(math.NaN())
	if math.IsNaN(v) {
		return def
	}
	return int(math.Round(v))
}

// AsBool returns the value as a bool, or def.
func (p ParamValue) AsBool(def bool) bool {
	switch p.kind {
	case KindNumber, KindBool:
		return p.num != 0
	case KindString, KindEnum:
		b, err := strconv.ParseBool(strings.TrimSpace(p.str))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// AsString returns the textual content of string-like values, or def.
func (p ParamValue) AsString(def string) string {
	switch p.kind {
	case KindString, KindEnum, KindScript:
		return p.str
	default:
		return def
	}
}

// AsColor returns the color, or def.
func (p ParamValue) AsColor(def Color) Color {
	if p.kind == KindColor {
		return p.color
	}
	return def
}

// String formats the value for logs.
func (p ParamValue) String() string {
	switch p.kind {
	case KindNumber:
		return strconv.FormatFloat(p.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(p.num != 0)
	case KindString, KindEnum, KindScript:
		return strconv.Quote(p.str)
	case KindColor:
		return p.color.Hex()
	default:
		return "<none>"
	}
}

// ParamSpec describes one parameter a node accepts.
type ParamSpec struct {
	// Key is the case-insensitive parameter name
	Key string

	// Kind is the variant the node stores
	Kind ParamKind

	// Description is a short human-readable label for editors
	Description string

	// Min and Max bound numeric values when Min < Max
	Min float64
	Max float64

	// Default is used when the parameter is missing or unusable
	Default ParamValue

	// Options lists the accepted names of an enum parameter
	Options []string
}

// Coerce converts v into the kind described by the spec.
// Numbers are clamped into [Min, Max]; enums are matched case-insensitively
// against Options (a numeric index is accepted too).
func (s ParamSpec) Coerce(v ParamValue) (ParamValue, error) {
	switch s.Kind {
	case KindNumber:
		n := v.AsNumber(math.NaN())
		if math.IsNaN(n) {
			return ParamValue{}, NewValidationError(s.Key, v.String(), "not a number")
		}
		if s.Min < s.Max {
			n = math.Max(s.Min, math.Min(s.Max, n))
		}
		return NumberParam(n), nil

	case KindBool:
		switch v.kind {
		case KindNumber, KindBool:
			return BoolParam(v.num != 0), nil
		case KindString, KindEnum:
			b, err := strconv.ParseBool(strings.TrimSpace(v.str))
			if err != nil {
				return ParamValue{}, NewValidationError(s.Key, v.String(), "not a boolean")
			}
			return BoolParam(b), nil
		}
		return ParamValue{}, NewValidationError(s.Key, v.String(), "not a boolean")

	case KindEnum:
		if v.kind == KindNumber {
			i := int(v.num)
			if i >= 0 && i < len(s.Options) {
				return EnumParam(s.Options[i]), nil
			}
			return ParamValue{}, NewValidationError(s.Key, v.String(), "enum index out of range")
		}
		name := strings.TrimSpace(v.AsString(""))
		for _, opt := range s.Options {
			if strings.EqualFold(opt, name) {
				return EnumParam(opt), nil
			}
		}
		return ParamValue{}, NewValidationError(s.Key, v.String(),
			"must be one of "+strings.Join(s.Options, ", "))

	case KindString:
		if v.kind == KindNumber || v.kind == KindBool {
			return StringParam(v.String()), nil
		}
		if v.kind == KindColor || v.kind == KindNone {
			return ParamValue{}, NewValidationError(s.Key, v.String(), "not a string")
		}
		return StringParam(v.str), nil

	case KindScript:
		switch v.kind {
		case KindString, KindEnum, KindScript:
			return ScriptParam(v.str), nil
		}
		return ParamValue{}, NewValidationError(s.Key, v.String(), "not a script")

	case KindColor:
		if v.kind == KindColor {
			return v, nil
		}
		if v.kind == KindNumber {
			// Legacy presets store colors as packed 0xRRGGBB integers.
			n := uint32(v.num)
			return ColorParam(Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}), nil
		}
		return ParamValue{}, NewValidationError(s.Key, v.String(), "not a color")
	}
	return ParamValue{}, NewValidationError(s.Key, v.String(), "unsupported parameter kind")
}
