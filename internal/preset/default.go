package preset

import (
	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// DefaultName is the name of the built-in demo chain.
const DefaultName = "default"

// Default returns the built-in demo chain: a plasma background pulled into
// a slow audio-driven swirl and a waveform scope on top. The tint toward
// deep blue drops on every beat and returns over half a second.
func Default() *domain.ChainDescription {
	off := false
	return &domain.ChainDescription{
		Name:   DefaultName,
		Author: "avscore",
		Nodes: []domain.NodeRecord{
			{
				Type: "plasma",
				ID:   "background",
				Parameters: map[string]domain.ParamValue{
					"downscale": domain.NumberParam(2),
				},
			},
			{
				Type:   "shift",
				ID:     "swirl",
				Script: "r = r + (0.02 + bass*0.05) * (1 - d); d = d * (0.98 - treb*0.02)",
				Parameters: map[string]domain.ParamValue{
					"coords": domain.EnumParam("polar"),
					"frame":  domain.ScriptParam("t = t + dt"),
					"gridx":  domain.NumberParam(24),
					"gridy":  domain.NumberParam(18),
				},
			},
			{
				Type:   "superscope",
				ID:     "scope",
				Script: "x = i*2 - 1; y = v*(0.4 + bass*0.4); red = 0.6 + treb*0.4; green = 0.8; blue = 1",
				Parameters: map[string]domain.ParamValue{
					"blend": domain.EnumParam("additive"),
				},
			},
			{
				Type: "blur",
				ID:   "soften",
				Parameters: map[string]domain.ParamValue{
					"radius": domain.NumberParam(1),
				},
			},
			{
				Type: "colorfade",
				ID:   "beat-tint",
				Parameters: map[string]domain.ParamValue{
					"color":    domain.ColorParam(domain.Color{R: 0x10, G: 0x20, B: 0x60}),
					"duration": domain.NumberParam(0.5),
					"curve":    domain.EnumParam("sine"),
					"beat":     domain.EnumParam("reset"),
					"strength": domain.NumberParam(0.35),
					"loop":     domain.BoolParam(false),
				},
			},
			{
				Type:    "bump",
				ID:      "relief",
				Enabled: &off,
			},
		},
	}
}
