package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeColorFade is the registry key of ColorFadeNode.
const TypeColorFade = "colorfade"

// ColorFadeNode mixes the framebuffer toward a target color. The mix amount
// follows an easing curve over a phase that runs from 0 to 1 in duration
// seconds; beats can restart or speed up the phase.
type ColorFadeNode struct {
	Base

	phase float64
	speed float64
}

// NewColorFadeNode creates a color fade node.
func NewColorFadeNode(id string, _ Options) *ColorFadeNode {
	return &ColorFadeNode{
		Base: NewBase(id, TypeColorFade, "Color Fade", []domain.ParamSpec{
			colorSpec("color", "Target color", domain.Color{}),
			numberSpec("duration", "Seconds for one fade", 0.01, 600, 2),
			enumSpec("curve", "Easing curve", []string{"linear", "exponential", "sine", "bounce"}, "linear"),
			enumSpec("beat", "Beat action", []string{"none", "reset", "accelerate"}, "none"),
			numberSpec("accel", "Speed multiplier applied by an accelerating beat", 1, 16, 3),
			numberSpec("strength", "Maximum mix toward the target", 0, 1, 1),
			boolSpec("loop", "Restart the fade after it completes", true),
		}),
		speed: 1,
	}
}

// Initialize restarts the fade.
func (n *ColorFadeNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.Reset()
	return nil
}

// Reset restarts the fade at phase 0.
func (n *ColorFadeNode) Reset() {
	n.phase = 0
	n.speed = 1
}

// Phase returns the fade position in 0..1.
func (n *ColorFadeNode) Phase() float64 {
	return n.phase
}

// Process advances the phase and mixes fb toward the target.
func (n *ColorFadeNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	if frame.Beat {
		switch n.Enum("beat") {
		case "reset":
			n.phase = 0
		case "accelerate":
			n.speed = n.Number("accel")
		}
	}

	t := clamp01(fadeCurve(n.Enum("curve"), n.phase)) * n.Number("strength")
	if t > 0 {
		c := n.Color("color")
		target := [3]float64{float64(c.R), float64(c.G), float64(c.B)}
		for i := 0; i+3 < len(fb.Pix); i += 4 {
			for ch := 0; ch < 3; ch++ {
				v := float64(fb.Pix[i+ch])
				fb.Pix[i+ch] = clamp8(v + (target[ch]-v)*t)
			}
		}
	}

	n.phase += frame.DeltaSeconds() / n.Number("duration") * n.speed
	if n.phase >= 1 {
		if n.Bool("loop") {
			n.phase = math.Mod(n.phase, 1)
		} else {
			n.phase = 1
		}
	}
	// An acceleration decays back to normal speed.
	n.speed = 1 + (n.speed-1)*0.9
	return nil
}

// fadeCurve maps a phase in 0..1 to a mix amount in 0..1.
func fadeCurve(curve string, p float64) float64 {
	p = clamp01(p)
	switch curve {
	case "exponential":
		const k = 4.0
		return (math.Exp(k*p) - 1) / (math.Exp(k) - 1)
	case "sine":
		return (1 - math.Cos(math.Pi*p)) / 2
	case "bounce":
		return bounceOut(p)
	default:
		return p
	}
}

func bounceOut(p float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case p < 1/d1:
		return n1 * p * p
	case p < 2/d1:
		p -= 1.5 / d1
		return n1*p*p + 0.75
	case p < 2.5/d1:
		p -= 2.25 / d1
		return n1*p*p + 0.9375
	default:
		p -= 2.625 / d1
		return n1*p*p + 0.984375
	}
}
