package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypePlasma is the registry key of PlasmaNode.
const TypePlasma = "plasma"

const (
	plasmaBaseScale   = 0.02 // Base scale for plasma pattern
	plasmaBaseSpeed   = 0.03 // Animation step per 60 Hz frame
	plasmaPaletteSize = 256  // Size of color palette
)

// PlasmaNode renders a classic plasma effect. Audio bands modulate the
// pattern: bass zooms, mid speeds up the animation and treble cycles the palette.
type PlasmaNode struct {
	Base

	palette [plasmaPaletteSize]domain.Color
	t       float64

	bassAvg float64
	midAvg  float64
	highAvg float64
}

// NewPlasmaNode creates a plasma generator.
func NewPlasmaNode(id string, _ Options) *PlasmaNode {
	n := &PlasmaNode{
		Base: NewBase(id, TypePlasma, "Plasma", []domain.ParamSpec{
			numberSpec("speed", "Animation speed multiplier", 0, 10, 1),
			numberSpec("scale", "Pattern zoom multiplier", 0.1, 10, 1),
			numberSpec("downscale", "Render every Nth pixel and fill the block", 1, 8, 2),
			blendSpec(domain.BlendReplace),
		}),
	}
	n.Reset()
	return n
}

// Reset restarts the animation.
func (n *PlasmaNode) Reset() {
	n.t = 0
	n.bassAvg = 0.5
	n.midAvg = 0.5
	n.highAvg = 0.5
	n.generatePalette(0)
}

// generatePalette creates a smooth color palette with hue offset.
func (n *PlasmaNode) generatePalette(hueOffset float64) {
	for i := range n.palette {
		t := float64(i) / plasmaPaletteSize

		r := math.Sin(t*math.Pi*2+hueOffset)*0.5 + 0.5
		g := math.Sin(t*math.Pi*2+hueOffset+math.Pi*2/3)*0.5 + 0.5
		b := math.Sin(t*math.Pi*2+hueOffset+math.Pi*4/3)*0.5 + 0.5

		n.palette[i] = domain.Color{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
	}
}

// Process draws the plasma over fb.
func (n *PlasmaNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	n.bassAvg = n.bassAvg*0.85 + clamp01(frame.Bass)*0.15
	n.midAvg = n.midAvg*0.85 + clamp01(frame.Mid)*0.15
	n.highAvg = n.highAvg*0.85 + clamp01(frame.Treb)*0.15

	steps := frame.DeltaSeconds() * 60
	n.t += (plasmaBaseSpeed + n.midAvg*0.05) * steps * n.Number("speed")
	n.generatePalette(n.highAvg * math.Pi * 2)

	scale := plasmaBaseScale * (1.0 + n.bassAvg*0.5) * n.Number("scale")
	contrast := 0.5 + (n.bassAvg+n.midAvg+n.highAvg)*0.3
	down := n.Int("downscale")
	blend := n.BlendMode()

	for by := 0; by < fb.Height; by += down {
		for bx := 0; bx < fb.Width; bx += down {
			value := plasmaValue(float64(bx/down)*scale, float64(by/down)*scale, n.t, n.bassAvg, n.midAvg)
			value = clamp01((value-0.5)*contrast + 0.5)
			col := n.palette[int(value*(plasmaPaletteSize-1))]

			for y := by; y < by+down && y < fb.Height; y++ {
				for x := bx; x < bx+down && x < fb.Width; x++ {
					blendPixel(fb.Pix, fb.Offset(x, y), float64(col.R), float64(col.G), float64(col.B), 255, blend)
				}
			}
		}
	}
	return nil
}

// plasmaValue computes the plasma value at a given point, 0..1.
func plasmaValue(x, y, t, bass, mid float64) float64 {
	v1 := math.Sin(x*10 + t*2)
	v2 := math.Sin(y*10 + t*3)
	v3 := math.Sin((x+y)*7 + t*1.5)

	// Circular waves, centre pushed by bass
	cx := x - 5*(1+bass*0.5)
	cy := y - 5*(1+bass*0.5)
	v4 := math.Sin(math.Sqrt(cx*cx+cy*cy)*8 - t*4)

	cx2 := x + 3*math.Sin(t)
	cy2 := y + 3*math.Cos(t*0.7)
	v5 := math.Sin(math.Sqrt(cx2*cx2+cy2*cy2)*6 + t*2)

	v6 := math.Sin(x*3+math.Sin(y*4+t)) * mid

	combined := (v1 + v2 + v3 + v4 + v5 + v6) / 6.0
	return combined*0.5 + 0.5
}
