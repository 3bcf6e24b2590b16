package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeSimple is the registry key of SimpleNode.
const TypeSimple = "simple"

// SimpleNode renders the spectrum as bars with falling caps, or the waveform
// as an oscilloscope line or dots. Bars map spectrum bins logarithmically so
// low frequencies get as much room as high ones.
type SimpleNode struct {
	Base

	heights []float64
	caps    []float64
}

// NewSimpleNode creates a spectrum and oscilloscope renderer.
func NewSimpleNode(id string, _ Options) *SimpleNode {
	return &SimpleNode{
		Base: NewBase(id, TypeSimple, "Simple", []domain.ParamSpec{
			enumSpec("mode", "What to draw", []string{"bars", "scope", "dots"}, "bars"),
			numberSpec("bars", "Number of spectrum bars", 1, 256, 32),
			numberSpec("gain", "Bar height multiplier", 0, 20, 3),
			numberSpec("falloff", "Cap fall speed in pixels per frame", 0, 50, 2),
			boolSpec("caps", "Draw falling caps over the bars", true),
			colorSpec("color", "Scope color", domain.Color{R: 255, G: 255, B: 255}),
			blendSpec(domain.BlendReplace),
		}),
	}
}

// Reset drops the cap positions.
func (n *SimpleNode) Reset() {
	n.caps = nil
}

// Process draws over fb.
func (n *SimpleNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	snap := frame.Snapshot
	if snap == nil {
		return nil
	}
	if n.Enum("mode") == "bars" {
		n.drawBars(fb, snap.Spectrum)
		return nil
	}
	n.drawScope(fb, snap.Waveform, n.Enum("mode") == "dots")
	return nil
}

// barHeights returns the bar heights in pixels for a spectrum.
func (n *SimpleNode) barHeights(spectrum []float64, bars int, maxHeight float64) []float64 {
	if len(n.heights) != bars {
		n.heights = make([]float64, bars)
	}
	heights := n.heights
	clear(heights)
	if len(spectrum) < 2 {
		return heights
	}

	gain := n.Number("gain")
	b0 := 1 // skip DC
	for x := 0; x < bars; x++ {
		b1 := len(spectrum) - 1
		if bars > 1 {
			b1 = int(math.Pow(2, float64(x)*10/float64(bars-1)))
		}
		b1 = min(max(b1, b0), len(spectrum)-1)

		var peak float64
		for b := b0; b <= b1; b++ {
			peak = math.Max(peak, spectrum[b])
		}
		heights[x] = math.Min(math.Sqrt(peak)*gain*maxHeight, maxHeight)
		b0 = b1 + 1
	}
	return heights
}

func (n *SimpleNode) drawBars(fb *domain.Framebuffer, spectrum []float64) {
	bars := min(n.Int("bars"), fb.Width)
	if bars < 1 {
		return
	}
	maxHeight := float64(fb.Height)
	heights := n.barHeights(spectrum, bars, maxHeight)

	if len(n.caps) != bars {
		n.caps = make([]float64, bars)
	}
	falloff := n.Number("falloff")
	for i, h := range heights {
		if h > n.caps[i] {
			n.caps[i] = h
		} else {
			n.caps[i] = math.Max(n.caps[i]-falloff, 0)
		}
	}

	gap := 0
	if fb.Width >= bars*3 {
		gap = 1
	}
	width := max((fb.Width-gap*(bars-1))/bars, 1)
	startX := (fb.Width - (bars*width + (bars-1)*gap)) / 2
	blend := n.BlendMode()

	for i, h := range heights {
		x0 := startX + i*(width+gap)
		top := int(h)
		for y := 0; y < top; y++ {
			r, g := barColor(float64(y) / maxHeight)
			row := fb.Height - 1 - y
			for x := x0; x < x0+width; x++ {
				plot(fb, x, row, r, g, 0, blend)
			}
		}
		if n.Bool("caps") && n.caps[i] > 0 {
			row := fb.Height - 1 - int(n.caps[i])
			for x := x0; x < x0+width; x++ {
				plot(fb, x, row, 255, 255, 255, blend)
			}
		}
	}
}

// barColor runs from red at the bottom through yellow to green at the top.
func barColor(pos float64) (r, g float64) {
	pos = clamp01(pos)
	if pos < 0.5 {
		return 255, pos * 2 * 255
	}
	return (1 - (pos-0.5)*2) * 255, 255
}

func (n *SimpleNode) drawScope(fb *domain.Framebuffer, wave []float64, dots bool) {
	if len(wave) == 0 {
		return
	}
	c := n.Color("color")
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	blend := n.BlendMode()
	mid := float64(fb.Height-1) / 2

	px, py := 0, 0
	for x := 0; x < fb.Width; x++ {
		i := x * len(wave) / fb.Width
		y := int(math.Round(mid - wave[i]*mid))
		switch {
		case dots:
			plot(fb, x, y, r, g, b, blend)
		case x == 0:
			plot(fb, x, y, r, g, b, blend)
		default:
			drawLine(fb, px, py, x, y, r, g, b, blend)
		}
		px, py = x, y
	}
}
