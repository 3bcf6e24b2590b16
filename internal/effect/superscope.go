package effect

import (
	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/expr"
)

// TypeSuperscope is the registry key of SuperscopeNode.
const TypeSuperscope = "superscope"

// SuperscopeNode draws n points whose positions and colors come from a
// per-point script. The script sees i (0..1 along the scope), v (the audio
// value at i) and n, and writes x, y in -1..1 plus red, green and blue in
// 0..1. A nonzero skip leaves the point undrawn.
type SuperscopeNode struct {
	Base

	inited bool
}

// NewSuperscopeNode creates a superscope node.
func NewSuperscopeNode(id string, _ Options) *SuperscopeNode {
	return &SuperscopeNode{
		Base: NewBase(id, TypeSuperscope, "Superscope", []domain.ParamSpec{
			scriptSpec("init", "Runs once after initialization", "n = 256"),
			scriptSpec("frame", "Runs once per frame", ""),
			scriptSpec("beat", "Runs on the beat edge", ""),
			scriptSpec("point", "Runs per point, writes x, y and optionally red, green, blue, skip", "x = i*2 - 1; y = v*0.5"),
			numberSpec("points", "Points per frame when the scripts do not set n", 1, 4096, 256),
			enumSpec("draw", "Draw points as", []string{"dots", "lines"}, "lines"),
			enumSpec("source", "Audio bound to v", []string{"waveform", "spectrum"}, "waveform"),
			colorSpec("color", "Initial color of every frame", domain.Color{R: 255, G: 255, B: 255}),
			blendSpec(domain.BlendReplace),
		}),
	}
}

// Initialize reruns the init script on the next frame.
func (n *SuperscopeNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.inited = false
	return nil
}

// Reset drops the script variables and reruns the init script on the next frame.
func (n *SuperscopeNode) Reset() {
	n.inited = false
	n.ResetVars()
}

// Process evaluates the scripts and draws the scope over fb.
func (n *SuperscopeNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	env, fresh := n.Scope(frame)
	pn := env.Slot("n")
	if fresh || !n.inited {
		*pn = n.Number("points")
		expr.Evaluate(n.Program("init"), env)
		n.inited = true
	}

	c := n.Color("color")
	env.Set("red", float64(c.R)/255)
	env.Set("green", float64(c.G)/255)
	env.Set("blue", float64(c.B)/255)

	expr.Evaluate(n.Program("frame"), env)
	if frame.Beat {
		expr.Evaluate(n.Program("beat"), env)
	}

	count := int(clampRange(*pn, 0, 4096))
	if count <= 0 {
		return nil
	}

	audio := frame.Audio().Waveform
	if n.Enum("source") == "spectrum" {
		audio = frame.Audio().Spectrum
	}

	prog := n.Program("point")
	lines := n.Enum("draw") == "lines"
	blend := n.BlendMode()
	pi, pv := env.Slot("i"), env.Slot("v")
	px, py := env.Slot("x"), env.Slot("y")
	pskip := env.Slot("skip")
	pr, pg, pb := env.Slot("red"), env.Slot("green"), env.Slot("blue")

	prevX, prevY, havePrev := 0, 0, false
	for k := 0; k < count; k++ {
		t := 0.0
		if count > 1 {
			t = float64(k) / float64(count-1)
		}
		*pi = t
		*pv = sampleSeries(audio, t)
		*pskip = 0

		expr.Evaluate(prog, env)

		if *pskip != 0 {
			havePrev = false
			continue
		}
		x := int(safeCoord((*px+1)*float64(fb.Width-1)/2 + 0.5))
		y := int(safeCoord((*py+1)*float64(fb.Height-1)/2 + 0.5))
		r, g, b := clamp01(*pr)*255, clamp01(*pg)*255, clamp01(*pb)*255

		if lines && havePrev {
			drawLine(fb, prevX, prevY, x, y, r, g, b, blend)
		} else {
			plot(fb, x, y, r, g, b, blend)
		}
		prevX, prevY, havePrev = x, y, true
	}
	return nil
}

// sampleSeries linearly interpolates a series at t in 0..1.
func sampleSeries(values []float64, t float64) float64 {
	if len(values) == 0 {
		return 0
	}
	pos := clamp01(t) * float64(len(values)-1)
	i := int(pos)
	if i >= len(values)-1 {
		return values[len(values)-1]
	}
	return lerp(values[i], values[i+1], pos-float64(i))
}

func plot(fb *domain.Framebuffer, x, y int, r, g, b float64, blend domain.BlendMode) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	blendPixel(fb.Pix, fb.Offset(x, y), r, g, b, 255, blend)
}

// drawLine rasterises a segment with Bresenham's algorithm, clipping per pixel.
// The start point is skipped so connected segments do not blend twice.
func drawLine(fb *domain.Framebuffer, x0, y0, x1, y1 int, r, g, b float64, blend domain.BlendMode) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	// Segments far outside the buffer are not walked pixel by pixel.
	limit := 4 * (fb.Width + fb.Height)
	e := dx + dy
	first := true
	for steps := 0; steps <= limit; steps++ {
		if !first {
			plot(fb, x0, y0, r, g, b, blend)
		}
		first = false
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
