package effect

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeDistance is the registry key of DistanceNode.
const TypeDistance = "distance"

// DistanceNode measures every pixel's distance from a reference point, maps
// it through a falloff curve and uses the result to modulate one property
// of the pixel.
type DistanceNode struct {
	Base

	src scratch
}

// NewDistanceNode creates a distance modifier node.
func NewDistanceNode(id string, opts Options) *DistanceNode {
	return &DistanceNode{
		Base: NewBase(id, TypeDistance, "Distance Modifier", []domain.ParamSpec{
			enumSpec("metric", "Distance metric", []string{"euclidean", "manhattan", "chebyshev", "minkowski"}, "euclidean"),
			numberSpec("p", "Minkowski exponent", 0.5, 16, 3),
			enumSpec("center", "Reference point source", []string{"static", "audio", "orbit"}, "static"),
			numberSpec("centerx", "Static reference x in -1..1", -1, 1, 0),
			numberSpec("centery", "Static reference y in -1..1", -1, 1, 0),
			numberSpec("orbitspeed", "Orbit speed in radians per second", -10, 10, 0.5),
			numberSpec("radius", "Distance at which the falloff reaches its end", 0.01, 4, 1),
			enumSpec("falloff", "Distance to weight mapping", []string{"linear", "exponential", "inverse", "gaussian", "step"}, "linear"),
			enumSpec("target", "Modulated property", []string{"brightness", "hue", "saturation", "displacement"}, "brightness"),
			numberSpec("strength", "Modulation strength", -4, 4, 1),
			edgeSpec(opts.EdgeMode),
		}),
	}
}

// Initialize drops the working buffer.
func (n *DistanceNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.src.release()
	return nil
}

func (n *DistanceNode) center(frame *Frame) (float64, float64) {
	switch n.Enum("center") {
	case "audio":
		return clampRange(frame.Bass-frame.Treb, -1, 1), clampRange(frame.Mid*2-1, -1, 1)
	case "orbit":
		a := frame.Time * n.Number("orbitspeed")
		return 0.5 * math.Cos(a), 0.5 * math.Sin(a)
	default:
		return n.Number("centerx"), n.Number("centery")
	}
}

// Process modulates fb in place.
func (n *DistanceNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	cx, cy := n.center(frame)
	metric := n.Enum("metric")
	p := n.Number("p")
	radius := n.Number("radius")
	falloff := n.Enum("falloff")
	target := n.Enum("target")
	strength := n.Number("strength")
	mode := n.EdgeMode()

	var src *domain.Framebuffer
	if target == "displacement" {
		src = n.src.snapshot(fb)
	}

	w, h := fb.Width, fb.Height
	for y := 0; y < h; y++ {
		ny := normCoord(y, h)
		for x := 0; x < w; x++ {
			nx := normCoord(x, w)
			dx, dy := nx-cx, ny-cy
			f := falloffWeight(falloff, distance(metric, dx, dy, p)/radius)
			o := fb.Offset(x, y)

			switch target {
			case "hue", "saturation":
				c := colorful.Color{R: float64(fb.Pix[o]) / 255, G: float64(fb.Pix[o+1]) / 255, B: float64(fb.Pix[o+2]) / 255}
				hh, ss, vv := c.Hsv()
				if target == "hue" {
					hh = math.Mod(hh+strength*f*360, 360)
					if hh < 0 {
						hh += 360
					}
				} else {
					ss = clamp01(ss * (1 + strength*f))
				}
				fb.Pix[o], fb.Pix[o+1], fb.Pix[o+2] = colorful.Hsv(hh, ss, vv).Clamped().RGB255()
			case "displacement":
				k := strength * f * 0.5
				sx := (nx - dx*k + 1) * float64(w-1) / 2
				sy := (ny - dy*k + 1) * float64(h-1) / 2
				r, g, b, a := sampleBilinear(src, sx, sy, mode)
				fb.Pix[o], fb.Pix[o+1], fb.Pix[o+2], fb.Pix[o+3] = clamp8(r), clamp8(g), clamp8(b), clamp8(a)
			default:
				scale := 1 + strength*(2*f-1)
				if scale < 0 {
					scale = 0
				}
				fb.Pix[o] = clamp8(float64(fb.Pix[o]) * scale)
				fb.Pix[o+1] = clamp8(float64(fb.Pix[o+1]) * scale)
				fb.Pix[o+2] = clamp8(float64(fb.Pix[o+2]) * scale)
			}
		}
	}
	return nil
}

// Close releases the working buffer.
func (n *DistanceNode) Close() error {
	n.src.release()
	return nil
}

// distance evaluates a metric on an offset vector.
func distance(metric string, dx, dy, p float64) float64 {
	ax, ay := math.Abs(dx), math.Abs(dy)
	switch metric {
	case "manhattan":
		return ax + ay
	case "chebyshev":
		return math.Max(ax, ay)
	case "minkowski":
		if p <= 0 {
			p = 1
		}
		return math.Pow(math.Pow(ax, p)+math.Pow(ay, p), 1/p)
	default:
		return math.Hypot(dx, dy)
	}
}

// falloffWeight maps a normalised distance to a weight, 1 at the center.
func falloffWeight(falloff string, u float64) float64 {
	if u < 0 {
		u = 0
	}
	switch falloff {
	case "exponential":
		return math.Exp(-3 * u)
	case "inverse":
		return 1 / (1 + 4*u)
	case "gaussian":
		return math.Exp(-2 * u * u)
	case "step":
		if u < 1 {
			return 1
		}
		return 0
	default:
		return clamp01(1 - u)
	}
}
