package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/expr"
)

// TypeBump is the registry key of BumpNode.
const TypeBump = "bump"

// BumpNode treats pixel luminance as a height field and re-shades every
// pixel by the angle between its surface normal and a point light.
type BumpNode struct {
	Base

	heights []float64
	inited  bool
}

// NewBumpNode creates a bump mapping node.
func NewBumpNode(id string, opts Options) *BumpNode {
	return &BumpNode{
		Base: NewBase(id, TypeBump, "Bump Map", []domain.ParamSpec{
			enumSpec("light", "Light position source", []string{"static", "orbit", "audio", "script"}, "orbit"),
			numberSpec("lightx", "Static light x in -1..1", -1, 1, 0),
			numberSpec("lighty", "Static light y in -1..1", -1, 1, 0),
			numberSpec("lightz", "Light height above the surface", 0.05, 4, 0.5),
			numberSpec("orbitspeed", "Orbit speed in radians per second", -10, 10, 1),
			numberSpec("depth", "Height field scale", 0, 16, 2),
			numberSpec("ambient", "Light level of surfaces facing away", 0, 1, 0.2),
			numberSpec("intensity", "Diffuse light level", 0, 4, 1),
			scriptSpec("init", "Runs once after initialization", "lx = 0; ly = 0"),
			scriptSpec("frame", "Runs once per frame, writes lx and ly in light mode script", "lx = sin(time)*0.6; ly = cos(time*0.7)*0.6"),
			scriptSpec("beat", "Runs on the beat edge", ""),
			edgeSpec(opts.EdgeMode),
		}),
	}
}

// Initialize allocates the height field.
func (n *BumpNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.heights = make([]float64, width*height)
	n.inited = false
	return nil
}

// lightPosition returns the light in -1..1 coordinates.
func (n *BumpNode) lightPosition(frame *Frame) (float64, float64) {
	switch n.Enum("light") {
	case "static":
		return n.Number("lightx"), n.Number("lighty")
	case "audio":
		lx := clampRange(frame.Bass-frame.Treb, -1, 1)
		ly := clampRange(1-2*frame.Mid, -1, 1)
		return lx, ly
	case "script":
		env, fresh := n.Scope(frame)
		if fresh || !n.inited {
			expr.Evaluate(n.Program("init"), env)
			n.inited = true
		}
		expr.Evaluate(n.Program("frame"), env)
		if frame.Beat {
			expr.Evaluate(n.Program("beat"), env)
		}
		return clampRange(env.Get("lx"), -2, 2), clampRange(env.Get("ly"), -2, 2)
	default:
		a := frame.Time * n.Number("orbitspeed")
		return 0.6 * math.Cos(a), 0.6 * math.Sin(a)
	}
}

// Process shades fb in place.
func (n *BumpNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	w, h := fb.Width, fb.Height
	if len(n.heights) != w*h {
		n.heights = make([]float64, w*h)
	}

	depth := n.Number("depth")
	for i := range n.heights {
		o := i * 4
		n.heights[i] = luminance(fb.Pix[o], fb.Pix[o+1], fb.Pix[o+2]) / 255 * depth
	}

	lx, ly := n.lightPosition(frame)
	lz := n.Number("lightz")
	ambient := n.Number("ambient")
	intensity := n.Number("intensity")
	mode := n.EdgeMode()

	for y := 0; y < h; y++ {
		yu := resolve(y-1, h, mode) * w
		yd := resolve(y+1, h, mode) * w
		py := normCoord(y, h)
		for x := 0; x < w; x++ {
			xl := resolve(x-1, w, mode)
			xr := resolve(x+1, w, mode)
			gx := (n.heights[y*w+xr] - n.heights[y*w+xl]) / 2
			gy := (n.heights[yd+x] - n.heights[yu+x]) / 2

			nx, ny, nz := normalize3(-gx, -gy, 1)
			vx, vy, vz := normalize3(lx-normCoord(x, w), ly-py, lz)
			diffuse := nx*vx + ny*vy + nz*vz
			if diffuse < 0 {
				diffuse = 0
			}
			shade := ambient + intensity*diffuse

			o := fb.Offset(x, y)
			fb.Pix[o] = clamp8(float64(fb.Pix[o]) * shade)
			fb.Pix[o+1] = clamp8(float64(fb.Pix[o+1]) * shade)
			fb.Pix[o+2] = clamp8(float64(fb.Pix[o+2]) * shade)
		}
	}
	return nil
}

// Reset drops the script variables and reruns the init script on the next frame.
func (n *BumpNode) Reset() {
	n.inited = false
	n.ResetVars()
}

// Close releases the height field.
func (n *BumpNode) Close() error {
	n.heights = nil
	return nil
}

// normCoord maps a pixel index to -1..1.
func normCoord(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return -1 + 2*float64(i)/float64(n-1)
}

func normalize3(x, y, z float64) (float64, float64, float64) {
	l := math.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return 0, 0, 1
	}
	return x / l, y / l, z / l
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
