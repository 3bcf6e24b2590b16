package effect

import (
	"math"
	"strings"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/expr"
)

// TypeShift is the registry key of ShiftNode.
const TypeShift = "shift"

// ShiftNode displaces pixels with a per-point script evaluated over a grid.
//
// The point script sees x and y in -1..1 plus the polar form d and r, and
// writes the position to sample from. Source positions between grid points
// are interpolated bilinearly and the source is sampled bilinearly.
type ShiftNode struct {
	Base

	src     scratch
	inited  bool
	gridX   []float64
	gridY   []float64
	columns []gridStep
	rows    []gridStep
	stepGX  int
	stepGY  int
}

// gridStep locates a pixel between two grid points.
type gridStep struct {
	cell int
	frac float64
}

// NewShiftNode creates a dynamic shift node.
func NewShiftNode(id string, opts Options) *ShiftNode {
	return &ShiftNode{
		Base: NewBase(id, TypeShift, "Dynamic Shift", []domain.ParamSpec{
			scriptSpec("init", "Runs once after initialization", ""),
			scriptSpec("frame", "Runs once per frame", ""),
			scriptSpec("beat", "Runs on the beat edge", ""),
			scriptSpec("point", "Runs per grid point, writes x,y (rect) or d,r (polar)", ""),
			numberSpec("gridx", "Grid columns", 2, 64, 16),
			numberSpec("gridy", "Grid rows", 2, 64, 12),
			enumSpec("coords", "Coordinates written by the point script", []string{"rect", "polar"}, "rect"),
			blendSpec(domain.BlendReplace),
			edgeSpec(opts.EdgeMode),
		}),
	}
}

// Initialize rebuilds the grid lookup tables and reruns the init script on the next frame.
func (n *ShiftNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.columns = nil
	n.rows = nil
	n.inited = false
	n.src.release()
	return nil
}

// SetParam stores the value and reruns init when the init script changes.
func (n *ShiftNode) SetParam(key string, value domain.ParamValue) error {
	if err := n.Base.SetParam(key, value); err != nil {
		return err
	}
	if strings.EqualFold(key, "init") {
		n.inited = false
	}
	return nil
}

// Process evaluates the scripts and resamples fb.
func (n *ShiftNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	env, fresh := n.Scope(frame)
	if fresh || !n.inited {
		expr.Evaluate(n.Program("init"), env)
		n.inited = true
	}
	expr.Evaluate(n.Program("frame"), env)
	if frame.Beat {
		expr.Evaluate(n.Program("beat"), env)
	}

	gx, gy := n.Int("gridx"), n.Int("gridy")
	n.evalGrid(env, gx, gy, fb.Width, fb.Height)
	n.buildSteps(fb.Width, fb.Height, gx, gy)

	src := n.src.snapshot(fb)
	mode := n.EdgeMode()
	blend := n.BlendMode()

	for y := 0; y < fb.Height; y++ {
		row := n.rows[y]
		for x := 0; x < fb.Width; x++ {
			col := n.columns[x]
			i00 := row.cell*gx + col.cell
			i10 := i00 + 1
			i01 := i00 + gx
			i11 := i01 + 1

			sx := lerp(lerp(n.gridX[i00], n.gridX[i10], col.frac), lerp(n.gridX[i01], n.gridX[i11], col.frac), row.frac)
			sy := lerp(lerp(n.gridY[i00], n.gridY[i10], col.frac), lerp(n.gridY[i01], n.gridY[i11], col.frac), row.frac)

			r, g, b, a := sampleBilinear(src, sx, sy, mode)
			blendPixel(fb.Pix, fb.Offset(x, y), r, g, b, a, blend)
		}
	}
	return nil
}

// evalGrid runs the point script at every grid point and stores the
// resulting source positions in pixel units.
func (n *ShiftNode) evalGrid(env *expr.Env, gx, gy, w, h int) {
	if len(n.gridX) != gx*gy {
		n.gridX = make([]float64, gx*gy)
		n.gridY = make([]float64, gx*gy)
	}
	prog := n.Program("point")
	polar := n.Enum("coords") == "polar"
	sw := float64(w-1) / 2
	sh := float64(h-1) / 2

	px, py := env.Slot("x"), env.Slot("y")
	pd, pr := env.Slot("d"), env.Slot("r")

	for j := 0; j < gy; j++ {
		ny := -1 + 2*float64(j)/float64(gy-1)
		for i := 0; i < gx; i++ {
			nx := -1 + 2*float64(i)/float64(gx-1)
			*px, *py = nx, ny
			*pd = math.Sqrt(nx*nx + ny*ny)
			*pr = math.Atan2(ny, nx)

			expr.Evaluate(prog, env)

			ox, oy := *px, *py
			if polar {
				ox = *pd * math.Cos(*pr)
				oy = *pd * math.Sin(*pr)
			}
			k := j*gx + i
			n.gridX[k] = (safeCoord(ox) + 1) * sw
			n.gridY[k] = (safeCoord(oy) + 1) * sh
		}
	}
}

func (n *ShiftNode) buildSteps(w, h, gx, gy int) {
	if len(n.columns) != w || len(n.rows) != h || n.stepGX != gx || n.stepGY != gy {
		n.columns = gridSteps(w, gx)
		n.rows = gridSteps(h, gy)
		n.stepGX, n.stepGY = gx, gy
	}
}

func gridSteps(pixels, points int) []gridStep {
	steps := make([]gridStep, pixels)
	cells := points - 1
	for p := range steps {
		var u float64
		if pixels > 1 {
			u = float64(p) / float64(pixels-1) * float64(cells)
		}
		cell := int(u)
		if cell >= cells {
			cell = cells - 1
		}
		steps[p] = gridStep{cell: cell, frac: u - float64(cell)}
	}
	return steps
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Reset drops the script variables and reruns the init script on the next frame.
func (n *ShiftNode) Reset() {
	n.inited = false
	n.ResetVars()
}

// Close releases the working buffers.
func (n *ShiftNode) Close() error {
	n.src.release()
	n.gridX, n.gridY = nil, nil
	return nil
}
