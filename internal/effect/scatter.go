package effect

import (
	"math/rand"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeScatter is the registry key of ScatterNode.
const TypeScatter = "scatter"

const fudgeSize = 1024

type fudge struct {
	dx, dy float64
}

// ScatterNode jitters every pixel by an offset from a precomputed table.
// The table is regenerated only on Initialize and Reset, so the pattern is
// stable from frame to frame.
type ScatterNode struct {
	Base

	src   scratch
	table []fudge
}

// NewScatterNode creates a scatter node.
func NewScatterNode(id string, opts Options) *ScatterNode {
	return &ScatterNode{
		Base: NewBase(id, TypeScatter, "Scatter", []domain.ParamSpec{
			numberSpec("amount", "Maximum offset in pixels", 0, 64, 4),
			numberSpec("beatboost", "Amount multiplier on the beat edge", 1, 8, 2),
			numberSpec("seed", "Table seed, applied on reset", 0, 1<<31-1, float64(opts.Seed)),
			edgeSpec(opts.EdgeMode),
		}),
	}
}

// Initialize regenerates the fudge table.
func (n *ScatterNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.generate()
	n.src.release()
	return nil
}

// Reset regenerates the fudge table.
func (n *ScatterNode) Reset() {
	n.generate()
}

func (n *ScatterNode) generate() {
	rng := rand.New(rand.NewSource(int64(n.Int("seed"))))
	n.table = make([]fudge, fudgeSize)
	for i := range n.table {
		n.table[i] = fudge{dx: rng.Float64()*2 - 1, dy: rng.Float64()*2 - 1}
	}
}

// Process moves every pixel by its table offset scaled by the amount.
func (n *ScatterNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	if n.table == nil {
		n.generate()
	}
	amount := n.Number("amount")
	if frame.Beat {
		amount *= n.Number("beatboost")
	}
	if amount == 0 {
		return nil
	}

	src := n.src.snapshot(fb)
	mode := n.EdgeMode()
	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			f := n.table[fudgeIndex(x, y, fb.Width)]
			sx := x + int(f.dx*amount)
			sy := y + int(f.dy*amount)
			s := sampleNearest(src, sx, sy, mode)
			o := fb.Offset(x, y)
			copy(fb.Pix[o:o+4], src.Pix[s:s+4])
		}
	}
	return nil
}

// fudgeIndex spreads pixel positions over the table so neighbouring pixels
// do not share an entry.
func fudgeIndex(x, y, width int) int {
	h := uint32(y*width+x) * 2654435761
	return int(h>>16) & (fudgeSize - 1)
}

// Close releases the working buffer.
func (n *ScatterNode) Close() error {
	n.src.release()
	return nil
}
