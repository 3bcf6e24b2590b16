package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeBlur is the registry key of BlurNode.
const TypeBlur = "blur"

// BlurNode smooths the framebuffer with a box filter or a Gaussian kernel.
//
// The fast path runs a separable running-sum box filter, so its cost does not
// depend on the radius. The exact path convolves with the full (2r+1)² kernel.
// Several passes give a stronger blur without a larger kernel.
type BlurNode struct {
	Base

	tmp    []uint8
	src    scratch
	kernel []float64
	kr     int
}

// NewBlurNode creates a blur node.
func NewBlurNode(id string, opts Options) *BlurNode {
	return &BlurNode{
		Base: NewBase(id, TypeBlur, "Blur", []domain.ParamSpec{
			numberSpec("radius", "Kernel radius in pixels", 1, 16, 2),
			numberSpec("passes", "Number of passes", 1, 8, 1),
			enumSpec("quality", "fast: box filter, exact: Gaussian kernel", []string{"fast", "exact"}, "fast"),
			edgeSpec(opts.EdgeMode),
		}),
	}
}

// Initialize allocates the working buffer.
func (n *BlurNode) Initialize(width, height int) error {
	if err := n.Base.Initialize(width, height); err != nil {
		return err
	}
	n.tmp = make([]uint8, width*height*4)
	n.src.release()
	return nil
}

// Process blurs fb in place.
func (n *BlurNode) Process(fb *domain.Framebuffer, _ *Frame) error {
	if len(n.tmp) != len(fb.Pix) {
		n.tmp = make([]uint8, len(fb.Pix))
	}
	radius := n.Int("radius")
	passes := n.Int("passes")
	mode := n.EdgeMode()

	for p := 0; p < passes; p++ {
		if n.Enum("quality") == "exact" {
			n.gaussian(fb, radius, mode)
		} else {
			n.boxHorizontal(fb.Pix, n.tmp, fb.Width, fb.Height, radius, mode)
			n.boxVertical(n.tmp, fb.Pix, fb.Width, fb.Height, radius, mode)
		}
	}
	return nil
}

func (n *BlurNode) boxHorizontal(src, dst []uint8, w, h, r int, mode domain.EdgeMode) {
	size := 2*r + 1
	half := size / 2
	for y := 0; y < h; y++ {
		row := y * w * 4
		for c := 0; c < 4; c++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += int(src[row+resolve(k, w, mode)*4+c])
			}
			for x := 0; x < w; x++ {
				dst[row+x*4+c] = uint8((sum + half) / size)
				sum += int(src[row+resolve(x+r+1, w, mode)*4+c])
				sum -= int(src[row+resolve(x-r, w, mode)*4+c])
			}
		}
	}
}

func (n *BlurNode) boxVertical(src, dst []uint8, w, h, r int, mode domain.EdgeMode) {
	size := 2*r + 1
	half := size / 2
	stride := w * 4
	for x := 0; x < w; x++ {
		col := x * 4
		for c := 0; c < 4; c++ {
			sum := 0
			for k := -r; k <= r; k++ {
				sum += int(src[resolve(k, h, mode)*stride+col+c])
			}
			for y := 0; y < h; y++ {
				dst[y*stride+col+c] = uint8((sum + half) / size)
				sum += int(src[resolve(y+r+1, h, mode)*stride+col+c])
				sum -= int(src[resolve(y-r, h, mode)*stride+col+c])
			}
		}
	}
}

// gaussian convolves with the full two-dimensional kernel.
func (n *BlurNode) gaussian(fb *domain.Framebuffer, r int, mode domain.EdgeMode) {
	if n.kr != r || n.kernel == nil {
		n.kernel = gaussianKernel(r)
		n.kr = r
	}
	src := n.src.snapshot(fb)
	size := 2*r + 1
	w, h := fb.Width, fb.Height

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float64
			for ky := -r; ky <= r; ky++ {
				sy := resolve(y+ky, h, mode) * w * 4
				krow := (ky + r) * size
				for kx := -r; kx <= r; kx++ {
					wgt := n.kernel[krow+kx+r]
					i := sy + resolve(x+kx, w, mode)*4
					acc[0] += float64(src.Pix[i]) * wgt
					acc[1] += float64(src.Pix[i+1]) * wgt
					acc[2] += float64(src.Pix[i+2]) * wgt
					acc[3] += float64(src.Pix[i+3]) * wgt
				}
			}
			o := fb.Offset(x, y)
			fb.Pix[o] = clamp8(acc[0])
			fb.Pix[o+1] = clamp8(acc[1])
			fb.Pix[o+2] = clamp8(acc[2])
			fb.Pix[o+3] = clamp8(acc[3])
		}
	}
}

// gaussianKernel returns normalised (2r+1)² weights with sigma = r/2.
func gaussianKernel(r int) []float64 {
	size := 2*r + 1
	sigma := math.Max(float64(r)/2, 0.5)
	k := make([]float64, size*size)
	var sum float64
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			v := math.Exp(-float64(x*x+y*y) / (2 * sigma * sigma))
			k[(y+r)*size+x+r] = v
			sum += v
		}
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// Reset drops the cached kernel.
func (n *BlurNode) Reset() {
	n.kernel = nil
}

// Close releases the working buffers.
func (n *BlurNode) Close() error {
	n.tmp = nil
	n.src.release()
	return nil
}
