package effect

import (
	"math"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// Coordinates are clamped into this range before integer conversion so that
// arbitrarily large script results stay well defined.
const coordLimit = 1 << 24

// resolve maps an index into [0, n) according to the edge mode.
func resolve(i, n int, mode domain.EdgeMode) int {
	if n <= 1 {
		return 0
	}
	switch mode {
	case domain.EdgeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case domain.EdgeMirror:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

func safeCoord(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > coordLimit {
		return coordLimit
	}
	if v < -coordLimit {
		return -coordLimit
	}
	return v
}

// sampleBilinear reads src at the fractional pixel position (x, y), where
// integer coordinates are pixel centers. Neighbours outside the buffer are
// resolved through the edge mode.
func sampleBilinear(src *domain.Framebuffer, x, y float64, mode domain.EdgeMode) (r, g, b, a float64) {
	x = safeCoord(x)
	y = safeCoord(y)

	fx := math.Floor(x)
	fy := math.Floor(y)
	tx := x - fx
	ty := y - fy

	x0 := resolve(int(fx), src.Width, mode)
	x1 := resolve(int(fx)+1, src.Width, mode)
	y0 := resolve(int(fy), src.Height, mode)
	y1 := resolve(int(fy)+1, src.Height, mode)

	stride := src.Width * 4
	p00 := y0*stride + x0*4
	p10 := y0*stride + x1*4
	p01 := y1*stride + x0*4
	p11 := y1*stride + x1*4

	w00 := (1 - tx) * (1 - ty)
	w10 := tx * (1 - ty)
	w01 := (1 - tx) * ty
	w11 := tx * ty

	pix := src.Pix
	r = float64(pix[p00])*w00 + float64(pix[p10])*w10 + float64(pix[p01])*w01 + float64(pix[p11])*w11
	g = float64(pix[p00+1])*w00 + float64(pix[p10+1])*w10 + float64(pix[p01+1])*w01 + float64(pix[p11+1])*w11
	b = float64(pix[p00+2])*w00 + float64(pix[p10+2])*w10 + float64(pix[p01+2])*w01 + float64(pix[p11+2])*w11
	a = float64(pix[p00+3])*w00 + float64(pix[p10+3])*w10 + float64(pix[p01+3])*w01 + float64(pix[p11+3])*w11
	return r, g, b, a
}

// sampleNearest reads src at the nearest integer position after edge resolution.
func sampleNearest(src *domain.Framebuffer, x, y int, mode domain.EdgeMode) int {
	return resolve(y, src.Height, mode)*src.Width*4 + resolve(x, src.Width, mode)*4
}

// clamp8 rounds and clamps a channel value into 0..255.
func clamp8(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// blendChannel combines a destination byte with a source value.
func blendChannel(dst uint8, src float64, mode domain.BlendMode) uint8 {
	d := float64(dst)
	switch mode {
	case domain.BlendAdditive:
		return clamp8(d + src)
	case domain.BlendMax:
		return clamp8(math.Max(d, src))
	case domain.BlendMin:
		return clamp8(math.Min(d, src))
	case domain.BlendMultiply:
		return clamp8(d * src / 255)
	case domain.BlendAverage:
		return clamp8((d + src) / 2)
	case domain.BlendSubtractive:
		return clamp8(d - src)
	default:
		return clamp8(src)
	}
}

// blendPixel writes an RGB source color over the pixel at offset i.
// Replace also copies alpha; the other modes leave alpha untouched.
func blendPixel(pix []uint8, i int, r, g, b, a float64, mode domain.BlendMode) {
	pix[i] = blendChannel(pix[i], r, mode)
	pix[i+1] = blendChannel(pix[i+1], g, mode)
	pix[i+2] = blendChannel(pix[i+2], b, mode)
	if mode == domain.BlendReplace {
		pix[i+3] = clamp8(a)
	}
}

// luminance returns the Rec. 601 luma of an RGB triple, 0..255.
func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// scratch keeps a copy of the framebuffer as the read-only source of a pass.
type scratch struct {
	fb domain.Framebuffer
}

func (s *scratch) snapshot(fb *domain.Framebuffer) *domain.Framebuffer {
	s.fb.CopyFrom(fb)
	return &s.fb
}

func (s *scratch) release() {
	s.fb = domain.Framebuffer{}
}
