// Package fyne provides a FrameSink that shows frames in a Fyne window.
package fyne

import (
	"image"
	"sync"
	"sync/atomic"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// Preview is a widget that displays the newest presented frame scaled to its size.
// Present copies the frame, so the engine may reuse its buffer immediately.
//
// Thread-safety: Present is called from the frame loop; drawing happens on the
// Fyne main goroutine. The latest frame is guarded by a mutex.
type Preview struct {
	widget.BaseWidget

	raster *canvas.Raster

	mu     sync.Mutex
	latest *image.RGBA
	info   domain.FrameInfo
	frames uint64
	closed bool

	refreshQueued atomic.Bool
}

// NewPreview creates an empty preview widget.
func NewPreview() *Preview {
	p := &Preview{}
	p.raster = canvas.NewRaster(p.render)
	p.raster.ScaleMode = canvas.ImageScalePixels
	p.ExtendBaseWidget(p)
	return p
}

// CreateRenderer implements fyne.Widget.
func (p *Preview) CreateRenderer() fyneapp.WidgetRenderer {
	return widget.NewSimpleRenderer(p.raster)
}

// MinSize returns the minimum size of the preview.
func (p *Preview) MinSize() fyneapp.Size {
	return fyneapp.NewSize(160, 120)
}

// Present copies fb and schedules a redraw. At most one redraw is pending at a time.
func (p *Preview) Present(fb *domain.Framebuffer, info domain.FrameInfo) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrSinkClosed
	}
	if p.latest == nil || p.latest.Rect.Dx() != fb.Width || p.latest.Rect.Dy() != fb.Height {
		p.latest = image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	}
	copy(p.latest.Pix, fb.Pix)
	p.info = info
	p.frames++
	p.mu.Unlock()

	if p.refreshQueued.CompareAndSwap(false, true) {
		fyneapp.Do(func() {
			p.refreshQueued.Store(false)
			p.raster.Refresh()
		})
	}
	return nil
}

// Latest returns a copy of the newest frame and its info.
func (p *Preview) Latest() (*image.RGBA, domain.FrameInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil, domain.FrameInfo{}, false
	}
	img := image.NewRGBA(p.latest.Rect)
	copy(img.Pix, p.latest.Pix)
	return img, p.info, true
}

// Frames returns how many frames were presented.
func (p *Preview) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Close makes further Present calls fail with domain.ErrSinkClosed,
// which stops the engine.
func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// render scales the newest frame to w×h with nearest-neighbour sampling.
func (p *Preview) render(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return img
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	src := p.latest
	if src == nil {
		// Opaque black until the first frame
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
		return img
	}

	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		sy := y * sh / h
		srow := src.Pix[sy*src.Stride:]
		drow := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			sx := x * sw / w
			copy(drow[x*4:x*4+4], srow[sx*4:sx*4+4])
		}
	}
	return img
}

// Verify interface implementation
var _ ports.FrameSink = (*Preview)(nil)
