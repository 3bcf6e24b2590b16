// Package memory provides a FrameSink that keeps copies of presented frames.
// It backs headless runs, snapshot export and engine tests.
package memory

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// RecordedFrame is a copy of one presented frame.
type RecordedFrame struct {
	Info        domain.FrameInfo
	Framebuffer *domain.Framebuffer
}

// Recorder implements ports.FrameSink by copying every frame into a bounded history.
// When the history is full the oldest frame is dropped and its storage reused.
//
// Thread-safe: All operations protected by sync.Mutex.
type Recorder struct {
	mu        sync.Mutex
	frames    []RecordedFrame
	limit     int
	presented uint64
	closed    bool
}

// NewRecorder creates a recorder that keeps at most limit frames. A limit of 0 means 1.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1
	}
	return &Recorder{
		frames: make([]RecordedFrame, 0, limit),
		limit:  limit,
	}
}

// Present copies fb. It returns domain.ErrSinkClosed after Close.
func (r *Recorder) Present(fb *domain.Framebuffer, info domain.FrameInfo) error {
	if fb == nil {
		return domain.NewValidationError("framebuffer", "nil", "framebuffer must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrSinkClosed
	}

	var dst *domain.Framebuffer
	if len(r.frames) == r.limit {
		dst = r.frames[0].Framebuffer
		copy(r.frames, r.frames[1:])
		r.frames = r.frames[:len(r.frames)-1]
	} else {
		dst = &domain.Framebuffer{}
	}
	dst.CopyFrom(fb)

	r.frames = append(r.frames, RecordedFrame{Info: info, Framebuffer: dst})
	r.presented++
	return nil
}

// Frames returns the recorded frames, oldest first. The framebuffers are
// shared with the recorder and are reused once they leave the history.
func (r *Recorder) Frames() []RecordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedFrame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Indices returns the frame indices in the history, oldest first.
func (r *Recorder) Indices() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Info.Index
	}
	return out
}

// Last returns a copy of the newest frame.
func (r *Recorder) Last() (RecordedFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return RecordedFrame{}, false
	}
	last := r.frames[len(r.frames)-1]
	return RecordedFrame{Info: last.Info, Framebuffer: last.Framebuffer.Clone()}, true
}

// Presented returns how many frames were presented in total.
func (r *Recorder) Presented() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presented
}

// Close makes further Present calls fail with domain.ErrSinkClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// WritePNG encodes the newest frame as PNG.
func (r *Recorder) WritePNG(w io.Writer) error {
	last, ok := r.Last()
	if !ok {
		return fmt.Errorf("write png: no frame recorded")
	}
	return png.Encode(w, last.Framebuffer.Image())
}

// SavePNG writes the newest frame to path.
func (r *Recorder) SavePNG(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.WritePNG(f)
}

// Verify interface implementation
var _ ports.FrameSink = (*Recorder)(nil)
