package ports

import (
	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// FrameSink receives each completed frame, strictly in increasing frame index order.
//
// The framebuffer is only valid for the duration of the call: the engine reuses
// and overwrites it on the next frame. A sink that needs the pixels later must copy them.
//
// Present is called from the frame loop goroutine. Returning an error wrapping
// domain.ErrResourceExhausted stops the engine with a FatalEngineError; any other
// error is logged and the loop continues.
type FrameSink interface {
	Present(fb *domain.Framebuffer, info domain.FrameInfo) error
}

// FrameSinkFunc adapts a function to the FrameSink interface.
type FrameSinkFunc func(fb *domain.Framebuffer, info domain.FrameInfo) error

// Present calls f(fb, info).
func (f FrameSinkFunc) Present(fb *domain.Framebuffer, info domain.FrameInfo) error {
	return f(fb, info)
}
