// Package domain contains core models for the effect execution core with no external dependencies.
// This package defines audio snapshots, framebuffers and the shared enums of the effect nodes.
package domain

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// AudioFeatureSnapshot is an immutable view of the audio analysis at one instant.
// Once published by an AudioFeatureSource it must not be modified.
type AudioFeatureSnapshot struct {
	// Spectrum holds normalised magnitudes (0..1), low to high frequency.
	// The length is fixed for one engine session.
	Spectrum []float64

	// Waveform holds time-domain samples in -1..1.
	// The length is fixed for one engine session.
	Waveform []float64

	// RMS is the root mean square level of the analysed window
	RMS float64

	// Beat is true only on the frame the producer detected an onset
	Beat bool

	// BPM is the tempo estimate, 0 when unknown
	BPM float64

	// TimeSeconds is the producer timestamp of the snapshot
	TimeSeconds float64

	// FrameIndex is the producer's monotonic counter, starting at 0
	FrameIndex uint64
}

// EmptySnapshot returns a silent snapshot with the given array lengths.
func EmptySnapshot(spectrumLen, waveformLen int) *AudioFeatureSnapshot {
	return &AudioFeatureSnapshot{
		Spectrum: make([]float64, spectrumLen),
		Waveform: make([]float64, waveformLen),
	}
}

// SameShape reports whether two snapshots have identical spectrum and waveform lengths.
func (s *AudioFeatureSnapshot) SameShape(other *AudioFeatureSnapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return len(s.Spectrum) == len(other.Spectrum) && len(s.Waveform) == len(other.Waveform)
}

// Bands returns the mean magnitude of the bass, mid and treble ranges of the
// spectrum. The band edges scale with the spectrum length: on a 512-bin
// spectrum bass covers bins 1-9, mid 10-49 and treble the rest.
func (s *AudioFeatureSnapshot) Bands() (bass, mid, treb float64) {
	if s == nil || len(s.Spectrum) == 0 {
		return 0, 0, 0
	}
	spec := s.Spectrum
	n := len(spec)
	if n < 3 {
		v := bandMean(spec)
		return v, v, v
	}

	start := 0
	if n >= 16 {
		start = 1 // skip DC
	}
	bassEnd := clampInt(n*10/512, start+1, n-2)
	midEnd := clampInt(n*50/512, bassEnd+1, n-1)

	return bandMean(spec[start:bassEnd]), bandMean(spec[bassEnd:midEnd]), bandMean(spec[midEnd:])
}

func bandMean(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, v := range bins {
		sum += v
	}
	return sum / float64(len(bins))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Framebuffer is a mutable RGBA8 pixel grid, row-major, four bytes per pixel.
type Framebuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewFramebuffer allocates a cleared framebuffer.
func NewFramebuffer(width, height int) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// Stride returns the number of bytes per row.
func (fb *Framebuffer) Stride() int {
	return fb.Width * 4
}

// Validate checks the size invariant: positive dimensions and a pixel slice of exactly width*height*4.
func (fb *Framebuffer) Validate() error {
	if fb == nil {
		return fmt.Errorf("%w: nil framebuffer", ErrInvalidDimensions)
	}
	if fb.Width <= 0 || fb.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, fb.Width, fb.Height)
	}
	if len(fb.Pix) != fb.Width*fb.Height*4 {
		return fmt.Errorf("%w: pixel buffer has %d bytes, want %d",
			ErrInvalidDimensions, len(fb.Pix), fb.Width*fb.Height*4)
	}
	return nil
}

// Offset returns the index of the red byte of pixel (x, y).
// The caller guarantees the coordinate is inside the buffer.
func (fb *Framebuffer) Offset(x, y int) int {
	return y*fb.Width*4 + x*4
}

// At returns the pixel at (x, y). Coordinates outside the buffer return transparent black.
func (fb *Framebuffer) At(x, y int) (r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return 0, 0, 0, 0
	}
	i := fb.Offset(x, y)
	return fb.Pix[i], fb.Pix[i+1], fb.Pix[i+2], fb.Pix[i+3]
}

// Set writes the pixel at (x, y). Coordinates outside the buffer are ignored.
func (fb *Framebuffer) Set(x, y int, r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	i := fb.Offset(x, y)
	fb.Pix[i] = r
	fb.Pix[i+1] = g
	fb.Pix[i+2] = b
	fb.Pix[i+3] = a
}

// Fill sets every pixel to the same color.
func (fb *Framebuffer) Fill(r, g, b, a uint8) {
	for i := 0; i+3 < len(fb.Pix); i += 4 {
		fb.Pix[i] = r
		fb.Pix[i+1] = g
		fb.Pix[i+2] = b
		fb.Pix[i+3] = a
	}
}

// Clear sets every byte to zero.
func (fb *Framebuffer) Clear() {
	clear(fb.Pix)
}

// Clone returns a deep copy.
func (fb *Framebuffer) Clone() *Framebuffer {
	pix := make([]uint8, len(fb.Pix))
	copy(pix, fb.Pix)
	return &Framebuffer{Width: fb.Width, Height: fb.Height, Pix: pix}
}

// CopyFrom makes fb an exact copy of src, reusing fb's storage when it is large enough.
func (fb *Framebuffer) CopyFrom(src *Framebuffer) {
	if cap(fb.Pix) >= len(src.Pix) {
		fb.Pix = fb.Pix[:len(src.Pix)]
	} else {
		fb.Pix = make([]uint8, len(src.Pix))
	}
	copy(fb.Pix, src.Pix)
	fb.Width = src.Width
	fb.Height = src.Height
}

// Resize reallocates the pixel storage for new dimensions and clears it.
func (fb *Framebuffer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	fb.Width = width
	fb.Height = height
	fb.Pix = make([]uint8, width*height*4)
	return nil
}

// Image wraps the pixel storage as an image.RGBA without copying.
func (fb *Framebuffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    fb.Pix,
		Stride: fb.Stride(),
		Rect:   image.Rect(0, 0, fb.Width, fb.Height),
	}
}

// FrameInfo describes a completed frame handed to a FrameSink.
type FrameInfo struct {
	// Index is the engine frame counter, starting at 0 and strictly increasing
	Index uint64

	// Time is the engine clock since Start
	Time time.Duration

	// Delta is the time since the previous frame started
	Delta time.Duration

	// FPS is the rolling frames-per-second estimate
	FPS float64
}

// EngineState represents the execution engine lifecycle.
type EngineState int

// Engine states.
const (
	StateStopped EngineState = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the string representation of EngineState.
func (s EngineState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// PerfStats is a copy of the engine performance counters.
type PerfStats struct {
	// Frames is the number of frames presented
	Frames uint64

	// Dropped is the number of frames skipped in best-effort pacing
	Dropped uint64

	// NodeFailures counts contained node failures since Start
	NodeFailures uint64

	// AverageFrameTime is the rolling average processing time over the last 60 frames
	AverageFrameTime time.Duration

	// LastFrameTime is the processing time of the most recent frame
	LastFrameTime time.Duration

	// FPS is derived from AverageFrameTime including pacing
	FPS float64
}

// EdgeMode selects how out-of-bounds pixel coordinates are resolved.
type EdgeMode int

// Edge modes.
const (
	EdgeClamp EdgeMode = iota
	EdgeWrap
	EdgeMirror
)

// EdgeModeNames lists the enum option names in declaration order.
var EdgeModeNames = []string{"clamp", "wrap", "mirror"}

// String returns the string representation of EdgeMode.
func (m EdgeMode) String() string {
	if int(m) >= 0 && int(m) < len(EdgeModeNames) {
		return EdgeModeNames[m]
	}
	return "unknown"
}

// ParseEdgeMode converts a case-insensitive name into an EdgeMode.
func ParseEdgeMode(name string) (EdgeMode, error) {
	for i, n := range EdgeModeNames {
		if strings.EqualFold(n, name) {
			return EdgeMode(i), nil
		}
	}
	return EdgeClamp, NewValidationError("edgemode", name, "unknown edge mode")
}

// BlendMode selects how a sampled color combines with the destination pixel.
type BlendMode int

// Blend modes.
const (
	BlendReplace BlendMode = iota
	BlendAdditive
	BlendMax
	BlendMin
	BlendMultiply
	BlendAverage
	BlendSubtractive
)

// BlendModeNames lists the enum option names in declaration order.
var BlendModeNames = []string{"replace", "additive", "max", "min", "multiply", "average", "subtractive"}

// String returns the string representation of BlendMode.
func (m BlendMode) String() string {
	if int(m) >= 0 && int(m) < len(BlendModeNames) {
		return BlendModeNames[m]
	}
	return "unknown"
}

// ParseBlendMode converts a case-insensitive name into a BlendMode.
func ParseBlendMode(name string) (BlendMode, error) {
	for i, n := range BlendModeNames {
		if strings.EqualFold(n, name) {
			return BlendMode(i), nil
		}
	}
	return BlendReplace, NewValidationError("blend", name, "unknown blend mode")
}
