package memory

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

func frame(t *testing.T, r, g, b uint8) *domain.Framebuffer {
	t.Helper()
	fb, err := domain.NewFramebuffer(2, 2)
	require.NoError(t, err)
	fb.Fill(r, g, b, 255)
	return fb
}

func TestRecorder_CopiesFrames(t *testing.T) {
	rec := NewRecorder(4)
	fb := frame(t, 255, 0, 0)

	require.NoError(t, rec.Present(fb, domain.FrameInfo{Index: 0}))
	fb.Fill(0, 255, 0, 255)
	require.NoError(t, rec.Present(fb, domain.FrameInfo{Index: 1}))

	frames := rec.Frames()
	require.Len(t, frames, 2)
	r, g, _, _ := frames[0].Framebuffer.At(1, 1)
	assert.Equal(t, []uint8{255, 0}, []uint8{r, g}, "the engine may overwrite its buffer after Present")
	r, g, _, _ = frames[1].Framebuffer.At(0, 0)
	assert.Equal(t, []uint8{0, 255}, []uint8{r, g})
	assert.NotSame(t, fb, frames[1].Framebuffer)
}

func TestRecorder_BoundedHistory(t *testing.T) {
	rec := NewRecorder(3)
	fb := frame(t, 1, 2, 3)

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, rec.Present(fb, domain.FrameInfo{Index: i}))
	}

	assert.Equal(t, []uint64{7, 8, 9}, rec.Indices())
	assert.Equal(t, uint64(10), rec.Presented())

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(9), last.Info.Index)
}

func TestRecorder_Close(t *testing.T) {
	rec := NewRecorder(0)
	require.NoError(t, rec.Close())

	err := rec.Present(frame(t, 0, 0, 0), domain.FrameInfo{})
	assert.ErrorIs(t, err, domain.ErrSinkClosed)

	_, ok := rec.Last()
	assert.False(t, ok)
	assert.Error(t, rec.Present(nil, domain.FrameInfo{}))
}

func TestRecorder_PNG(t *testing.T) {
	rec := NewRecorder(1)
	assert.Error(t, rec.WritePNG(&bytes.Buffer{}))

	require.NoError(t, rec.Present(frame(t, 10, 20, 30), domain.FrameInfo{Index: 5}))

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, rec.SavePNG(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, 2, img.Bounds().Dx())
	r, g, b, a := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{10, 20, 30, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}
