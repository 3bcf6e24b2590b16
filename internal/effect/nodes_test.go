package effect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

func gradient(t *testing.T, w, h int) *domain.Framebuffer {
	t.Helper()
	fb, err := domain.NewFramebuffer(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fb.Set(x, y, uint8(x*255/max(w-1, 1)), uint8(y*255/max(h-1, 1)), uint8((x+y)%256), 255)
		}
	}
	return fb
}

func initNode(t *testing.T, n Node, w, h int) {
	t.Helper()
	require.NoError(t, n.Initialize(w, h))
}

func TestShift_ClampFarOutsideReturnsEdgePixel(t *testing.T) {
	fb := gradient(t, 6, 4)
	fb.Set(5, 3, 10, 20, 30, 255)

	shift := NewShiftNode("shift", Options{EdgeMode: domain.EdgeClamp})
	require.NoError(t, shift.SetParam("point", domain.ScriptParam("x = 100; y = 100")))
	initNode(t, shift, 6, 4)

	require.NoError(t, shift.Process(fb, newFrame(0)))

	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			r, g, b, a := fb.At(x, y)
			assert.Equal(t, []uint8{10, 20, 30, 255}, []uint8{r, g, b, a}, "pixel %d,%d", x, y)
		}
	}
}

func TestShift_HugeAndNegativeCoordinates(t *testing.T) {
	fb := gradient(t, 5, 5)
	fb.Set(0, 0, 1, 2, 3, 255)

	shift := NewShiftNode("shift", Options{})
	require.NoError(t, shift.SetParam("point", domain.ScriptParam("x = -1e300; y = -exp(700)")))
	initNode(t, shift, 5, 5)

	require.NoError(t, shift.Process(fb, newFrame(0)))

	r, g, b, _ := fb.At(4, 4)
	assert.Equal(t, []uint8{1, 2, 3}, []uint8{r, g, b})
}

func TestShift_IdentityLeavesImage(t *testing.T) {
	fb := gradient(t, 9, 7)
	want := fb.Clone()

	shift := NewShiftNode("shift", Options{})
	initNode(t, shift, 9, 7)
	require.NoError(t, shift.Process(fb, newFrame(0)))

	assert.Equal(t, want.Pix, fb.Pix)
}

func TestShift_ScriptsRunInOrder(t *testing.T) {
	shift := NewShiftNode("shift", Options{})
	require.NoError(t, shift.SetParam("init", domain.ScriptParam("count = 10")))
	require.NoError(t, shift.SetParam("frame", domain.ScriptParam("count = count + 1")))
	require.NoError(t, shift.SetParam("beat", domain.ScriptParam("beats = beats + 1")))
	initNode(t, shift, 4, 4)

	frame := newFrame(0)
	fb := gradient(t, 4, 4)
	require.NoError(t, shift.Process(fb, frame))
	frame.Beat = true
	require.NoError(t, shift.Process(fb, frame))

	assert.Equal(t, 12.0, shift.Vars().Get("count"))
	assert.Equal(t, 1.0, shift.Vars().Get("beats"))

	shift.Reset()
	frame.Beat = false
	require.NoError(t, shift.Process(fb, frame))
	assert.Equal(t, 11.0, shift.Vars().Get("count"), "init reruns after reset")
}

func TestShift_InvalidScriptKeepsPrevious(t *testing.T) {
	shift := NewShiftNode("shift", Options{})
	require.NoError(t, shift.SetParam("point", domain.ScriptParam("x = x*0.5")))

	err := shift.SetParam("point", domain.ScriptParam("x = (1"))

	var syntaxErr *domain.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	v, _ := shift.Param("point")
	assert.Equal(t, "x = x*0.5", v.AsString(""))
	assert.Equal(t, "x = x*0.5", shift.Program("point").Source())
}

func TestBlur_SolidColorIsStable(t *testing.T) {
	for _, quality := range []string{"fast", "exact"} {
		for _, mode := range domain.EdgeModeNames {
			t.Run(quality+"/"+mode, func(t *testing.T) {
				blur := NewBlurNode("blur", Options{})
				require.NoError(t, blur.SetParam("quality", domain.EnumParam(quality)))
				require.NoError(t, blur.SetParam("edgemode", domain.EnumParam(mode)))
				require.NoError(t, blur.SetParam("radius", domain.NumberParam(3)))
				require.NoError(t, blur.SetParam("passes", domain.NumberParam(2)))
				initNode(t, blur, 5, 4)

				fb := solid(t, 5, 4, 200, 100, 50)
				want := append([]uint8(nil), fb.Pix...)
				require.NoError(t, blur.Process(fb, newFrame(0)))

				assert.Equal(t, want, fb.Pix)
			})
		}
	}
}

func TestBlur_SpreadsImpulse(t *testing.T) {
	blur := NewBlurNode("blur", Options{})
	require.NoError(t, blur.SetParam("radius", domain.NumberParam(1)))
	initNode(t, blur, 5, 5)

	fb := solid(t, 5, 5, 0, 0, 0)
	fb.Set(2, 2, 255, 255, 255, 255)
	require.NoError(t, blur.Process(fb, newFrame(0)))

	center, _, _, _ := fb.At(2, 2)
	diag, _, _, _ := fb.At(1, 1)
	corner, _, _, _ := fb.At(0, 0)
	assert.Equal(t, uint8(28), center)
	assert.Equal(t, center, diag)
	assert.Zero(t, corner)
}

func TestBlur_ExactMatchesKernelWeights(t *testing.T) {
	k := gaussianKernel(2)
	var sum float64
	for _, w := range k {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Len(t, k, 25)
	assert.Greater(t, k[12], k[0])
}

func TestBlur_RadiusIsClamped(t *testing.T) {
	blur := NewBlurNode("blur", Options{})
	require.NoError(t, blur.SetParam("radius", domain.NumberParam(500)))
	assert.Equal(t, 16, blur.Int("radius"))
}

func TestScatter_TableIsStableBetweenFrames(t *testing.T) {
	scatter := NewScatterNode("scatter", Options{Seed: 7})
	initNode(t, scatter, 32, 32)
	table := scatter.table

	first := gradient(t, 32, 32)
	second := gradient(t, 32, 32)
	require.NoError(t, scatter.Process(first, newFrame(0)))
	require.NoError(t, scatter.Process(second, newFrame(1)))

	assert.Equal(t, first.Pix, second.Pix, "same input gives the same pattern")
	assert.Same(t, &table[0], &scatter.table[0], "table is not rebuilt per frame")

	require.NoError(t, scatter.Initialize(32, 32))
	assert.Equal(t, table, scatter.table, "same seed regenerates the same table")

	require.NoError(t, scatter.SetParam("seed", domain.NumberParam(99)))
	scatter.Reset()
	assert.NotEqual(t, table, scatter.table)
}

func TestScatter_BeatBoostsOneFrame(t *testing.T) {
	scatter := NewScatterNode("scatter", Options{Seed: 3})
	require.NoError(t, scatter.SetParam("amount", domain.NumberParam(2)))
	require.NoError(t, scatter.SetParam("beatboost", domain.NumberParam(4)))
	initNode(t, scatter, 32, 32)

	calm := gradient(t, 32, 32)
	require.NoError(t, scatter.Process(calm, newFrame(0)))

	beat := gradient(t, 32, 32)
	frame := newFrame(1)
	frame.Beat = true
	require.NoError(t, scatter.Process(beat, frame))

	after := gradient(t, 32, 32)
	require.NoError(t, scatter.Process(after, newFrame(2)))

	assert.NotEqual(t, calm.Pix, beat.Pix)
	assert.Equal(t, calm.Pix, after.Pix)
}

func TestScatter_ZeroAmountIsNoop(t *testing.T) {
	scatter := NewScatterNode("scatter", Options{})
	require.NoError(t, scatter.SetParam("amount", domain.NumberParam(0)))
	initNode(t, scatter, 8, 8)

	fb := gradient(t, 8, 8)
	want := fb.Clone()
	require.NoError(t, scatter.Process(fb, newFrame(0)))
	assert.Equal(t, want.Pix, fb.Pix)
}

func TestColorFade_Curves(t *testing.T) {
	for _, curve := range []string{"linear", "exponential", "sine", "bounce"} {
		t.Run(curve, func(t *testing.T) {
			assert.InDelta(t, 0, fadeCurve(curve, 0), 1e-9)
			assert.InDelta(t, 1, fadeCurve(curve, 1), 1e-9)
			assert.InDelta(t, 1, fadeCurve(curve, 5), 1e-9, "phase is clamped")
		})
	}
	assert.InDelta(t, 0.5, fadeCurve("sine", 0.5), 1e-9)
	assert.Less(t, fadeCurve("exponential", 0.5), 0.5)
	assert.Greater(t, fadeCurve("bounce", 0.5), 0.5)
}

func TestColorFade_MixesTowardTarget(t *testing.T) {
	fade := NewColorFadeNode("fade", Options{})
	require.NoError(t, fade.SetParam("color", domain.StringParam("#ffffff")))
	require.NoError(t, fade.SetParam("duration", domain.NumberParam(1)))
	initNode(t, fade, 2, 2)

	frame := newFrame(0)
	frame.Delta = 0.5

	fb := solid(t, 2, 2, 0, 0, 0)
	require.NoError(t, fade.Process(fb, frame))
	r, _, _, _ := fb.At(0, 0)
	assert.Zero(t, r, "phase starts at 0")
	assert.InDelta(t, 0.5, fade.Phase(), 1e-9)

	fb = solid(t, 2, 2, 0, 0, 0)
	require.NoError(t, fade.Process(fb, frame))
	r, g, b, a := fb.At(1, 1)
	assert.Equal(t, []uint8{128, 128, 128, 255}, []uint8{r, g, b, a})
	assert.InDelta(t, 0, fade.Phase(), 1e-9, "loops")
}

func TestColorFade_BeatActions(t *testing.T) {
	fade := NewColorFadeNode("fade", Options{})
	require.NoError(t, fade.SetParam("beat", domain.EnumParam("reset")))
	require.NoError(t, fade.SetParam("duration", domain.NumberParam(10)))
	initNode(t, fade, 1, 1)

	frame := newFrame(0)
	frame.Delta = 1
	fb := solid(t, 1, 1, 0, 0, 0)
	require.NoError(t, fade.Process(fb, frame))
	require.NoError(t, fade.Process(fb, frame))
	assert.InDelta(t, 0.2, fade.Phase(), 1e-9)

	frame.Beat = true
	require.NoError(t, fade.Process(fb, frame))
	assert.InDelta(t, 0.1, fade.Phase(), 1e-9, "reset then advance")

	require.NoError(t, fade.SetParam("beat", domain.EnumParam("accelerate")))
	require.NoError(t, fade.SetParam("accel", domain.NumberParam(4)))
	require.NoError(t, fade.Process(fb, frame))
	assert.InDelta(t, 0.5, fade.Phase(), 1e-9)
}

func TestDistance_BrightnessStep(t *testing.T) {
	dist := NewDistanceNode("dist", Options{})
	require.NoError(t, dist.SetParam("falloff", domain.EnumParam("step")))
	require.NoError(t, dist.SetParam("radius", domain.NumberParam(0.5)))
	initNode(t, dist, 5, 5)

	fb := solid(t, 5, 5, 100, 100, 100)
	require.NoError(t, dist.Process(fb, newFrame(0)))

	center, _, _, _ := fb.At(2, 2)
	corner, _, _, a := fb.At(0, 0)
	assert.Equal(t, uint8(200), center)
	assert.Equal(t, uint8(0), corner)
	assert.Equal(t, uint8(255), a, "alpha is untouched")
}

func TestDistance_HueRotation(t *testing.T) {
	dist := NewDistanceNode("dist", Options{})
	require.NoError(t, dist.SetParam("target", domain.EnumParam("hue")))
	require.NoError(t, dist.SetParam("falloff", domain.EnumParam("step")))
	require.NoError(t, dist.SetParam("radius", domain.NumberParam(0.5)))
	require.NoError(t, dist.SetParam("strength", domain.NumberParam(0.5)))
	initNode(t, dist, 3, 3)

	fb := solid(t, 3, 3, 255, 0, 0)
	require.NoError(t, dist.Process(fb, newFrame(0)))

	r, g, b, _ := fb.At(1, 1)
	assert.Equal(t, []uint8{0, 255, 255}, []uint8{r, g, b})
	r, g, b, _ = fb.At(0, 0)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{r, g, b})
}

func TestDistance_Metrics(t *testing.T) {
	assert.InDelta(t, 5, distance("euclidean", 3, 4, 0), 1e-12)
	assert.InDelta(t, 7, distance("manhattan", 3, -4, 0), 1e-12)
	assert.InDelta(t, 4, distance("chebyshev", -3, 4, 0), 1e-12)
	assert.InDelta(t, 5, distance("minkowski", 3, 4, 2), 1e-12)
	assert.InDelta(t, 7, distance("minkowski", 3, 4, 1), 1e-12)

	for _, f := range []string{"linear", "exponential", "inverse", "gaussian", "step"} {
		assert.InDelta(t, 1, falloffWeight(f, 0), 1e-12, f)
		assert.Less(t, falloffWeight(f, 2), 1.0, f)
	}
}

func TestDistance_DisplacementStaysInBounds(t *testing.T) {
	dist := NewDistanceNode("dist", Options{EdgeMode: domain.EdgeMirror})
	require.NoError(t, dist.SetParam("target", domain.EnumParam("displacement")))
	require.NoError(t, dist.SetParam("strength", domain.NumberParam(-4)))
	require.NoError(t, dist.SetParam("center", domain.EnumParam("orbit")))
	initNode(t, dist, 9, 9)

	fb := gradient(t, 9, 9)
	frame := newFrame(0)
	frame.Time = 2
	require.NoError(t, dist.Process(fb, frame))
	assert.NoError(t, fb.Validate())
}

func TestBump_FlatSurfaceUnderLight(t *testing.T) {
	bump := NewBumpNode("bump", Options{})
	require.NoError(t, bump.SetParam("light", domain.EnumParam("static")))
	require.NoError(t, bump.SetParam("ambient", domain.NumberParam(0)))
	initNode(t, bump, 5, 5)

	fb := solid(t, 5, 5, 100, 100, 100)
	require.NoError(t, bump.Process(fb, newFrame(0)))

	center, _, _, _ := fb.At(2, 2)
	corner, _, _, _ := fb.At(0, 0)
	assert.Equal(t, uint8(100), center)
	assert.Less(t, corner, center)
}

func TestBump_ClampsBrightness(t *testing.T) {
	bump := NewBumpNode("bump", Options{})
	require.NoError(t, bump.SetParam("intensity", domain.NumberParam(4)))
	require.NoError(t, bump.SetParam("ambient", domain.NumberParam(1)))
	initNode(t, bump, 4, 4)

	fb := solid(t, 4, 4, 250, 250, 250)
	require.NoError(t, bump.Process(fb, newFrame(0)))

	for i := 0; i < len(fb.Pix); i += 4 {
		assert.Equal(t, uint8(255), fb.Pix[i])
	}
}

func TestBump_ScriptedLight(t *testing.T) {
	bump := NewBumpNode("bump", Options{})
	require.NoError(t, bump.SetParam("light", domain.EnumParam("script")))
	require.NoError(t, bump.SetParam("frame", domain.ScriptParam("lx = 1; ly = 1")))
	require.NoError(t, bump.SetParam("ambient", domain.NumberParam(0)))
	initNode(t, bump, 5, 5)

	fb := solid(t, 5, 5, 100, 100, 100)
	frame := newFrame(0)
	require.NoError(t, bump.Process(fb, frame))

	lit, _, _, _ := fb.At(4, 4)
	far, _, _, _ := fb.At(0, 0)
	assert.Equal(t, uint8(100), lit)
	assert.Less(t, far, lit)
	assert.Equal(t, 1.0, bump.Vars().Get("lx"))
}

func TestSuperscope_DrawsScriptedPoint(t *testing.T) {
	scope := NewSuperscopeNode("scope", Options{})
	require.NoError(t, scope.SetParam("init", domain.ScriptParam("")))
	require.NoError(t, scope.SetParam("points", domain.NumberParam(1)))
	require.NoError(t, scope.SetParam("draw", domain.EnumParam("dots")))
	require.NoError(t, scope.SetParam("point", domain.ScriptParam("x = 0; y = 0; red = 1; green = 0; blue = 0")))
	initNode(t, scope, 9, 9)

	fb := solid(t, 9, 9, 0, 0, 0)
	require.NoError(t, scope.Process(fb, newFrame(0)))

	lit := 0
	for i := 0; i < len(fb.Pix); i += 4 {
		if fb.Pix[i] != 0 {
			lit++
		}
	}
	assert.Equal(t, 1, lit)
	r, g, b, _ := fb.At(4, 4)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{r, g, b})
}

func TestSuperscope_LinesAndSkip(t *testing.T) {
	scope := NewSuperscopeNode("scope", Options{})
	require.NoError(t, scope.SetParam("init", domain.ScriptParam("n = 2")))
	require.NoError(t, scope.SetParam("point", domain.ScriptParam("x = i*2 - 1; y = 0")))
	initNode(t, scope, 8, 3)

	fb := solid(t, 8, 3, 0, 0, 0)
	require.NoError(t, scope.Process(fb, newFrame(0)))
	for x := 0; x < 8; x++ {
		r, _, _, _ := fb.At(x, 1)
		assert.Equal(t, uint8(255), r, "x=%d", x)
	}

	require.NoError(t, scope.SetParam("point", domain.ScriptParam("skip = 1")))
	fb = solid(t, 8, 3, 0, 0, 0)
	require.NoError(t, scope.Process(fb, newFrame(1)))
	assert.Equal(t, solid(t, 8, 3, 0, 0, 0).Pix, fb.Pix)
}

func TestSuperscope_ReadsAudio(t *testing.T) {
	assert.Equal(t, 0.0, sampleSeries(nil, 0.5))
	assert.InDelta(t, 0.5, sampleSeries([]float64{0, 1}, 0.5), 1e-12)
	assert.Equal(t, 1.0, sampleSeries([]float64{0, 1}, 3))
}

func TestPlasma_IsDeterministicAndOpaque(t *testing.T) {
	a := NewPlasmaNode("a", Options{})
	b := NewPlasmaNode("b", Options{})
	initNode(t, a, 10, 7)
	initNode(t, b, 10, 7)

	fa := solid(t, 10, 7, 0, 0, 0)
	fb := solid(t, 10, 7, 0, 0, 0)
	frame := newFrame(0)
	frame.Bass = 0.8
	require.NoError(t, a.Process(fa, frame))
	require.NoError(t, b.Process(fb, frame))

	assert.Equal(t, fa.Pix, fb.Pix)
	assert.NotEqual(t, solid(t, 10, 7, 0, 0, 0).Pix, fa.Pix)
}

func TestStarfield_SeededAndBounded(t *testing.T) {
	a := NewStarfieldNode("a", Options{Seed: 5})
	b := NewStarfieldNode("b", Options{Seed: 5})
	initNode(t, a, 64, 48)
	initNode(t, b, 64, 48)

	fa := solid(t, 64, 48, 0, 0, 0)
	fb := solid(t, 64, 48, 0, 0, 0)
	for i := uint64(0); i < 30; i++ {
		frame := newFrame(i)
		frame.Bass = 1
		require.NoError(t, a.Process(fa, frame))
		require.NoError(t, b.Process(fb, frame))
	}
	assert.Equal(t, fa.Pix, fb.Pix)

	require.NoError(t, a.SetParam("stars", domain.NumberParam(10)))
	require.NoError(t, a.Process(fa, newFrame(30)))
	assert.Len(t, a.stars, 10)
}

func TestSimple_BarsAndFallingCaps(t *testing.T) {
	n := NewSimpleNode("s", Options{})
	initNode(t, n, 8, 8)
	require.NoError(t, n.SetParam("bars", domain.NumberParam(4)))
	require.NoError(t, n.SetParam("gain", domain.NumberParam(1)))

	frame := newFrame(0)
	for i := range frame.Snapshot.Spectrum {
		frame.Snapshot.Spectrum[i] = 0.25
	}
	fb := solid(t, 8, 8, 0, 0, 0)
	require.NoError(t, n.Process(fb, frame))

	r, g, b, _ := fb.At(0, 7)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{r, g, b}, "bars start red")
	r, g, b, _ = fb.At(0, 3)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{r, g, b}, "cap sits on the bar")
	r, _, _, _ = fb.At(6, 7)
	assert.Zero(t, r, "the highest bar has no bins left")

	fb = solid(t, 8, 8, 0, 0, 0)
	require.NoError(t, n.Process(fb, newFrame(1)))
	r, g, b, _ = fb.At(0, 5)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{r, g, b}, "cap fell by two pixels")
	r, _, _, _ = fb.At(0, 7)
	assert.Zero(t, r, "silence draws no bar")

	n.Reset()
	assert.Nil(t, n.caps)
}

func TestSimple_Scope(t *testing.T) {
	for _, mode := range []string{"scope", "dots"} {
		t.Run(mode, func(t *testing.T) {
			n := NewSimpleNode("s", Options{})
			initNode(t, n, 8, 9)
			require.NoError(t, n.SetParam("mode", domain.EnumParam(mode)))
			require.NoError(t, n.SetParam("color", domain.ColorParam(domain.Color{R: 10, G: 20, B: 30})))

			fb := solid(t, 8, 9, 0, 0, 0)
			require.NoError(t, n.Process(fb, newFrame(0)))

			for x := 0; x < 8; x++ {
				r, g, b, _ := fb.At(x, 4)
				assert.Equal(t, []uint8{10, 20, 30}, []uint8{r, g, b}, "x=%d", x)
			}
			r, _, _, _ := fb.At(3, 0)
			assert.Zero(t, r)
		})
	}
}
