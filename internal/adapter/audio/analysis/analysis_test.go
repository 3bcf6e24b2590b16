package analysis

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/logger"
	"github.com/tejashwikalptaru/avscore/internal/testutil"
)

func sine(freq, amp float64, n int, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestAnalyzer_SineLandsInItsBin(t *testing.T) {
	a := NewAnalyzer(Config{SampleRate: 1024, FFTSize: 1024, WaveformLen: 64})

	// 64 Hz at 1 Hz per bin
	snap := a.Analyze(sine(64, 1, 1024, 1024))

	require.Len(t, snap.Spectrum, 512)
	peak := 0
	for i, v := range snap.Spectrum {
		if v > snap.Spectrum[peak] {
			peak = i
		}
	}
	assert.Equal(t, 64, peak)
	assert.InDelta(t, 1.0, snap.Spectrum[64], 0.01)
	assert.Less(t, snap.Spectrum[100], 0.01)
	assert.InDelta(t, 1/math.Sqrt2, snap.RMS, 0.01)

	require.Len(t, snap.Waveform, 64)
	for _, v := range snap.Waveform {
		assert.LessOrEqual(t, math.Abs(v), 1.0)
	}
	assert.Equal(t, uint64(0), snap.FrameIndex)
	assert.InDelta(t, 1.0, snap.TimeSeconds, 1e-9)
}

func TestAnalyzer_Silence(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	for i := 0; i < 10; i++ {
		snap := a.Analyze(make([]float64, 735))
		assert.False(t, snap.Beat)
		assert.Zero(t, snap.RMS)
		assert.Zero(t, snap.BPM)
		for _, v := range snap.Spectrum {
			assert.Zero(t, v)
		}
		assert.Equal(t, uint64(i), snap.FrameIndex)
	}
}

func TestAnalyzer_ShortBlocksSlide(t *testing.T) {
	a := NewAnalyzer(Config{SampleRate: 8, FFTSize: 8, WaveformLen: 4})

	a.Analyze([]float64{0.1, 0.2, 0.3})
	snap := a.Analyze([]float64{0.4, 0.5})

	assert.Equal(t, []float64{0.2, 0.3, 0.4, 0.5}, snap.Waveform)
	assert.InDelta(t, 5.0/8, snap.TimeSeconds, 1e-9)

	a.Reset()
	snap = a.Analyze(nil)
	assert.Equal(t, []float64{0, 0, 0, 0}, snap.Waveform)
	assert.Equal(t, uint64(0), snap.FrameIndex)
}

func TestAnalyzer_BeatsAndTempo(t *testing.T) {
	synth := NewSynthReader(44_100, 120, 440)
	a := NewAnalyzer(DefaultConfig())
	hop := make([]float64, 735)

	var beats []int
	var last *domain.AudioFeatureSnapshot
	for i := 0; i < 300; i++ { // five seconds
		_, err := synth.ReadSamples(hop)
		require.NoError(t, err)
		last = a.Analyze(hop)
		if last.Beat {
			beats = append(beats, i)
		}
	}

	require.GreaterOrEqual(t, len(beats), 9)
	for i := 1; i < len(beats); i++ {
		assert.Equal(t, 30, beats[i]-beats[i-1], "one onset per kick")
	}
	assert.InDelta(t, 120.0, last.BPM, 1)
}

func TestLiveSource(t *testing.T) {
	source := NewLiveSource()
	assert.Nil(t, source.TryGetLatest())

	first := domain.EmptySnapshot(2, 2)
	source.Publish(first)
	assert.Same(t, first, source.TryGetLatest())
	assert.Nil(t, source.TryGetLatest(), "nothing new since the last call")

	second := domain.EmptySnapshot(2, 2)
	third := domain.EmptySnapshot(2, 2)
	source.Publish(second)
	source.Publish(third)
	assert.Same(t, third, source.TryGetLatest())
	assert.Equal(t, uint64(3), source.Published())

	source.Publish(nil)
	assert.Nil(t, source.TryGetLatest())
}

func TestLiveSource_CarriesUnseenBeat(t *testing.T) {
	source := NewLiveSource()

	beat := domain.EmptySnapshot(1, 1)
	beat.Beat = true
	quiet := domain.EmptySnapshot(1, 1)

	source.Publish(beat)
	source.Publish(quiet)

	got := source.TryGetLatest()
	require.NotNil(t, got)
	assert.True(t, got.Beat)
	assert.False(t, quiet.Beat, "published snapshots are not modified")

	// A consumed beat is not carried again
	source.Publish(domain.EmptySnapshot(1, 1))
	assert.False(t, source.TryGetLatest().Beat)
}

func TestLiveSource_ConcurrentPublish(t *testing.T) {
	source := NewLiveSource()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			source.Publish(domain.EmptySnapshot(4, 4))
		}
	}()

	seen := 0
	for i := 0; i < 1000; i++ {
		if source.TryGetLatest() != nil {
			seen++
		}
	}
	wg.Wait()

	assert.LessOrEqual(t, seen, 1000)
	assert.Equal(t, uint64(1000), source.Published())
}

func writeWAV(t *testing.T, path string, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestWAVReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 2, []int{16384, 0, -16384, -16384, 32767, 32767})

	r, err := LoadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, r.SampleRate())
	require.Equal(t, 3, r.Len())

	buf := make([]float64, 2)
	n, err := r.ReadSamples(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0.25, buf[0], 1e-3)
	assert.InDelta(t, -0.5, buf[1], 1e-3)

	n, err = r.ReadSamples(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 1.0, buf[0], 1e-3)

	_, err = r.ReadSamples(buf)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, r.Rewind())
	n, _ = r.ReadSamples(buf)
	assert.Equal(t, 2, n)
}

func TestWAVReader_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a wav file"), 0o600))

	_, err := LoadWAV(path)
	assert.Error(t, err)

	_, err = LoadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestSynthReader(t *testing.T) {
	s := NewSynthReader(1000, 60, 0)
	buf := make([]float64, 2000)
	n, err := s.ReadSamples(buf)
	require.NoError(t, err)
	assert.Equal(t, 2000, n)

	assert.Zero(t, buf[0], "kick starts at a zero crossing")
	assert.Greater(t, math.Abs(buf[4]), 0.1)
	assert.Less(t, math.Abs(buf[999]), 1e-6, "kick decayed before the next beat")
	assert.InDelta(t, buf[4], buf[1004], 1e-9, "one kick per second")
}

func TestFeeder_PublishesUntilCancelled(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	source := NewLiveSource()
	synth := NewSynthReader(44_100, 120, 440)
	feeder := NewFeeder(synth, NewAnalyzer(DefaultConfig()), source, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feeder.Run(ctx) }()

	assert.Eventually(t, func() bool { return source.Published() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feeder did not stop")
	}
	snap := source.TryGetLatest()
	require.NotNil(t, snap)
	assert.Len(t, snap.Spectrum, 512)
}

func TestFeeder_StopsAtEndOfInput(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "short.wav")
	writeWAV(t, path, 1, make([]int, 400))
	r, err := LoadWAV(path)
	require.NoError(t, err)

	source := NewLiveSource()
	feeder := NewFeeder(r, NewAnalyzer(Config{SampleRate: 8000, FFTSize: 256}), source, nil, WithHopSize(100))

	require.NoError(t, feeder.Run(context.Background()))
	assert.Equal(t, uint64(4), source.Published())
}

func TestFeeder_Loop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "loop.wav")
	writeWAV(t, path, 1, make([]int, 100))
	r, err := LoadWAV(path)
	require.NoError(t, err)

	source := NewLiveSource()
	feeder := NewFeeder(r, NewAnalyzer(Config{SampleRate: 8000, FFTSize: 256}), source, nil, WithHopSize(100), WithLoop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feeder.Run(ctx) }()

	assert.Eventually(t, func() bool { return source.Published() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
