// Package analysis turns PCM audio into AudioFeatureSnapshots on the producer
// side: spectrum, waveform, RMS, beat onsets and a tempo estimate.
package analysis

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"
	"github.com/mjibson/go-dsp/fft"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// Config controls Analyzer behavior.
type Config struct {
	// SampleRate of the mono input in Hz
	SampleRate float64

	// FFTSize is the analysis window length; the spectrum has FFTSize/2 bins
	FFTSize int

	// WaveformLen is the number of waveform samples per snapshot
	WaveformLen int

	// HistorySize is the number of analysis steps the beat detector averages over
	HistorySize int

	// BeatThreshold is the ratio of instant to average bass energy that counts as an onset
	BeatThreshold float64

	// MinBeatInterval is the shortest time between two onsets in seconds
	MinBeatInterval float64

	// BassCutoff is the upper edge of the beat detection band in Hz
	BassCutoff float64
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:      44_100,
		FFTSize:         1024,
		WaveformLen:     576,
		HistorySize:     43,
		BeatThreshold:   1.4,
		MinBeatInterval: 0.25,
		BassCutoff:      250,
	}
}

const (
	// minBeatEnergy ignores onsets in near silence
	minBeatEnergy = 1e-4
	// maxIntervals is the number of beat intervals the tempo estimate uses
	maxIntervals = 8
)

// Analyzer computes snapshots from consecutive blocks of mono samples.
// It keeps the last FFTSize samples, so blocks may be shorter than the window.
//
// Thread-safety: not safe for concurrent use; one producer goroutine owns it.
type Analyzer struct {
	cfg Config

	window  []float64
	winNorm float64
	ring    []float64
	frame   []float64
	re, im  []float64
	mags    []float64

	history   []float64
	lastBeat  float64
	intervals []float64

	clock float64
	index uint64
}

// NewAnalyzer creates an analyzer. Zero config fields take their defaults and
// FFTSize is rounded up to a power of two.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = def.FFTSize
	}
	cfg.FFTSize = nextPow2(cfg.FFTSize)
	if cfg.WaveformLen <= 0 {
		cfg.WaveformLen = def.WaveformLen
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.BeatThreshold <= 0 {
		cfg.BeatThreshold = def.BeatThreshold
	}
	if cfg.MinBeatInterval <= 0 {
		cfg.MinBeatInterval = def.MinBeatInterval
	}
	if cfg.BassCutoff <= 0 {
		cfg.BassCutoff = def.BassCutoff
	}

	n := cfg.FFTSize
	a := &Analyzer{
		cfg:      cfg,
		window:   make([]float64, n),
		ring:     make([]float64, n),
		frame:    make([]float64, n),
		re:       make([]float64, n/2),
		im:       make([]float64, n/2),
		mags:     make([]float64, n/2),
		history:  make([]float64, 0, cfg.HistorySize),
		lastBeat: math.Inf(-1),
	}
	for i := range a.window {
		a.window[i] = hann(float64(i), float64(n))
		a.winNorm += a.window[i]
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze appends samples to the analysis window and returns a new snapshot.
// The returned snapshot owns its slices.
func (a *Analyzer) Analyze(samples []float64) *domain.AudioFeatureSnapshot {
	a.push(samples)
	a.clock += float64(len(samples)) / a.cfg.SampleRate

	// Windowed real FFT
	copy(a.frame, a.ring)
	vecmath.MulBlockInPlace(a.frame, a.window)
	bins := fft.FFTReal(a.frame)
	half := len(a.mags)
	for i := 0; i < half; i++ {
		a.re[i] = real(bins[i])
		a.im[i] = imag(bins[i])
	}
	vecmath.Magnitude(a.mags, a.re, a.im)

	// A full-scale sine lands at 1.0 in its bin
	scale := 2 / a.winNorm
	spectrum := make([]float64, half)
	for i, m := range a.mags {
		spectrum[i] = clamp(m*scale, 0, 1)
	}

	snap := &domain.AudioFeatureSnapshot{
		Spectrum:    spectrum,
		Waveform:    a.waveform(),
		RMS:         rms(a.ring),
		TimeSeconds: a.clock,
		FrameIndex:  a.index,
	}
	a.index++

	snap.Beat = a.detectBeat(spectrum)
	snap.BPM = a.bpm()
	return snap
}

// Reset forgets the window contents, the beat history and the tempo estimate.
func (a *Analyzer) Reset() {
	for i := range a.ring {
		a.ring[i] = 0
	}
	a.history = a.history[:0]
	a.intervals = a.intervals[:0]
	a.lastBeat = math.Inf(-1)
	a.clock = 0
	a.index = 0
}

// push slides samples into the ring, oldest first.
func (a *Analyzer) push(samples []float64) {
	n := len(a.ring)
	if len(samples) >= n {
		copy(a.ring, samples[len(samples)-n:])
		return
	}
	copy(a.ring, a.ring[len(samples):])
	copy(a.ring[n-len(samples):], samples)
}

// waveform returns the newest WaveformLen samples clamped to -1..1.
func (a *Analyzer) waveform() []float64 {
	out := make([]float64, a.cfg.WaveformLen)
	src := a.ring
	if len(src) > len(out) {
		src = src[len(src)-len(out):]
	}
	offset := len(out) - len(src)
	for i, v := range src {
		out[offset+i] = clamp(v, -1, 1)
	}
	return out
}

// detectBeat compares the instant bass energy with its recent average.
func (a *Analyzer) detectBeat(spectrum []float64) bool {
	resolution := a.cfg.SampleRate / float64(a.cfg.FFTSize)
	hi := int(math.Ceil(a.cfg.BassCutoff / resolution))
	if hi < 2 {
		hi = 2
	}
	if hi > len(spectrum) {
		hi = len(spectrum)
	}

	var energy float64
	for _, v := range spectrum[1:hi] {
		energy += v * v
	}
	energy /= float64(hi - 1)

	avg := average(a.history)
	if len(a.history) == a.cfg.HistorySize {
		copy(a.history, a.history[1:])
		a.history = a.history[:len(a.history)-1]
	}
	a.history = append(a.history, energy)

	if energy < minBeatEnergy || energy <= avg*a.cfg.BeatThreshold {
		return false
	}
	if a.clock-a.lastBeat < a.cfg.MinBeatInterval {
		return false
	}

	if !math.IsInf(a.lastBeat, -1) {
		interval := a.clock - a.lastBeat
		// 30..240 BPM
		if interval >= 0.25 && interval <= 2 {
			if len(a.intervals) == maxIntervals {
				copy(a.intervals, a.intervals[1:])
				a.intervals = a.intervals[:maxIntervals-1]
			}
			a.intervals = append(a.intervals, interval)
		}
	}
	a.lastBeat = a.clock
	return true
}

// bpm returns the tempo of the median beat interval, 0 until two intervals are known.
func (a *Analyzer) bpm() float64 {
	if len(a.intervals) < 2 {
		return 0
	}
	sorted := append([]float64(nil), a.intervals...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + median) / 2
	}
	return math.Round(600/median) / 10
}

func hann(i, size float64) float64 {
	return 0.5 * (1.0 - math.Cos(2.0*math.Pi*i/size))
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
