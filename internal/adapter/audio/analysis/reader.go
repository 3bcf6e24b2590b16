package analysis

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCMReader yields mono samples in -1..1.
type PCMReader interface {
	// ReadSamples fills dst and returns the number of samples written.
	// It returns io.EOF once no samples are left.
	ReadSamples(dst []float64) (int, error)

	// SampleRate returns the sample rate in Hz.
	SampleRate() float64
}

// Rewinder is implemented by readers that can restart from the beginning.
type Rewinder interface {
	Rewind() error
}

// WAVReader serves the decoded samples of a WAV file, downmixed to mono.
type WAVReader struct {
	samples    []float64
	sampleRate float64
	pos        int
}

// LoadWAV decodes a whole WAV file into memory.
func LoadWAV(path string) (*WAVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV decodes WAV data from r.
func DecodeWAV(r io.ReadSeeker) (*WAVReader, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		return nil, errors.New("unknown bit depth for WAV file")
	}
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}

	return &WAVReader{
		samples:    downmix(buf, channels, math.Pow(2, float64(bitDepth-1))),
		sampleRate: float64(decoder.SampleRate),
	}, nil
}

func downmix(buf *audio.IntBuffer, channels int, factor float64) []float64 {
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = clamp(sum/float64(channels)/factor, -1, 1)
	}
	return out
}

// ReadSamples copies the next samples into dst.
func (r *WAVReader) ReadSamples(dst []float64) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, io.EOF
	}
	n := copy(dst, r.samples[r.pos:])
	r.pos += n
	return n, nil
}

// SampleRate returns the file sample rate.
func (r *WAVReader) SampleRate() float64 {
	return r.sampleRate
}

// Len returns the number of mono samples.
func (r *WAVReader) Len() int {
	return len(r.samples)
}

// Rewind restarts from the first sample.
func (r *WAVReader) Rewind() error {
	r.pos = 0
	return nil
}

// SynthReader generates a quiet tone with a bass kick on every beat.
// It never runs out of samples.
type SynthReader struct {
	sampleRate float64
	bpm        float64
	tone       float64
	toneLevel  float64
	pos        int
}

// NewSynthReader creates a generator with the given tempo. A tone of 0 Hz disables the tone.
func NewSynthReader(sampleRate, bpm, tone float64) *SynthReader {
	if sampleRate <= 0 {
		sampleRate = 44_100
	}
	return &SynthReader{
		sampleRate: sampleRate,
		bpm:        bpm,
		tone:       tone,
		toneLevel:  0.1,
	}
}

// ReadSamples fills dst completely.
func (s *SynthReader) ReadSamples(dst []float64) (int, error) {
	period := 0
	if s.bpm > 0 {
		period = int(math.Round(s.sampleRate * 60 / s.bpm))
	}
	for i := range dst {
		t := float64(s.pos) / s.sampleRate
		var v float64
		if s.tone > 0 {
			v = s.toneLevel * math.Sin(2*math.Pi*s.tone*t)
		}
		if period > 0 {
			kt := float64(s.pos%period) / s.sampleRate
			v += 0.9 * math.Exp(-kt*30) * math.Sin(2*math.Pi*60*kt)
		}
		dst[i] = clamp(v, -1, 1)
		s.pos++
	}
	return len(dst), nil
}

// SampleRate returns the generator sample rate.
func (s *SynthReader) SampleRate() float64 {
	return s.sampleRate
}

// Rewind restarts the generator at time 0.
func (s *SynthReader) Rewind() error {
	s.pos = 0
	return nil
}
