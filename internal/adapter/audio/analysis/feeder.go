package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Feeder reads PCM in real time, analyzes it and publishes the snapshots.
type Feeder struct {
	reader   PCMReader
	analyzer *Analyzer
	source   *LiveSource
	logger   *slog.Logger

	hop  int
	loop bool
}

// FeederOption configures a Feeder.
type FeederOption func(*Feeder)

// WithLoop rewinds readers that support it when they run out of samples.
func WithLoop() FeederOption {
	return func(f *Feeder) {
		f.loop = true
	}
}

// WithHopSize sets the number of samples analyzed per step.
func WithHopSize(samples int) FeederOption {
	return func(f *Feeder) {
		if samples > 0 {
			f.hop = samples
		}
	}
}

// NewFeeder creates a feeder. The default hop is one 60 Hz frame of samples.
func NewFeeder(reader PCMReader, analyzer *Analyzer, source *LiveSource, logger *slog.Logger, opts ...FeederOption) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feeder{
		reader:   reader,
		analyzer: analyzer,
		source:   source,
		logger:   logger.With(slog.String("component", "audio_feeder")),
		hop:      int(reader.SampleRate() / 60),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.hop <= 0 {
		f.hop = 735
	}
	return f
}

// Run publishes one snapshot per hop until ctx is cancelled or the reader is
// exhausted. It returns nil on cancellation and at the end of the input.
func (f *Feeder) Run(ctx context.Context) error {
	interval := time.Duration(float64(f.hop) / f.reader.SampleRate() * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]float64, f.hop)
	f.logger.Debug("audio feeder started",
		slog.Int("hop", f.hop),
		slog.Duration("interval", interval))

	for {
		n, err := f.reader.ReadSamples(buf)
		if n > 0 {
			f.source.Publish(f.analyzer.Analyze(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			rw, ok := f.reader.(Rewinder)
			if !f.loop || !ok {
				f.logger.Debug("audio input exhausted")
				return nil
			}
			if err := rw.Rewind(); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
