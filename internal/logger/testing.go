// Package logger provides test helpers for structured logging.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// NewTestLogger creates a logger for tests.
// By default, uses WARN level to keep test output quiet.
// Set TEST_DEBUG environment variable to enable debug logging in tests.
func NewTestLogger() *slog.Logger {
	level := slog.LevelWarn // Quiet by default

	// Allow tests to enable debug logging
	if os.Getenv("TEST_DEBUG") != "" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// Recorder is a slog.Handler that keeps every record for assertions.
type Recorder struct {
	mu      *sync.Mutex
	records *[]slog.Record
	attrs   []slog.Attr
}

// NewRecorder returns a logger backed by a Recorder.
func NewRecorder() (*slog.Logger, *Recorder) {
	r := &Recorder{mu: &sync.Mutex{}, records: &[]slog.Record{}}
	return slog.New(r), r
}

// Enabled accepts every level.
func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle stores the record together with attributes bound through With.
func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	rec = rec.Clone()
	rec.AddAttrs(r.attrs...)
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, rec)
	return nil
}

// WithAttrs returns a handler sharing the same storage.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, r.attrs...), attrs...)
	return &Recorder{mu: r.mu, records: r.records, attrs: merged}
}

// WithGroup is not used by this project; groups are flattened.
func (r *Recorder) WithGroup(string) slog.Handler {
	return r
}

// Count returns how many records carry the given message.
func (r *Recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range *r.records {
		if rec.Message == msg {
			n++
		}
	}
	return n
}

// Attr returns the value of key on the i-th record with the given message.
func (r *Recorder) Attr(msg string, i int, key string) (slog.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range *r.records {
		if rec.Message != msg {
			continue
		}
		if i > 0 {
			i--
			continue
		}
		var (
			val   slog.Value
			found bool
		)
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				val, found = a.Value, true
				return false
			}
			return true
		})
		return val, found
	}
	return slog.Value{}, false
}
