// Package mock provides a scripted implementation of the AudioFeatureSource interface.
// This is used for testing the engine without a live audio producer.
package mock

import (
	"sync"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// Source is a mock AudioFeatureSource.
// Snapshots are handed out one per TryGetLatest call in the order they were pushed.
// Once the script is exhausted it returns nil, or replays it when looping is enabled.
//
// Thread-safety: This implementation is thread-safe.
type Source struct {
	mu       sync.Mutex
	script   []*domain.AudioFeatureSnapshot
	next     int
	loop     bool
	calls    int
	served   int
	sequence uint64
}

// NewSource creates a mock source with an optional initial script.
func NewSource(snapshots ...*domain.AudioFeatureSnapshot) *Source {
	s := &Source{}
	s.Push(snapshots...)
	return s
}

// Push appends snapshots to the script. Snapshots without a FrameIndex
// are numbered in push order.
func (s *Source) Push(snapshots ...*domain.AudioFeatureSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		if snap.FrameIndex == 0 {
			snap.FrameIndex = s.sequence
		}
		s.sequence++
		s.script = append(s.script, snap)
	}
}

// PushBeats appends one snapshot per flag with the given beat values and
// spectrum and waveform lengths.
func (s *Source) PushBeats(spectrumLen, waveformLen int, beats ...bool) {
	snaps := make([]*domain.AudioFeatureSnapshot, len(beats))
	for i, beat := range beats {
		snap := domain.EmptySnapshot(spectrumLen, waveformLen)
		snap.Beat = beat
		snaps[i] = snap
	}
	s.Push(snaps...)
}

// SetLoop configures the source to replay the script after the last snapshot.
func (s *Source) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

// TryGetLatest returns the next scripted snapshot or nil.
func (s *Source) TryGetLatest() *domain.AudioFeatureSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.next >= len(s.script) {
		if !s.loop || len(s.script) == 0 {
			return nil
		}
		s.next = 0
	}
	snap := s.script[s.next]
	s.next++
	s.served++
	return snap
}

// Pending returns how many scripted snapshots have not been served yet.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script) - s.next
}

// Calls returns how many times TryGetLatest was called.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Served returns how many snapshots were handed out.
func (s *Source) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// Verify interface implementation
var _ ports.AudioFeatureSource = (*Source)(nil)
