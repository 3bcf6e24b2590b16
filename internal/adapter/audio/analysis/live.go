package analysis

import (
	"sync/atomic"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// LiveSource is a latest-value slot between an audio producer and the frame loop.
// Publish never blocks and TryGetLatest is a pair of atomic loads.
//
// A beat published between two engine polls is carried onto the next
// snapshot, so a faster producer cannot hide an onset from the engine.
type LiveSource struct {
	latest   atomic.Pointer[domain.AudioFeatureSnapshot]
	consumed atomic.Pointer[domain.AudioFeatureSnapshot]

	published atomic.Uint64
}

// NewLiveSource creates an empty source.
func NewLiveSource() *LiveSource {
	return &LiveSource{}
}

// Publish makes snap the latest snapshot. The caller must not modify it afterwards.
func (s *LiveSource) Publish(snap *domain.AudioFeatureSnapshot) {
	if snap == nil {
		return
	}
	if prev := s.latest.Load(); prev != nil && prev != s.consumed.Load() && prev.Beat && !snap.Beat {
		carried := *snap
		carried.Beat = true
		snap = &carried
	}
	s.latest.Store(snap)
	s.published.Add(1)
}

// TryGetLatest returns the newest snapshot, or nil when it was already returned.
func (s *LiveSource) TryGetLatest() *domain.AudioFeatureSnapshot {
	snap := s.latest.Load()
	if snap == nil || snap == s.consumed.Load() {
		return nil
	}
	s.consumed.Store(snap)
	return snap
}

// Published returns how many snapshots were published.
func (s *LiveSource) Published() uint64 {
	return s.published.Load()
}

// Verify interface implementation
var _ ports.AudioFeatureSource = (*LiveSource)(nil)
