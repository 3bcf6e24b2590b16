// Package ports define interfaces for dependency inversion.
// These interfaces keep the frame loop independent of audio capture and display frameworks.
package ports

import (
	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// AudioFeatureSource provides the most recent audio analysis to the frame loop.
// The producer runs on its own goroutine; the engine polls once per frame.
//
// Thread-safety: TryGetLatest is called from the frame loop while the producer
// publishes concurrently. Implementations must make the call non-blocking and
// lock-free (or only briefly locked).
type AudioFeatureSource interface {
	// TryGetLatest returns the newest snapshot published since the previous call,
	// or nil when nothing new is available. The engine then reuses the prior snapshot.
	//
	// The returned snapshot must not be modified by the producer afterwards.
	TryGetLatest() *domain.AudioFeatureSnapshot
}
