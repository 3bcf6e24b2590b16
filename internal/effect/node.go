// Package effect contains the effect node contract, the chain that runs nodes
// over a shared framebuffer, the registry that builds nodes by type key, and
// the built-in nodes.
package effect

import (
	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/expr"
)

// Node is one visual transform stage of a chain.
//
// Lifecycle: Initialize is called when the node joins a chain and on every
// resize; Process is called once per frame while the node is enabled; Reset
// clears persistent state; Close releases it when the node leaves its chain.
// A node is owned by exactly one chain and is only called from the frame loop.
type Node interface {
	// ID returns the stable node id.
	ID() string

	// Type returns the registry type key.
	Type() string

	// DisplayName returns a human-readable name.
	DisplayName() string

	// Enabled reports whether the chain should process the node.
	Enabled() bool

	// SetEnabled turns processing on or off.
	SetEnabled(enabled bool)

	// Describe lists the parameters the node accepts.
	Describe() []domain.ParamSpec

	// Param returns the current value of a parameter, or its default.
	// The second result is false for undescribed keys.
	Param(key string) (domain.ParamValue, bool)

	// SetParam validates and stores a parameter value.
	// Unknown keys return domain.ErrUnknownParam; script parameters that do
	// not compile return a *domain.SyntaxError and keep the previous value.
	SetParam(key string, value domain.ParamValue) error

	// Initialize prepares per-size state. It is called on creation and on every resize.
	Initialize(width, height int) error

	// Process transforms fb in place.
	Process(fb *domain.Framebuffer, frame *Frame) error

	// Reset clears persistent state such as history buffers or offset tables.
	Reset()

	// Close releases the node's resources.
	Close() error
}

// Frame carries the per-frame inputs shared by every node of a chain.
type Frame struct {
	// Index is the engine frame counter
	Index uint64

	// Time is the engine clock in seconds
	Time float64

	// Delta is the time since the previous frame in seconds
	Delta float64

	// Snapshot is the audio analysis for this frame, never nil while the engine runs
	Snapshot *domain.AudioFeatureSnapshot

	// Env holds the frame globals; scripted nodes layer their own variables over it
	Env *expr.Env

	// Beat is true only on the rising edge of the snapshot's beat flag
	Beat bool

	// Bass, Mid and Treb are band energies after the sensitivity multiplier
	Bass float64
	Mid  float64
	Treb float64
}

// Vars returns the frame environment, creating an empty one when missing.
func (f *Frame) Vars() *expr.Env {
	if f.Env == nil {
		f.Env = expr.NewEnv()
	}
	return f.Env
}

// DeltaSeconds returns Delta, or one 60 Hz frame when Delta is not positive.
func (f *Frame) DeltaSeconds() float64 {
	if f.Delta <= 0 {
		return 1.0 / 60.0
	}
	return f.Delta
}

// Audio returns the snapshot, or a silent one when missing.
func (f *Frame) Audio() *domain.AudioFeatureSnapshot {
	if f.Snapshot == nil {
		f.Snapshot = domain.EmptySnapshot(0, 0)
	}
	return f.Snapshot
}
