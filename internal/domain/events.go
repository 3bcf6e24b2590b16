// Package domain defines events for the event-driven architecture.
// Events are queued by the engine during a frame and published after the frame is presented.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Engine lifecycle events
	EventEngineStarted EventType = "engine.started"
	EventEngineStopped EventType = "engine.stopped"
	EventEngineFatal   EventType = "engine.fatal"
	EventEngineResized EventType = "engine.resized"

	// Frame events
	EventFramePresented EventType = "frame.presented"
	EventPerfUpdated    EventType = "perf.updated"

	// Audio events
	EventBeatDetected EventType = "beat.detected"

	// Chain events
	EventNodeFailed    EventType = "node.failed"
	EventChainSwapped  EventType = "chain.swapped"
	EventParamRejected EventType = "param.rejected"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// EngineStartedEvent is published when the frame loop begins running.
type EngineStartedEvent struct {
	baseEvent
	Width      int
	Height     int
	TargetRate float64
}

// Type returns the event type.
func (e EngineStartedEvent) Type() EventType {
	return EventEngineStarted
}

// NewEngineStartedEvent creates a new EngineStartedEvent.
func NewEngineStartedEvent(width, height int, targetRate float64) EngineStartedEvent {
	return EngineStartedEvent{
		baseEvent:  newBaseEvent(),
		Width:      width,
		Height:     height,
		TargetRate: targetRate,
	}
}

// EngineStoppedEvent is published when the frame loop has exited.
type EngineStoppedEvent struct {
	baseEvent
	Frames uint64
	Err    error // Non-nil when the loop stopped on a fatal error
}

// Type returns the event type.
func (e EngineStoppedEvent) Type() EventType {
	return EventEngineStopped
}

// NewEngineStoppedEvent creates a new EngineStoppedEvent.
func NewEngineStoppedEvent(frames uint64, err error) EngineStoppedEvent {
	return EngineStoppedEvent{
		baseEvent: newBaseEvent(),
		Frames:    frames,
		Err:       err,
	}
}

// EngineFatalEvent is published when the engine stops on a FatalEngineError.
type EngineFatalEvent struct {
	baseEvent
	Err        *FatalEngineError
	FrameIndex uint64
}

// Type returns the event type.
func (e EngineFatalEvent) Type() EventType {
	return EventEngineFatal
}

// NewEngineFatalEvent creates a new EngineFatalEvent.
func NewEngineFatalEvent(err *FatalEngineError, frame uint64) EngineFatalEvent {
	return EngineFatalEvent{
		baseEvent:  newBaseEvent(),
		Err:        err,
		FrameIndex: frame,
	}
}

// EngineResizedEvent is published after a resize reached every node.
type EngineResizedEvent struct {
	baseEvent
	Width  int
	Height int
}

// Type returns the event type.
func (e EngineResizedEvent) Type() EventType {
	return EventEngineResized
}

// NewEngineResizedEvent creates a new EngineResizedEvent.
func NewEngineResizedEvent(width, height int) EngineResizedEvent {
	return EngineResizedEvent{
		baseEvent: newBaseEvent(),
		Width:     width,
		Height:    height,
	}
}

// FramePresentedEvent is published after the sink accepted a frame.
// The engine only builds it when somebody subscribed.
type FramePresentedEvent struct {
	baseEvent
	Info FrameInfo
}

// Type returns the event type.
func (e FramePresentedEvent) Type() EventType {
	return EventFramePresented
}

// NewFramePresentedEvent creates a new FramePresentedEvent.
func NewFramePresentedEvent(info FrameInfo) FramePresentedEvent {
	return FramePresentedEvent{
		baseEvent: newBaseEvent(),
		Info:      info,
	}
}

// PerfUpdatedEvent carries a periodic copy of the engine statistics.
type PerfUpdatedEvent struct {
	baseEvent
	Stats PerfStats
}

// Type returns the event type.
func (e PerfUpdatedEvent) Type() EventType {
	return EventPerfUpdated
}

// NewPerfUpdatedEvent creates a new PerfUpdatedEvent.
func NewPerfUpdatedEvent(stats PerfStats) PerfUpdatedEvent {
	return PerfUpdatedEvent{
		baseEvent: newBaseEvent(),
		Stats:     stats,
	}
}

// BeatDetectedEvent is published on the rising edge of the beat flag.
type BeatDetectedEvent struct {
	baseEvent
	FrameIndex uint64
	BPM        float64
}

// Type returns the event type.
func (e BeatDetectedEvent) Type() EventType {
	return EventBeatDetected
}

// NewBeatDetectedEvent creates a new BeatDetectedEvent.
func NewBeatDetectedEvent(frame uint64, bpm float64) BeatDetectedEvent {
	return BeatDetectedEvent{
		baseEvent:  newBaseEvent(),
		FrameIndex: frame,
		BPM:        bpm,
	}
}

// NodeFailedEvent is published when a node failed and was skipped for one frame.
type NodeFailedEvent struct {
	baseEvent
	Err *NodeProcessingError
}

// Type returns the event type.
func (e NodeFailedEvent) Type() EventType {
	return EventNodeFailed
}

// NewNodeFailedEvent creates a new NodeFailedEvent.
func NewNodeFailedEvent(err *NodeProcessingError) NodeFailedEvent {
	return NodeFailedEvent{
		baseEvent: newBaseEvent(),
		Err:       err,
	}
}

// ChainSwappedEvent is published when a new chain took effect at a frame boundary.
type ChainSwappedEvent struct {
	baseEvent
	NodeCount  int
	FrameIndex uint64
}

// Type returns the event type.
func (e ChainSwappedEvent) Type() EventType {
	return EventChainSwapped
}

// NewChainSwappedEvent creates a new ChainSwappedEvent.
func NewChainSwappedEvent(nodes int, frame uint64) ChainSwappedEvent {
	return ChainSwappedEvent{
		baseEvent:  newBaseEvent(),
		NodeCount:  nodes,
		FrameIndex: frame,
	}
}

// ParamRejectedEvent is published when a queued parameter edit could not be applied.
type ParamRejectedEvent struct {
	baseEvent
	NodeID string
	Key    string
	Err    error
}

// Type returns the event type.
func (e ParamRejectedEvent) Type() EventType {
	return EventParamRejected
}

// NewParamRejectedEvent creates a new ParamRejectedEvent.
func NewParamRejectedEvent(nodeID, key string, err error) ParamRejectedEvent {
	return ParamRejectedEvent{
		baseEvent: newBaseEvent(),
		NodeID:    nodeID,
		Key:       key,
		Err:       err,
	}
}
