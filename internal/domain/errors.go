// Package domain defines domain-specific errors.
// These errors represent effect and engine failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that chains, nodes and the engine can return.
var (
	// ErrNodeNotFound is returned when a node id is not present in a chain.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when a node with the same id is already in a chain.
	ErrDuplicateNode = errors.New("node already exists in chain")

	// ErrUnknownNodeType is returned when a registry has no factory for a type key.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrDuplicateNodeType is returned when a type key is registered twice.
	ErrDuplicateNodeType = errors.New("node type already registered")

	// ErrUnknownParam is returned when a parameter key is not described by a node.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrInvalidDimensions is returned when a width or height is not positive.
	ErrInvalidDimensions = errors.New("invalid framebuffer dimensions")

	// ErrQueueFull is returned when a frame-boundary queue cannot accept more edits.
	ErrQueueFull = errors.New("edit queue is full")

	// ErrResourceExhausted is returned by collaborators that can no longer operate.
	// The engine treats it as fatal.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrEngineRunning is returned for operations that require a stopped engine.
	ErrEngineRunning = errors.New("engine is running")

	// ErrEngineStopped is returned when the engine is not running.
	ErrEngineStopped = errors.New("engine is not running")

	// ErrSinkClosed is returned by a frame sink that no longer accepts frames.
	ErrSinkClosed = errors.New("frame sink closed")

	// ErrNilNode is returned when a nil node is added to a chain.
	ErrNilNode = errors.New("nil node")
)

// SyntaxError is returned when an expression script cannot be compiled.
type SyntaxError struct {
	Position int    // Byte offset in the source where the problem was found
	Message  string // Description of the problem
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Message)
}

// NewSyntaxError creates a new SyntaxError.
func NewSyntaxError(position int, message string) *SyntaxError {
	return &SyntaxError{
		Position: position,
		Message:  message,
	}
}

// NodeProcessingError describes a node that failed while processing a frame.
// The chain contains it; the rest of the frame continues.
type NodeProcessingError struct {
	NodeID     string // Id of the failing node
	NodeType   string // Registry type key of the failing node
	FrameIndex uint64 // Frame on which the failure happened
	Panic      bool   // True when the failure was a recovered panic
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *NodeProcessingError) Error() string {
	kind := "failed"
	if e.Panic {
		kind = "panicked"
	}
	return fmt.Sprintf("node %s (%s) %s on frame %d: %v", e.NodeID, e.NodeType, kind, e.FrameIndex, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeProcessingError) Unwrap() error {
	return e.Err
}

// NewNodeProcessingError creates a new NodeProcessingError.
func NewNodeProcessingError(nodeID, nodeType string, frame uint64, panicked bool, err error) *NodeProcessingError {
	return &NodeProcessingError{
		NodeID:     nodeID,
		NodeType:   nodeType,
		FrameIndex: frame,
		Panic:      panicked,
		Err:        err,
	}
}

// FatalEngineError stops the engine.
type FatalEngineError struct {
	Op      string // Stage that failed (e.g., "start", "present", "apply")
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *FatalEngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal engine error in %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("fatal engine error in %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *FatalEngineError) Unwrap() error {
	return e.Err
}

// NewFatalEngineError creates a new FatalEngineError.
func NewFatalEngineError(op, message string, err error) *FatalEngineError {
	return &FatalEngineError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string      // Field that failed validation
	Value   interface{} // Value that failed validation
	Message string      // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// PresetError represents a failure to build a chain from a description.
type PresetError struct {
	Op      string // Operation that failed (e.g., "decode", "build")
	Index   int    // Record index, -1 when not record-specific
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *PresetError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("preset %s failed at record %d: %s", e.Op, e.Index, e.Message)
	}
	return fmt.Sprintf("preset %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *PresetError) Unwrap() error {
	return e.Err
}

// NewPresetError creates a new PresetError.
func NewPresetError(op string, index int, message string, err error) *PresetError {
	return &PresetError{
		Op:      op,
		Index:   index,
		Message: message,
		Err:     err,
	}
}
