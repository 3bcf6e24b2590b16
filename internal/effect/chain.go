package effect

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// FailureHandler is told about every contained node failure.
// It runs on the frame loop and must return quickly.
type FailureHandler func(err *domain.NodeProcessingError)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the chain logger.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger.With(slog.String("component", "chain"))
		}
	}
}

// WithMaxActiveNodes limits how many enabled nodes run per frame. 0 means no limit.
func WithMaxActiveNodes(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxActive = n
		}
	}
}

// WithFailureHandler registers a callback for contained node failures.
func WithFailureHandler(handler FailureHandler) ChainOption {
	return func(c *Chain) {
		c.onFailure = handler
	}
}

// Chain is an ordered list of nodes applied to one framebuffer in place.
// Insertion order is processing order. All methods are safe for concurrent
// use; structural changes wait for the frame in flight to finish.
type Chain struct {
	mu        sync.Mutex
	nodes     []Node
	width     int
	height    int
	maxActive int
	failures  uint64
	onFailure FailureHandler
	logger    *slog.Logger

	backup domain.Framebuffer
}

// NewChain creates an empty chain. A zero size defers node initialization
// until the first Resize.
func NewChain(width, height int, opts ...ChainOption) *Chain {
	c := &Chain{
		width:  width,
		height: height,
		logger: slog.Default().With(slog.String("component", "chain")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddNode appends a node and initializes it with the current size.
func (c *Chain) AddNode(node Node) error {
	if node == nil {
		return domain.ErrNilNode
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(node.ID()) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateNode, node.ID())
	}
	if c.width > 0 && c.height > 0 {
		if err := node.Initialize(c.width, c.height); err != nil {
			return fmt.Errorf("initialize %s: %w", node.ID(), err)
		}
	}
	c.nodes = append(c.nodes, node)
	return nil
}

// RemoveNode removes a node by id and releases its state.
func (c *Chain) RemoveNode(id string) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	node := c.nodes[i]
	c.nodes = append(c.nodes[:i:i], c.nodes[i+1:]...)
	c.mu.Unlock()

	if err := node.Close(); err != nil {
		return fmt.Errorf("close %s: %w", id, err)
	}
	return nil
}

// MoveNode moves a node to a new position. The index is clamped into range.
func (c *Chain) MoveNode(id string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	node := c.nodes[i]
	rest := append(c.nodes[:i:i], c.nodes[i+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}

	nodes := make([]Node, 0, len(c.nodes))
	nodes = append(nodes, rest[:index]...)
	nodes = append(nodes, node)
	nodes = append(nodes, rest[index:]...)
	c.nodes = nodes
	return nil
}

// Node returns a node by id.
func (c *Chain) Node(id string) (Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.nodes[i], true
	}
	return nil, false
}

// Nodes returns the nodes in processing order.
func (c *Chain) Nodes() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Len returns the number of nodes.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// SetParam changes a parameter of one node.
func (c *Chain) SetParam(id, key string, value domain.ParamValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return c.nodes[i].SetParam(key, value)
}

// SetEnabled turns one node on or off.
func (c *Chain) SetEnabled(id string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	c.nodes[i].SetEnabled(enabled)
	return nil
}

// SetMaxActiveNodes changes the per-frame node limit. 0 means no limit.
func (c *Chain) SetMaxActiveNodes(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	c.maxActive = n
}

// SetFailureHandler replaces the failure callback.
func (c *Chain) SetFailureHandler(handler FailureHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailure = handler
}

// Size returns the dimensions nodes were last initialized with.
func (c *Chain) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Failures returns the number of contained node failures.
func (c *Chain) Failures() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Resize initializes every node exactly once with the new size.
// The framebuffer itself belongs to the caller.
func (c *Chain) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.width = width
	c.height = height
	c.backup = domain.Framebuffer{}

	var errs []error
	for _, node := range c.nodes {
		if err := node.Initialize(width, height); err != nil {
			errs = append(errs, fmt.Errorf("initialize %s: %w", node.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Reset clears the persistent state of every node.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, node := range c.nodes {
		node.Reset()
	}
}

// Close releases every node and empties the chain.
func (c *Chain) Close() error {
	c.mu.Lock()
	nodes := c.nodes
	c.nodes = nil
	c.mu.Unlock()

	var errs []error
	for _, node := range nodes {
		if err := node.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", node.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Apply runs every enabled node over fb in order. A node that returns an
// error, panics or breaks the framebuffer size is contained: the framebuffer
// is restored to its state before that node and the next node continues.
// The failing node is tried again on the next frame.
func (c *Chain) Apply(fb *domain.Framebuffer, frame *Frame) {
	if fb == nil || frame == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	active := 0
	for _, node := range c.nodes {
		if !node.Enabled() {
			continue
		}
		if c.maxActive > 0 && active >= c.maxActive {
			break
		}
		active++

		c.backup.CopyFrom(fb)
		if perr := c.run(node, fb, frame); perr != nil {
			fb.Width = c.backup.Width
			fb.Height = c.backup.Height
			if len(fb.Pix) != len(c.backup.Pix) {
				fb.Pix = make([]uint8, len(c.backup.Pix))
			}
			copy(fb.Pix, c.backup.Pix)

			c.failures++
			c.logger.Warn("node failed",
				slog.String("node_id", perr.NodeID),
				slog.String("node_type", perr.NodeType),
				slog.Uint64("frame", perr.FrameIndex),
				slog.Bool("panic", perr.Panic),
				slog.String("error", perr.Err.Error()),
			)
			if c.onFailure != nil {
				c.onFailure(perr)
			}
		}
	}
}

// run processes one node and converts errors, panics and size violations.
func (c *Chain) run(node Node, fb *domain.Framebuffer, frame *Frame) (perr *domain.NodeProcessingError) {
	defer func() {
		if r := recover(); r != nil {
			perr = domain.NewNodeProcessingError(node.ID(), node.Type(), frame.Index, true, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := node.Process(fb, frame); err != nil {
		return domain.NewNodeProcessingError(node.ID(), node.Type(), frame.Index, false, err)
	}
	if fb.Width != c.backup.Width || fb.Height != c.backup.Height || len(fb.Pix) != len(c.backup.Pix) {
		return domain.NewNodeProcessingError(node.ID(), node.Type(), frame.Index, false,
			fmt.Errorf("%w: node changed framebuffer to %dx%d", domain.ErrInvalidDimensions, fb.Width, fb.Height))
	}
	return nil
}

func (c *Chain) indexOf(id string) int {
	for i, node := range c.nodes {
		if strings.EqualFold(node.ID(), id) {
			return i
		}
	}
	return -1
}
