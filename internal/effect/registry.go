package effect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// Options are the construction-time settings handed to every factory.
type Options struct {
	// EdgeMode is the default edge mode of spatial nodes
	EdgeMode domain.EdgeMode

	// Seed feeds the pseudo-random generators of stochastic nodes
	Seed int64
}

// Factory creates a node with the given id.
type Factory func(id string, opts Options) Node

// Registration describes one node type.
type Registration struct {
	Type        string
	DisplayName string
	Description string
	New         Factory
}

var (
	errEmptyType  = errors.New("node type must not be empty")
	errNilFactory = errors.New("node factory must not be nil")
)

// Registry maps node type keys to factories. It is built once at startup and
// passed to whatever needs to instantiate nodes by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
	opts    Options
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultEdgeMode sets the edge mode handed to new spatial nodes.
func WithDefaultEdgeMode(mode domain.EdgeMode) RegistryOption {
	return func(r *Registry) {
		r.opts.EdgeMode = mode
	}
}

// WithSeed sets the seed handed to stochastic nodes.
func WithSeed(seed int64) RegistryOption {
	return func(r *Registry) {
		r.opts.Seed = seed
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]Registration),
		opts:    Options{EdgeMode: domain.EdgeClamp, Seed: 1},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a node type. Type keys are case-insensitive.
func (r *Registry) Register(reg Registration) error {
	key := strings.ToLower(strings.TrimSpace(reg.Type))
	if key == "" {
		return errEmptyType
	}
	if reg.New == nil {
		return errNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateNodeType, key)
	}
	reg.Type = key
	if reg.DisplayName == "" {
		reg.DisplayName = key
	}
	r.entries[key] = reg
	return nil
}

// MustRegister adds a node type and panics on error.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic("effect registry: " + err.Error())
	}
}

// Lookup returns the registration for a type key.
func (r *Registry) Lookup(nodeType string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[strings.ToLower(strings.TrimSpace(nodeType))]
	return reg, ok
}

// Create builds a node of the given type.
func (r *Registry) Create(nodeType, id string) (Node, error) {
	reg, ok := r.Lookup(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownNodeType, nodeType)
	}

	r.mu.RLock()
	opts := r.opts
	r.mu.RUnlock()

	node := reg.New(id, opts)
	if node == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", domain.ErrNilNode, reg.Type)
	}
	return node, nil
}

// Types returns the registered type keys in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for key := range r.entries {
		types = append(types, key)
	}
	sort.Strings(types)
	return types
}

// Options returns the construction options handed to factories.
func (r *Registry) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// NewDefaultRegistry returns a registry holding every built-in node.
func NewDefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	r.MustRegister(Registration{Type: TypeBlur, DisplayName: "Blur", Description: "Box or Gaussian blur", New: func(id string, o Options) Node { return NewBlurNode(id, o) }})
	r.MustRegister(Registration{Type: TypeShift, DisplayName: "Dynamic Shift", Description: "Scripted per-point displacement", New: func(id string, o Options) Node { return NewShiftNode(id, o) }})
	r.MustRegister(Registration{Type: TypeScatter, DisplayName: "Scatter", Description: "Temporally coherent pixel jitter", New: func(id string, o Options) Node { return NewScatterNode(id, o) }})
	r.MustRegister(Registration{Type: TypeBump, DisplayName: "Bump Map", Description: "Luminance height field lighting", New: func(id string, o Options) Node { return NewBumpNode(id, o) }})
	r.MustRegister(Registration{Type: TypeColorFade, DisplayName: "Color Fade", Description: "Fade toward a target color", New: func(id string, o Options) Node { return NewColorFadeNode(id, o) }})
	r.MustRegister(Registration{Type: TypeDistance, DisplayName: "Distance Modifier", Description: "Distance-driven brightness, hue, saturation or displacement", New: func(id string, o Options) Node { return NewDistanceNode(id, o) }})
	r.MustRegister(Registration{Type: TypeSuperscope, DisplayName: "Superscope", Description: "Scripted points and lines", New: func(id string, o Options) Node { return NewSuperscopeNode(id, o) }})
	r.MustRegister(Registration{Type: TypePlasma, DisplayName: "Plasma", Description: "Audio-reactive plasma generator", New: func(id string, o Options) Node { return NewPlasmaNode(id, o) }})
	r.MustRegister(Registration{Type: TypeStarfield, DisplayName: "Starfield", Description: "Audio-reactive starfield generator", New: func(id string, o Options) Node { return NewStarfieldNode(id, o) }})
	r.MustRegister(Registration{Type: TypeSimple, DisplayName: "Simple", Description: "Spectrum bars or oscilloscope", New: func(id string, o Options) Node { return NewSimpleNode(id, o) }})
	return r
}
