package preset

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/effect"
)

// scriptKeys are tried in order when a record carries a bare script.
var scriptKeys = []string{"point", "frame", "init"}

// Builder turns chain descriptions into chains.
type Builder struct {
	registry    *effect.Registry
	logger      *slog.Logger
	skipUnknown bool
	maxActive   int
	onFailure   effect.FailureHandler
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSkipUnknown makes the builder drop records of unregistered types
// instead of failing the whole description.
func WithSkipUnknown() BuilderOption {
	return func(b *Builder) {
		b.skipUnknown = true
	}
}

// WithMaxActiveNodes sets the limit used when a description has none.
func WithMaxActiveNodes(n int) BuilderOption {
	return func(b *Builder) {
		b.maxActive = n
	}
}

// WithFailureHandler installs a node failure callback on every built chain.
func WithFailureHandler(handler effect.FailureHandler) BuilderOption {
	return func(b *Builder) {
		b.onFailure = handler
	}
}

// NewBuilder creates a builder that instantiates nodes through registry.
func NewBuilder(registry *effect.Registry, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		registry: registry,
		logger:   logger.With(slog.String("component", "preset")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates a chain of the given size from desc.
//
// Unknown node types fail the build unless WithSkipUnknown is set. Parameter
// values that do not fit a node are logged and the node keeps its default,
// so garbage in old presets never prevents a chain from loading.
func (b *Builder) Build(desc *domain.ChainDescription, width, height int) (*effect.Chain, error) {
	if desc == nil {
		return nil, domain.NewPresetError("build", -1, "nil description", nil)
	}

	maxActive := desc.MaxActiveNodes
	if maxActive <= 0 {
		maxActive = b.maxActive
	}
	opts := []effect.ChainOption{
		effect.WithLogger(b.logger),
		effect.WithMaxActiveNodes(maxActive),
	}
	if b.onFailure != nil {
		opts = append(opts, effect.WithFailureHandler(b.onFailure))
	}
	chain := effect.NewChain(width, height, opts...)

	for i, rec := range desc.Nodes {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			id = uuid.NewString()
		}

		node, err := b.registry.Create(rec.Type, id)
		if err != nil {
			if b.skipUnknown && errors.Is(err, domain.ErrUnknownNodeType) {
				b.logger.Warn("skipping unknown node type",
					slog.Int("record", i),
					slog.String("node_type", rec.Type))
				continue
			}
			_ = chain.Close()
			return nil, domain.NewPresetError("build", i, err.Error(), err)
		}

		b.applyRecord(node, rec, i)

		if err := chain.AddNode(node); err != nil {
			_ = node.Close()
			_ = chain.Close()
			return nil, domain.NewPresetError("build", i, err.Error(), err)
		}
	}

	b.logger.Debug("chain built",
		slog.String("name", desc.Name),
		slog.Int("nodes", chain.Len()))
	return chain, nil
}

func (b *Builder) applyRecord(node effect.Node, rec domain.NodeRecord, index int) {
	node.SetEnabled(rec.IsEnabled())

	for key, value := range rec.Parameters {
		if err := node.SetParam(key, value); err != nil {
			b.logger.Warn("parameter rejected",
				slog.Int("record", index),
				slog.String("node_id", node.ID()),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	if rec.Script == "" {
		return
	}
	key := primaryScript(node)
	if key == "" {
		b.logger.Warn("node takes no script",
			slog.Int("record", index),
			slog.String("node_type", node.Type()))
		return
	}
	if err := node.SetParam(key, domain.ScriptParam(rec.Script)); err != nil {
		b.logger.Warn("script rejected",
			slog.Int("record", index),
			slog.String("node_id", node.ID()),
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// primaryScript returns the key a bare record script is stored under.
func primaryScript(node effect.Node) string {
	scripts := make(map[string]bool)
	first := ""
	for _, spec := range node.Describe() {
		if spec.Kind == domain.KindScript {
			scripts[spec.Key] = true
			if first == "" {
				first = spec.Key
			}
		}
	}
	for _, key := range scriptKeys {
		if scripts[key] {
			return key
		}
	}
	return first
}

// Describe captures the current nodes and parameter values of a chain.
// Parameters equal to their defaults are left out.
func Describe(name string, chain *effect.Chain) *domain.ChainDescription {
	desc := &domain.ChainDescription{Name: name}
	for _, node := range chain.Nodes() {
		rec := domain.NodeRecord{
			Type:       node.Type(),
			ID:         node.ID(),
			Parameters: make(map[string]domain.ParamValue),
		}
		if !node.Enabled() {
			disabled := false
			rec.Enabled = &disabled
		}
		for _, spec := range node.Describe() {
			v, ok := node.Param(spec.Key)
			if !ok || v == spec.Default {
				continue
			}
			rec.Parameters[spec.Key] = v
		}
		desc.Nodes = append(desc.Nodes, rec)
	}
	return desc
}

// MustBuild is Build for descriptions known to be valid, such as Default.
func (b *Builder) MustBuild(desc *domain.ChainDescription, width, height int) *effect.Chain {
	chain, err := b.Build(desc, width, height)
	if err != nil {
		panic(fmt.Sprintf("preset: %v", err))
	}
	return chain
}
