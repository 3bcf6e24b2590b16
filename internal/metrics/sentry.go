// Package metrics reports engine failures to Sentry.
package metrics

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

const defaultFlushTimeout = 2 * time.Second

// SentryConfig configures the Sentry reporter.
type SentryConfig struct {
	DSN          string
	Environment  string
	Release      string
	FlushTimeout time.Duration
}

// SentryReporter turns engine events into Sentry breadcrumbs and exceptions.
// Node failures become breadcrumbs; a fatal engine error is captured together
// with the breadcrumbs that led to it.
//
// The reporter owns its own hub and never touches the global Sentry hub.
type SentryReporter struct {
	logger  *slog.Logger
	hub     *sentry.Hub
	bus     ports.EventBus
	timeout time.Duration

	mu   sync.Mutex
	subs []domain.SubscriptionID
}

// NewSentryReporter creates a reporter subscribed to bus.
// An empty DSN returns a disabled reporter whose methods do nothing.
func NewSentryReporter(cfg SentryConfig, bus ports.EventBus, logger *slog.Logger) (*SentryReporter, error) {
	if cfg.DSN == "" {
		return newSentryReporter(nil, cfg, bus, logger), nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize sentry: %w", err)
	}
	return newSentryReporter(client, cfg, bus, logger), nil
}

func newSentryReporter(client *sentry.Client, cfg SentryConfig, bus ports.EventBus, logger *slog.Logger) *SentryReporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &SentryReporter{
		logger:  logger.With(slog.String("component", "sentry")),
		bus:     bus,
		timeout: cfg.FlushTimeout,
	}
	if r.timeout <= 0 {
		r.timeout = defaultFlushTimeout
	}
	if client == nil {
		r.logger.Debug("sentry not configured")
		return r
	}

	r.hub = sentry.NewHub(client, sentry.NewScope())
	r.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "avscore")
	})
	if bus != nil {
		r.subs = append(r.subs,
			bus.Subscribe(domain.EventNodeFailed, r.onNodeFailed),
			bus.Subscribe(domain.EventChainSwapped, r.onChainSwapped),
			bus.Subscribe(domain.EventEngineFatal, r.onFatal),
		)
	}
	r.logger.Info("sentry initialized",
		slog.String("environment", cfg.Environment),
		slog.String("release", cfg.Release))
	return r
}

// Enabled reports whether events are sent anywhere.
func (r *SentryReporter) Enabled() bool {
	return r.hub != nil
}

func (r *SentryReporter) onNodeFailed(event domain.Event) {
	failure := event.(domain.NodeFailedEvent).Err
	level := sentry.LevelWarning
	if failure.Panic {
		level = sentry.LevelError
	}
	r.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "node",
		Message:  failure.Error(),
		Level:    level,
		Data: map[string]interface{}{
			"node_id":   failure.NodeID,
			"node_type": failure.NodeType,
			"frame":     failure.FrameIndex,
		},
	}, nil)
}

func (r *SentryReporter) onChainSwapped(event domain.Event) {
	swapped := event.(domain.ChainSwappedEvent)
	r.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "chain",
		Message:  fmt.Sprintf("chain swapped: %d nodes", swapped.NodeCount),
		Level:    sentry.LevelInfo,
		Data:     map[string]interface{}{"frame": swapped.FrameIndex},
	}, nil)
}

func (r *SentryReporter) onFatal(event domain.Event) {
	fatal := event.(domain.EngineFatalEvent)
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("op", fatal.Err.Op)
		scope.SetContext("engine", sentry.Context{"frame": fatal.FrameIndex})
		r.hub.CaptureException(fatal.Err)
	})
}

// Flush waits for queued events to be sent.
func (r *SentryReporter) Flush() bool {
	if r.hub == nil {
		return true
	}
	return r.hub.Flush(r.timeout)
}

// Close unsubscribes from the bus and flushes pending events.
func (r *SentryReporter) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	if r.bus != nil {
		for _, id := range subs {
			r.bus.Unsubscribe(id)
		}
	}
	if !r.Flush() {
		r.logger.Warn("sentry flush timed out", slog.Duration("timeout", r.timeout))
	}
	return nil
}
