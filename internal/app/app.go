// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/tejashwikalptaru/avscore/internal/adapter/audio/analysis"
	"github.com/tejashwikalptaru/avscore/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/avscore/internal/adapter/repository/memory"
	fynesink "github.com/tejashwikalptaru/avscore/internal/adapter/sink/fyne"
	sinkmemory "github.com/tejashwikalptaru/avscore/internal/adapter/sink/memory"
	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/effect"
	"github.com/tejashwikalptaru/avscore/internal/logger"
	"github.com/tejashwikalptaru/avscore/internal/metrics"
	"github.com/tejashwikalptaru/avscore/internal/ports"
	"github.com/tejashwikalptaru/avscore/internal/preset"
	"github.com/tejashwikalptaru/avscore/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for main.go
type Application struct {
	// Core dependencies
	config  Config
	logger  *slog.Logger
	fyneApp fyne.App

	// Infrastructure
	eventBus *eventbus.SyncEventBus
	reporter *metrics.SentryReporter

	// Chain construction
	registry *effect.Registry
	builder  *preset.Builder
	presets  ports.PresetRepository

	// Audio
	source *analysis.LiveSource
	feeder *analysis.Feeder

	// Output: exactly one of recorder and window is set
	recorder *sinkmemory.Recorder
	window   *fynesink.Window

	engine *service.ExecutionEngine

	shutdownOnce sync.Once
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(config Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	app := &Application{config: config}

	// Step 1: Create Fyne application
	if config.TestFyneApp != nil {
		app.fyneApp = config.TestFyneApp
	} else {
		app.fyneApp = fyneapp.NewWithID(config.AppID)
	}

	// Step 2: Create logger
	app.logger = logger.NewLogger(logger.Config{
		Level:  config.LogLevel,
		Format: config.LogFormat,
	})
	app.logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("version", GetVersionInfo().FullString()))

	// Step 3: Create an event bus and error reporting
	app.eventBus = eventbus.NewSyncEventBus(app.logger)
	reporter, err := metrics.NewSentryReporter(metrics.SentryConfig{
		DSN:         config.SentryDSN,
		Environment: config.Environment,
		Release:     GetVersionInfo().Release(),
	}, app.eventBus, app.logger)
	if err != nil {
		// Non-fatal: run without reporting
		app.logger.Warn("sentry disabled", slog.Any("error", err))
		reporter, _ = metrics.NewSentryReporter(metrics.SentryConfig{}, nil, app.logger)
	}
	app.reporter = reporter

	// Step 4: Node registry, chain builder and preset storage
	app.registry = effect.NewDefaultRegistry(
		effect.WithDefaultEdgeMode(config.EdgeMode),
		effect.WithSeed(config.Seed),
	)
	app.builder = preset.NewBuilder(app.registry, app.logger,
		preset.WithSkipUnknown(),
		preset.WithMaxActiveNodes(config.MaxActiveNodes),
	)
	app.presets = memory.NewPresetRepository(app.fyneApp.Preferences(), app.logger)

	// Step 5: Audio analysis
	reader, err := app.openAudio()
	if err != nil {
		return nil, err
	}
	analyzerCfg := analysis.DefaultConfig()
	analyzerCfg.SampleRate = reader.SampleRate()
	app.source = analysis.NewLiveSource()
	var feederOpts []analysis.FeederOption
	if config.Loop {
		feederOpts = append(feederOpts, analysis.WithLoop())
	}
	app.feeder = analysis.NewFeeder(reader, analysis.NewAnalyzer(analyzerCfg), app.source, app.logger, feederOpts...)

	// Step 6: Output
	var sink ports.FrameSink
	if config.Headless {
		app.recorder = sinkmemory.NewRecorder(config.RecordFrames)
		sink = app.recorder
	} else {
		app.window = fynesink.NewWindow(app.fyneApp, config.AppName, config.Width, config.Height, app.eventBus, app.logger)
		sink = app.window.Preview()
	}

	// Step 7: Engine
	app.engine = service.NewExecutionEngine(service.Config{
		Width:            config.Width,
		Height:           config.Height,
		TargetFrameRate:  config.FrameRate,
		MaxActiveNodes:   config.MaxActiveNodes,
		AudioSensitivity: config.Sensitivity,
		BestEffort:       config.BestEffort,
	}, app.source, sink, app.eventBus, app.logger)

	// Step 8: Initial chain
	desc, err := app.initialPreset()
	if err != nil {
		return nil, err
	}
	if err := app.applyPreset(desc); err != nil {
		return nil, err
	}

	return app, nil
}

// openAudio returns the configured PCM reader.
func (a *Application) openAudio() (analysis.PCMReader, error) {
	if a.config.AudioFile == "" {
		a.logger.Info("using generated beat", slog.Float64("bpm", a.config.SynthBPM))
		return analysis.NewSynthReader(44_100, a.config.SynthBPM, 220), nil
	}
	reader, err := analysis.LoadWAV(a.config.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	a.logger.Info("audio loaded",
		slog.String("file", a.config.AudioFile),
		slog.Float64("sample_rate", reader.SampleRate()),
		slog.Int("samples", reader.Len()))
	return reader, nil
}

// initialPreset resolves the chain description to start with.
// A preset file is stored under its name; the built-in default is refreshed on every start.
func (a *Application) initialPreset() (*domain.ChainDescription, error) {
	if path := a.config.PresetFile; path != "" {
		desc, err := preset.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if desc.Name == "" {
			desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if err := a.presets.Save(desc); err != nil {
			a.logger.Warn("failed to store preset", slog.String("name", desc.Name), slog.Any("error", err))
		}
		return desc, nil
	}

	if a.config.PresetName == preset.DefaultName {
		desc := preset.Default()
		if err := a.presets.Save(desc); err != nil {
			a.logger.Warn("failed to store preset", slog.String("name", desc.Name), slog.Any("error", err))
		}
		return desc, nil
	}

	desc, err := a.presets.Load(a.config.PresetName)
	if err != nil {
		return nil, fmt.Errorf("failed to load preset %q: %w", a.config.PresetName, err)
	}
	return desc, nil
}

// applyPreset builds desc and hands it to the engine.
func (a *Application) applyPreset(desc *domain.ChainDescription) error {
	width, height := a.engine.Size()
	chain, err := a.builder.Build(desc, width, height)
	if err != nil {
		return fmt.Errorf("failed to build preset %q: %w", desc.Name, err)
	}
	if err := a.engine.UpdateChain(chain); err != nil {
		_ = chain.Close()
		return err
	}
	a.logger.Info("preset loaded", slog.String("name", desc.Name), slog.Int("nodes", chain.Len()))
	return nil
}

// LoadPreset switches to a stored preset at the next frame boundary.
func (a *Application) LoadPreset(name string) error {
	desc, err := a.presets.Load(name)
	if err != nil {
		return err
	}
	return a.applyPreset(desc)
}

// SavePreset stores the active chain under name.
func (a *Application) SavePreset(name string) error {
	return a.presets.Save(preset.Describe(name, a.engine.Chain()))
}

// Presets lists the stored preset names.
func (a *Application) Presets() ([]string, error) {
	return a.presets.List()
}

// Run starts audio analysis and the frame loop. With a window it blocks
// until the window is closed; headless it blocks until ctx is cancelled,
// the configured duration passed or the engine stopped.
// It returns the fatal engine error, if any.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.feeder.Run(ctx); err != nil {
			a.logger.Warn("audio feeder stopped", slog.Any("error", err))
		}
	}()

	if err := a.engine.Start(ctx); err != nil {
		cancel()
		wg.Wait()
		return err
	}
	a.logger.Info("AVS Core started", slog.Bool("headless", a.config.Headless))

	if a.window != nil {
		a.runWindow(ctx)
	} else {
		a.waitHeadless(ctx)
	}

	err := a.engine.Stop()
	cancel()
	wg.Wait()

	if a.recorder != nil && a.config.SnapshotPath != "" {
		if serr := a.recorder.SavePNG(a.config.SnapshotPath); serr != nil {
			a.logger.Warn("failed to save snapshot", slog.Any("error", serr))
		} else {
			a.logger.Info("snapshot saved", slog.String("path", a.config.SnapshotPath))
		}
	}
	return err
}

// runWindow shows the preview and runs the Fyne event loop.
func (a *Application) runWindow(ctx context.Context) {
	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(a.window.Close)
		case <-exited:
		}
	}()

	a.window.Show()
	a.fyneApp.Run()
}

func (a *Application) waitHeadless(ctx context.Context) {
	var timeout <-chan time.Time
	if a.config.Duration > 0 {
		timer := time.NewTimer(a.config.Duration)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
	case <-a.engine.Done():
	case <-timeout:
	}
}

// Engine returns the execution engine.
func (a *Application) Engine() *service.ExecutionEngine {
	return a.engine
}

// Recorder returns the headless frame recorder, or nil with a window.
func (a *Application) Recorder() *sinkmemory.Recorder {
	return a.recorder
}

// GetEventBus returns the event bus.
func (a *Application) GetEventBus() ports.EventBus {
	return a.eventBus
}

// GetFyneApp returns the Fyne application.
func (a *Application) GetFyneApp() fyne.App {
	return a.fyneApp
}

// Shutdown gracefully shuts down the application. It is safe to call more than once.
func (a *Application) Shutdown() error {
	var errs []error
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		if a.engine != nil {
			if err := a.engine.Close(); err != nil {
				errs = append(errs, fmt.Errorf("engine: %w", err))
			}
		}
		if a.recorder != nil {
			_ = a.recorder.Close()
		}
		if a.reporter != nil {
			_ = a.reporter.Close()
		}
		if a.eventBus != nil {
			_ = a.eventBus.Close()
		}

		a.logger.Info("application shutdown complete")
	})
	return errors.Join(errs...)
}
