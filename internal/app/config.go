package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"github.com/joho/godotenv"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/logger"
	"github.com/tejashwikalptaru/avscore/internal/preset"
)

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier, also the preferences namespace
	AppID string

	// AppName is the display name
	AppName string

	// Width and Height are the framebuffer size
	Width  int
	Height int

	// FrameRate is the engine pacing target
	FrameRate float64

	// MaxActiveNodes limits enabled nodes per frame, 0 for no limit
	MaxActiveNodes int

	// Sensitivity scales the bass, mid and treb bands
	Sensitivity float64

	// BestEffort drops frames instead of running late
	BestEffort bool

	// EdgeMode is the default edge handling of displacement nodes
	EdgeMode domain.EdgeMode

	// Seed drives the randomized nodes
	Seed int64

	// PresetFile is a YAML chain description to load and store
	PresetFile string

	// PresetName selects a stored chain description when PresetFile is empty
	PresetName string

	// AudioFile is a WAV file to analyze. Empty uses the built-in beat generator.
	AudioFile string

	// SynthBPM is the tempo of the built-in beat generator
	SynthBPM float64

	// Loop restarts the audio file when it ends
	Loop bool

	// Headless records frames in memory instead of opening a window
	Headless bool

	// RecordFrames bounds the headless frame history
	RecordFrames int

	// Duration stops a headless run after this long, 0 runs until cancelled
	Duration time.Duration

	// SnapshotPath receives the last headless frame as PNG when set
	SnapshotPath string

	// SentryDSN enables error reporting when set
	SentryDSN string

	// Environment is reported to Sentry
	Environment string

	// LogLevel controls logging verbosity
	LogLevel slog.Level

	// LogFormat is "text" or "json"
	LogFormat string

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App
}

// lookupFunc resolves a configuration key.
type lookupFunc func(key string) (string, bool)

// DefaultConfig returns the configuration from AVSCORE_* environment variables.
func DefaultConfig() Config {
	return configFrom(os.LookupEnv)
}

// LoadConfig reads the given .env files (".env" when none are given) and
// returns the configuration. Process environment variables win over file values.
// Missing files are ignored.
func LoadConfig(files ...string) (Config, error) {
	values := map[string]string{}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		read, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range read {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}

	return configFrom(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}), nil
}

func configFrom(lookup lookupFunc) Config {
	env := func(key, def string) string {
		if v, ok := lookup("AVSCORE_" + key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	envInt := func(key string, def int) int {
		if n, err := strconv.Atoi(env(key, "")); err == nil {
			return n
		}
		return def
	}
	envFloat := func(key string, def float64) float64 {
		if f, err := strconv.ParseFloat(env(key, ""), 64); err == nil {
			return f
		}
		return def
	}
	envBool := func(key string, def bool) bool {
		if b, err := strconv.ParseBool(env(key, "")); err == nil {
			return b
		}
		return def
	}

	edge, err := domain.ParseEdgeMode(env("EDGE_MODE", "clamp"))
	if err != nil {
		edge = domain.EdgeClamp
	}
	duration, err := time.ParseDuration(env("DURATION", "0s"))
	if err != nil {
		duration = 0
	}
	format := "text"
	if strings.EqualFold(env("LOG_FORMAT", ""), "json") {
		format = "json"
	}

	return Config{
		AppID:          "com.avscore.app",
		AppName:        "AVS Core",
		Width:          envInt("WIDTH", 640),
		Height:         envInt("HEIGHT", 480),
		FrameRate:      envFloat("FPS", 60),
		MaxActiveNodes: envInt("MAX_NODES", 0),
		Sensitivity:    envFloat("SENSITIVITY", 1),
		BestEffort:     envBool("BEST_EFFORT", false),
		EdgeMode:       edge,
		Seed:           int64(envInt("SEED", 1)),
		PresetFile:     env("PRESET_FILE", ""),
		PresetName:     env("PRESET", preset.DefaultName),
		AudioFile:      env("AUDIO_FILE", ""),
		SynthBPM:       envFloat("BPM", 120),
		Loop:           envBool("LOOP", true),
		Headless:       envBool("HEADLESS", false),
		RecordFrames:   envInt("RECORD_FRAMES", 120),
		Duration:       duration,
		SnapshotPath:   env("SNAPSHOT", ""),
		SentryDSN:      env("SENTRY_DSN", ""),
		Environment:    env("ENVIRONMENT", "development"),
		LogLevel:       logger.ParseLevel(env("LOG_LEVEL", ""), slog.LevelInfo),
		LogFormat:      format,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return domain.NewValidationError("FrameRate", c.FrameRate, "must be positive")
	}
	if c.MaxActiveNodes < 0 {
		return domain.NewValidationError("MaxActiveNodes", c.MaxActiveNodes, "must not be negative")
	}
	if c.Sensitivity <= 0 {
		return domain.NewValidationError("Sensitivity", c.Sensitivity, "must be positive")
	}
	if c.AudioFile == "" && c.SynthBPM < 0 {
		return domain.NewValidationError("SynthBPM", c.SynthBPM, "must not be negative")
	}
	return nil
}
