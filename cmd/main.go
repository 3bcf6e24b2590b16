// Package main is the entry point for AVS Core.
//
// AVS Core runs an audio-reactive effect chain: a WAV file (or a generated
// beat) is analyzed in real time and every frame is rendered through a chain
// of effect nodes into a preview window or an in-memory recorder.
//
// Build:
//
//	go build -o build/avscore ./cmd
//
// Run:
//
//	./build/avscore -audio song.wav -preset-file chain.yaml
//	./build/avscore -headless -duration 5s -snapshot last.png
//
// Settings are read from AVSCORE_* environment variables and a .env file;
// flags override both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tejashwikalptaru/avscore/internal/app"
	"github.com/tejashwikalptaru/avscore/internal/domain"
)

func main() {
	config, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	edge := flag.String("edge", config.EdgeMode.String(), "default edge mode: clamp, wrap or mirror")
	flag.IntVar(&config.Width, "width", config.Width, "framebuffer width")
	flag.IntVar(&config.Height, "height", config.Height, "framebuffer height")
	flag.Float64Var(&config.FrameRate, "fps", config.FrameRate, "target frame rate")
	flag.IntVar(&config.MaxActiveNodes, "max-nodes", config.MaxActiveNodes, "maximum enabled nodes per frame, 0 for no limit")
	flag.Float64Var(&config.Sensitivity, "sensitivity", config.Sensitivity, "audio band sensitivity")
	flag.BoolVar(&config.BestEffort, "best-effort", config.BestEffort, "drop frames instead of running late")
	flag.Int64Var(&config.Seed, "seed", config.Seed, "seed for randomized nodes")
	flag.StringVar(&config.PresetFile, "preset-file", config.PresetFile, "YAML chain description to load")
	flag.StringVar(&config.PresetName, "preset", config.PresetName, "stored preset name")
	flag.StringVar(&config.AudioFile, "audio", config.AudioFile, "WAV file to analyze (empty for a generated beat)")
	flag.Float64Var(&config.SynthBPM, "bpm", config.SynthBPM, "tempo of the generated beat")
	flag.BoolVar(&config.Loop, "loop", config.Loop, "restart the audio file when it ends")
	flag.BoolVar(&config.Headless, "headless", config.Headless, "record frames in memory instead of opening a window")
	flag.IntVar(&config.RecordFrames, "record", config.RecordFrames, "headless frame history size")
	flag.DurationVar(&config.Duration, "duration", config.Duration, "headless run length, 0 until interrupted")
	flag.StringVar(&config.SnapshotPath, "snapshot", config.SnapshotPath, "write the last headless frame to this PNG file")
	flag.Parse()

	if *showVersion {
		fmt.Println(app.GetVersionInfo().FullString())
		return
	}
	mode, err := domain.ParseEdgeMode(*edge)
	if err != nil {
		log.Fatalf("Invalid -edge: %v", err)
	}
	config.EdgeMode = mode

	// Create the application with dependency injection
	application, err := app.NewApplication(config)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run application (blocks until the window is closed or the run ends)
	runErr := application.Run(ctx)

	if err := application.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
	}
	if runErr != nil {
		log.Printf("Application error: %v", runErr)
		os.Exit(1)
	}
}
