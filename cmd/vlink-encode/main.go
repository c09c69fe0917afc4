package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vlink-go/internal/codec"
	"vlink-go/internal/config"
	"vlink-go/internal/container"
	"vlink-go/internal/layout"
	"vlink-go/internal/logging"
	"vlink-go/internal/processing"
)

func main() {
	var (
		input      = flag.String("input", "", "File to encode")
		outputPath = flag.String("output", "", "Video file to write")
		framesDir  = flag.String("frames-dir", "", "Also write every frame as a BMP into this directory")
		fps        = flag.Float64("fps", 0, "Frame rate (default 10, or derived from -duration-ms)")
		durationMs = flag.Int("duration-ms", 0, "Spread the frames over this many milliseconds")
		repeat     = flag.Int("repeat", 1, "Write every frame this many times")
		layoutPath = flag.String("layout", "", "TOML frame layout file")
		variant    = flag.String("variant", config.VariantMarker, "Frame layout variant: marker or finder")
		workers    = flag.Int("workers", 4, "Number of render workers")
		logLevel   = flag.String("log-level", "info", "Log level")
		logJSON    = flag.Bool("log-json", false, "Log as JSON")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Input:      *input,
		Output:     *outputPath,
		FramesDir:  *framesDir,
		FPS:        *fps,
		DurationMs: *durationMs,
		Repeat:     *repeat,
		LayoutPath: *layoutPath,
		Variant:    *variant,
		Workers:    *workers,
		LogLevel:   *logLevel,
		LogJSON:    *logJSON,
	}
	logging.Configure(cfg.LogLevel, cfg.LogJSON)

	if err := config.ValidateEncodeConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vlink-encode: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Encode failed")
		os.Exit(1)
	}
}

func run(cfg config.AppConfig) error {
	if err := config.FileExists(cfg.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	payload, err := os.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	layoutCfg, err := config.LoadLayoutConfig(cfg.LayoutPath, cfg.Variant)
	if err != nil {
		return err
	}
	l, err := layout.FromConfig(layoutCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	start := time.Now()
	enc := codec.NewFrameEncoder(l)
	chunks, err := enc.Chunks(payload)
	if err != nil {
		return err
	}
	frames, err := processing.RenderFrames(ctx, enc, chunks, cfg.Workers)
	if err != nil {
		return fmt.Errorf("render frames: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "run",
		"run_id":   runID,
		"layout":   l.String(),
		"bytes":    len(payload),
		"frames":   len(frames),
		"render":   time.Since(start).String(),
	}).Info("Frames rendered")

	if cfg.FramesDir != "" {
		if _, err := container.WriteFrameDir(cfg.FramesDir, frames); err != nil {
			return fmt.Errorf("write frames: %w", err)
		}
	}
	if cfg.Output != "" {
		rate := container.FrameRate(cfg.FPS, cfg.DurationMs, len(frames)*max(cfg.Repeat, 1))
		err := container.Write(cfg.Output, frames, container.WriteOptions{FPS: rate, Repeat: cfg.Repeat})
		if err != nil {
			return fmt.Errorf("write video: %w", err)
		}
	}
	return nil
}
