package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vlink-go/internal/codec"
	"vlink-go/internal/config"
	"vlink-go/internal/container"
	"vlink-go/internal/ingest"
	"vlink-go/internal/layout"
	"vlink-go/internal/logging"
	"vlink-go/internal/output"
	"vlink-go/internal/processing"
	"vlink-go/internal/report"
	"vlink-go/internal/server"
	"vlink-go/internal/simulator"
	"vlink-go/internal/types"
	"vlink-go/internal/vision"
)

func main() {
	var (
		input          = flag.String("input", "", "Video file or directory of frame images")
		endpoint       = flag.String("endpoint", "", "ZMQ endpoint delivering CBOR frames, instead of -input")
		simulate       = flag.Bool("simulate", false, "Treat -input as a payload: encode it and decode a simulated capture")
		outputPath     = flag.String("output", "", "Recovered data file")
		validity       = flag.String("validity", "", "Validity bitmap file")
		layoutPath     = flag.String("layout", "", "TOML frame layout file")
		variant        = flag.String("variant", config.VariantMarker, "Frame layout variant: marker or finder")
		workers        = flag.Int("workers", 4, "Number of decode workers")
		gapPolicy      = flag.String("gap-policy", config.GapPolicyFill, "Missing frames: fill or report")
		minConfidence  = flag.Float64("min-confidence", 0.3, "Bytes sampled below this confidence are marked invalid")
		maxFrames      = flag.Int("max-frames", 0, "Stop reading after this many frames")
		timeout        = flag.Duration("timeout", 0, "Stop reading after this long")
		fps            = flag.Float64("fps", 0, "Frame rate of a frame directory, or simulated capture rate")
		repeat         = flag.Int("repeat", 2, "Simulated captures per frame")
		frameLogDir    = flag.String("frame-log", "", "Directory for the per-frame CBOR log")
		monitorPort    = flag.Int("monitor-port", 0, "Serve decode progress on this HTTP port")
		plotPath       = flag.String("plot", "", "Write a per-frame confidence chart PNG")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		logLevel       = flag.String("log-level", "info", "Log level")
		logJSON        = flag.Bool("log-json", false, "Log as JSON")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Input:          *input,
		Endpoint:       *endpoint,
		Simulate:       *simulate,
		Output:         *outputPath,
		Validity:       *validity,
		LayoutPath:     *layoutPath,
		Variant:        *variant,
		Workers:        *workers,
		GapPolicy:      *gapPolicy,
		MinConfidence:  *minConfidence,
		MaxFrames:      *maxFrames,
		Timeout:        *timeout,
		FPS:            *fps,
		Repeat:         *repeat,
		FrameLogDir:    *frameLogDir,
		MonitorPort:    *monitorPort,
		PlotPath:       *plotPath,
		IngestLogEvery: *ingestLogEvery,
		LogLevel:       *logLevel,
		LogJSON:        *logJSON,
	}
	logging.Configure(cfg.LogLevel, cfg.LogJSON)

	if err := config.ValidateDecodeConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vlink-decode: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("Decode failed")
		os.Exit(1)
	}
}

// progress is what the monitor reads while the pipeline runs. It is only
// written from the pipeline's delivery loop.
type progress struct {
	sequences atomic.Int64
	expected  atomic.Int64
}

func run(cfg config.AppConfig) error {
	layoutCfg, err := config.LoadLayoutConfig(cfg.LayoutPath, cfg.Variant)
	if err != nil {
		return err
	}
	l, err := layout.FromConfig(layoutCfg)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"function": "run", "run_id": runID})
	log.WithField("layout", l.String()).Info("Decode starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The source gets its own context so -timeout and -max-frames end the
	// input while the pipeline still drains and writes outputs.
	srcCtx, stopSource := context.WithCancel(ctx)
	defer stopSource()
	if cfg.Timeout > 0 {
		srcCtx, stopSource = context.WithTimeout(srcCtx, cfg.Timeout)
		defer stopSource()
	}
	frames, videoSeconds, err := openSource(srcCtx, cfg, l)
	if err != nil {
		return err
	}
	frames = ingest.Limit(frames, cfg.MaxFrames, stopSource)

	metrics := &processing.Metrics{}
	assembler := processing.NewStreamAssembler(l, processing.AssemblerOptions{
		GapPolicy:     cfg.GapPolicy,
		MinConfidence: cfg.MinConfidence,
	})
	pipeline := &processing.Pipeline{
		Processor: processing.NewFrameProcessor(l, vision.NewNative(vision.DefaultNativeOptions())),
		Assembler: assembler,
		Metrics:   metrics,
		Workers:   cfg.Workers,
	}

	var frameLog *output.FrameLogWriter
	if cfg.FrameLogDir != "" {
		frameLog, err = output.NewFrameLogWriter(cfg.FrameLogDir, runID)
		if err != nil {
			return fmt.Errorf("frame log: %w", err)
		}
		defer frameLog.Close()
	}
	var chart *report.ConfidencePlot
	if cfg.PlotPath != "" {
		chart = report.NewConfidencePlot()
	}

	var prog progress
	var monitorFeed chan any
	if cfg.MonitorPort > 0 {
		monitorFeed = make(chan any, 256)
		monitor := server.New(
			func() map[string]any {
				return map[string]any{
					"run_id":    runID,
					"sequences": prog.sequences.Load(),
					"expected":  prog.expected.Load(),
					"metrics":   metrics.Snapshot(),
				}
			},
			func() any { return snapshot(runID, metrics, &prog) },
			func() map[string]any { return layoutInfo(l, cfg) },
		)
		go func() {
			if err := monitor.Run(ctx, cfg.MonitorPort, monitorFeed); err != nil {
				log.WithField("error", err.Error()).Warn("Monitor stopped")
			}
		}()
	}

	delivered := 0
	pipeline.OnOutcome = func(o processing.Outcome) {
		rec := o.Record(runID)
		if frameLog != nil {
			if err := frameLog.Record(rec); err != nil {
				log.WithField("error", err.Error()).Warn("Frame log write failed")
			}
		}
		if chart != nil {
			chart.Add(rec)
		}
		delivered++
		if monitorFeed == nil {
			return
		}
		prog.sequences.Store(int64(assembler.Sequences()))
		// Expected walks every held frame, so refresh it sparingly.
		if delivered%25 == 1 {
			prog.expected.Store(int64(assembler.Expected()))
		}
		publish(monitorFeed, rec)
	}

	start := time.Now()
	stream, err := pipeline.Run(ctx, frames)
	if err != nil {
		return fmt.Errorf("decode interrupted, no output written: %w", err)
	}
	if monitorFeed != nil {
		prog.expected.Store(int64(assembler.Expected()))
		publish(monitorFeed, snapshot(runID, metrics, &prog))
	}

	summary := report.Build(report.Input{
		RunID:        runID,
		Metrics:      metrics,
		Assembler:    assembler,
		Stream:       stream,
		Elapsed:      time.Since(start),
		VideoSeconds: videoSeconds,
	})
	summary.Log()

	gapReport := output.GapReport{RunID: runID, Policy: cfg.GapPolicy, Capacity: l.Capacity()}
	if err := output.WriteStream(cfg.Output, cfg.Validity, stream, gapReport); err != nil {
		return err
	}
	if chart != nil {
		if err := chart.Save(cfg.PlotPath, "vlink decode "+runID); err != nil {
			log.WithField("error", err.Error()).Warn("Confidence plot not written")
		}
	}
	return nil
}

// openSource picks the frame source. videoSeconds is zero when the source
// has no known duration.
func openSource(ctx context.Context, cfg config.AppConfig, l *layout.FrameLayout) (<-chan types.Frame, float64, error) {
	switch {
	case cfg.Endpoint != "":
		frames, err := ingest.Stream(ctx, cfg.Endpoint, cfg.IngestLogEvery)
		return frames, 0, err
	case cfg.Simulate:
		payload, err := os.ReadFile(cfg.Input)
		if err != nil {
			return nil, 0, fmt.Errorf("read input: %w", err)
		}
		imgs, err := codec.NewFrameEncoder(l).EncodeAll(payload)
		if err != nil {
			return nil, 0, err
		}
		opts := simulator.DefaultOptions()
		opts.Repeat = cfg.Repeat
		opts.Rate = cfg.FPS
		return simulator.Stream(ctx, imgs, opts), 0, nil
	}

	info, err := os.Stat(cfg.Input)
	if err != nil {
		return nil, 0, fmt.Errorf("input: %w", err)
	}
	if info.IsDir() {
		frames, err := ingest.Directory(ctx, cfg.Input, cfg.FPS)
		seconds := 0.0
		if cfg.FPS > 0 && err == nil {
			if paths, lerr := ingest.ListFrames(cfg.Input); lerr == nil {
				seconds = float64(len(paths)) / cfg.FPS
			}
		}
		return frames, seconds, err
	}
	frames, video, err := container.Frames(ctx, cfg.Input)
	if err != nil {
		return nil, 0, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "openSource",
		"width":    video.Width,
		"height":   video.Height,
		"fps":      video.FPS,
		"frames":   video.Frames,
	}).Info("Video opened")
	return frames, video.Duration, nil
}

func snapshot(runID string, m *processing.Metrics, p *progress) types.ProgressSnapshot {
	return types.ProgressSnapshot{
		Type:           "snapshot",
		RunID:          runID,
		FramesSeen:     m.FramesSeen.Load(),
		FramesDecoded:  m.FramesDecoded.Load(),
		FramesSkipped:  m.Skipped(),
		Sequences:      int(p.sequences.Load()),
		ExpectedFrames: int(p.expected.Load()),
		Metrics:        m.Snapshot(),
	}
}

func layoutInfo(l *layout.FrameLayout, cfg config.AppConfig) map[string]any {
	cols, rows := l.Modules()
	return map[string]any{
		"layout":         l.Kind().String(),
		"modules_x":      cols,
		"modules_y":      rows,
		"module_px":      l.ModulePx(),
		"capacity":       l.Capacity(),
		"gap_policy":     cfg.GapPolicy,
		"min_confidence": cfg.MinConfidence,
	}
}

// publish drops the message when the monitor falls behind; the decode never
// waits on it.
func publish(feed chan<- any, msg any) {
	select {
	case feed <- msg:
	default:
	}
}
