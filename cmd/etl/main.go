// Command etl runs one Extract-Transform-Load pipeline from a YAML
// config file, logging structured progress and exiting non-zero on
// failure or cancellation. Grounded on the teacher's cmd/pipeline/main.go
// (flag parsing, signal-driven cancellation, final-stats summary) and
// cmd/stream-test/main.go (slog setup).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/config"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/pipeline"
	"github.com/flowkit/etl/pkg/stage"
	"github.com/flowkit/etl/pkg/telemetry"
)

var (
	version = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("c", "", "pipeline config file path")
	validateOnly := flag.Bool("validate", false, "validate config and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *showVersion {
		fmt.Printf("etl %s\n", version)
		return 0
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: etl -c <config.yaml>")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return 1
	}
	if *validateOnly {
		fmt.Println("config is valid")
		return 0
	}

	runID := uuid.New().String()
	logger = logger.With("run_id", runID, "pipeline", cfg.Name)

	pool := bufpool.New()

	src, err := buildSource(cfg.Source, pool)
	if err != nil {
		logger.Error("building source", "error", err)
		return 1
	}

	outSchema := src.Schema()
	if len(cfg.Sink.Columns) > 0 {
		outSchema, err = sinkSchema(cfg.Sink.Columns)
		if err != nil {
			logger.Error("building sink schema", "error", err)
			return 1
		}
	}

	tr, err := buildTransform(cfg.Transform, src.Schema(), outSchema, pool)
	if err != nil {
		logger.Error("building transform", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sk, err := buildSink(ctx, cfg.Sink, outSchema)
	if err != nil {
		logger.Error("building sink", "error", err)
		return 1
	}

	var opts []pipeline.Option
	opts = append(opts, pipeline.WithPool(pool))
	if cfg.ChannelCapacity > 0 {
		opts = append(opts, pipeline.WithChannelCapacity(cfg.ChannelCapacity))
	}

	p, err := pipeline.New(src, tr, sk, opts...)
	if err != nil {
		logger.Error("constructing pipeline", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("signal received, cancelling", "signal", sig.String())
		cancel()
	}()

	stop := logTelemetry(ctx, logger, p.Telemetry())
	defer stop()

	start := time.Now()
	runErr := p.Execute(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		logger.Error("pipeline finished with error", "error", runErr, "elapsed", elapsed)
		if errors.Is(runErr, etlerr.Cancelled()) {
			return 130
		}
		return 1
	}
	logger.Info("pipeline completed", "elapsed", elapsed)
	return 0
}

// logTelemetry drains the Telemetry's on_change/on_error streams to
// structured log lines until ctx is done, returning a stop function
// that waits for the drain goroutine to exit.
func logTelemetry(ctx context.Context, logger *slog.Logger, tel *telemetry.Telemetry) func() {
	done := make(chan struct{})
	changes := tel.OnChange()
	errs := tel.OnError()
	go func() {
		defer close(done)
		for {
			select {
			case snap, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				g := snap[stage.Global]
				logger.Info("progress",
					"status", g.Status,
					"current_line", g.CurrentLine,
					"total_lines", g.TotalLines,
					"percent_complete", g.PercentComplete,
					"speed_rows_per_sec", g.SpeedRowsPerSec,
				)
			case e, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Error("stage error",
					"stage", e.Stage,
					"cause", e.Cause,
					"current_line", e.CurrentLine,
				)
			case <-ctx.Done():
				return
			}
			if changes == nil && errs == nil {
				return
			}
		}
	}()
	return func() { <-done }
}
