// Command meetscribe is the meeting-recording ingestion server.
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

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/observe"
	"github.com/meetscribe/meetscribe/internal/pipeline"
	"github.com/meetscribe/meetscribe/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "meetscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "meetscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("meetscribe starting",
		"config", *configPath,
		"port", cfg.Server.Port,
		"recordings_root", cfg.Recording.Root,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "meetscribe",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Post-archive pipeline ─────────────────────────────────────────────────
	var pl *pipeline.Pipeline
	if cfg.Pipeline.Provider != "" {
		transcriber, summarizer, err := pipeline.BuildProviders(cfg.Pipeline)
		if err != nil {
			slog.Error("failed to build pipeline providers", "err", err)
			return 1
		}
		pl = pipeline.New(pipeline.Options{
			Transcriber: transcriber,
			Summarizer:  summarizer,
			Language:    cfg.Pipeline.Language,
			Concurrency: cfg.Pipeline.Concurrency,
			Logger:      logger,
			Metrics:     metrics,
		})
		name := "none"
		if transcriber != nil {
			name = transcriber.Name()
		}
		slog.Info("pipeline configured", "provider", cfg.Pipeline.Provider, "transcriber", name)
	} else {
		slog.Info("pipeline disabled; archives will not be transcribed")
	}

	// ── Server ────────────────────────────────────────────────────────────────
	srv := server.New(server.Options{
		Addr:      fmt.Sprintf(":%d", cfg.Server.Port),
		Recording: cfg.Recording,
		Pipeline:  pl,
		Logger:    logger,
		Metrics:   metrics,
	})

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
