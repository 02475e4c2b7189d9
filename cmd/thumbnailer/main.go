// Command thumbnailer periodically generates thumbnails for images that do
// not have one yet.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-catalog/pkg/catalog/config"
	"github.com/tendant/simple-catalog/pkg/catalog/thumbnail"
)

type backfillConfig struct {
	Interval    time.Duration `env:"THUMBNAIL_INTERVAL" env-default:"5m" env-description:"Time between backfill passes"`
	Prefix      string        `env:"THUMBNAIL_SOURCE_PREFIX" env-description:"Only images under this key prefix are scanned"`
	Concurrency int           `env:"THUMBNAIL_CONCURRENCY" env-default:"4"`
	Once        bool          `env:"THUMBNAIL_RUN_ONCE" env-description:"Run a single pass and exit"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	var bc backfillConfig
	if err := cleanenv.ReadEnv(&bc); err != nil {
		slog.Error("Failed to read thumbnailer configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := cfg.Build(ctx, logger)
	if err != nil {
		logger.Error("Failed to build catalog", "err", err)
		os.Exit(1)
	}
	defer comps.Close()

	if bc.Once {
		runPass(ctx, logger, comps.Thumbnailer, bc)
		return
	}

	ticker := time.NewTicker(bc.Interval)
	defer ticker.Stop()
	for {
		runPass(ctx, logger, comps.Thumbnailer, bc)
		select {
		case <-ctx.Done():
			logger.Info("Thumbnailer exiting")
			return
		case <-ticker.C:
		}
	}
}

func runPass(ctx context.Context, logger *slog.Logger, proc *thumbnail.Processor, bc backfillConfig) {
	start := time.Now()
	report, err := proc.Backfill(ctx, bc.Prefix, bc.Concurrency)
	if err != nil && ctx.Err() == nil {
		logger.Error("Backfill failed", "err", err)
		return
	}
	if report == nil {
		return
	}
	logger.Info("Backfill pass finished",
		"scanned", report.Scanned,
		"created", report.Created,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
}
