// Command changefeed publishes catalog changes recorded by the Postgres
// NOTIFY triggers as CloudEvents.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-catalog/pkg/catalog/changefeed"
	"github.com/tendant/simple-catalog/pkg/catalog/config"
	"github.com/tendant/simple-catalog/pkg/catalog/metrics"
	repopg "github.com/tendant/simple-catalog/pkg/catalog/repo/postgres"
)

type feedConfig struct {
	Channel       string        `env:"CHANGEFEED_CHANNEL" env-default:"catalog_changes"`
	BatchSize     int           `env:"CHANGEFEED_BATCH_SIZE" env-default:"50"`
	FlushInterval time.Duration `env:"CHANGEFEED_FLUSH_INTERVAL" env-default:"2s"`
	Source        string        `env:"CHANGEFEED_SOURCE" env-default:"/catalog/products"`
	RawPayloads   bool          `env:"CHANGEFEED_RAW_PAYLOADS"`
	MetricsAddr   string        `env:"METRICS_ADDR" env-default:":9102"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	var feed feedConfig
	if err := cleanenv.ReadEnv(&feed); err != nil {
		slog.Error("Failed to read change feed configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if cfg.DatabaseType != "postgres" {
		logger.Error("The change feed listens on Postgres; set DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := cfg.OpenPool(ctx)
	if err != nil {
		logger.Error("Failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rec := metrics.New()
	var extra []changefeed.MonitorOption
	if feed.Source != "" {
		extra = append(extra, changefeed.WithSource(feed.Source))
	}
	monitor, err := cfg.BuildMonitor(rec, logger, extra...)
	if err != nil {
		logger.Error("Failed to create event publisher", "err", err)
		os.Exit(1)
	}
	if !monitor.Enabled() {
		logger.Warn("EVENT_TOPIC_ENDPOINT is not set; changes will be logged and dropped")
	}

	loader := changefeed.RepositoryLoader(repopg.NewWithPool(pool))
	if feed.RawPayloads {
		loader = changefeed.RawLoader
	}
	listener := changefeed.NewPostgresListener(pool, monitor, loader,
		changefeed.WithChannel(feed.Channel),
		changefeed.WithBatchSize(feed.BatchSize),
		changefeed.WithFlushInterval(feed.FlushInterval),
		changefeed.WithListenerLogger(logger),
	)

	metricsServer := &http.Server{Addr: feed.MetricsAddr, Handler: rec.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	defer metricsServer.Close()

	if err := listener.Run(ctx); err != nil {
		logger.Error("Change feed stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("Change feed exiting")
}
