package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/changefeed"
	"github.com/tendant/simple-catalog/pkg/catalog/media"
	"github.com/tendant/simple-catalog/pkg/catalog/metrics"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
	"github.com/tendant/simple-catalog/pkg/catalog/presigned"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/memory"
	repopg "github.com/tendant/simple-catalog/pkg/catalog/repo/postgres"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
	fsstorage "github.com/tendant/simple-catalog/pkg/catalog/storage/fs"
	memorystorage "github.com/tendant/simple-catalog/pkg/catalog/storage/memory"
	s3storage "github.com/tendant/simple-catalog/pkg/catalog/storage/s3"
	"github.com/tendant/simple-catalog/pkg/catalog/thumbnail"
)

// URL patterns under which file:// stores serve signed reads
const (
	ImagesURLPattern     = "/media/{key}"
	ThumbnailsURLPattern = "/thumbnails/{key}"
)

// MediaRoute is a signed-read endpoint a filesystem store needs mounted.
type MediaRoute struct {
	Pattern string // chi pattern, e.g. /media/*
	Handler http.Handler
}

// Components is everything Build wires together
type Components struct {
	Service     catalog.Service
	Repository  catalog.Repository
	Images      storage.BlobStore
	Thumbnails  storage.BlobStore
	Resolver    *media.Resolver
	Thumbnailer *thumbnail.Processor
	Worker      *thumbnail.Worker // started by the caller
	Monitor     *changefeed.Monitor
	Bridge      *changefeed.SinkBridge // nil with Postgres
	Metrics     *metrics.Recorder
	MediaRoutes []MediaRoute

	// Pool is nil with the memory repository
	Pool *pgxpool.Pool
}

// Start launches the thumbnail worker and, in memory mode, the change
// feed bridge.
func (c *Components) Start(ctx context.Context) {
	c.Worker.Start(ctx)
	if c.Bridge != nil {
		c.Bridge.Start(ctx)
	}
}

// Stop drains the background queues started by Start
func (c *Components) Stop() {
	c.Worker.Stop()
	if c.Bridge != nil {
		c.Bridge.Stop()
	}
}

// Close releases the database pool
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Build wires the catalog from the configuration.
//
// With the memory repository, change events flow to the change feed in
// process. With Postgres the catalog_changes NOTIFY triggers feed a
// changefeed.PostgresListener instead.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{Metrics: metrics.New()}

	images, route, err := c.buildStore(ctx, c.StorageURL, ImagesURLPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to build image store: %w", err)
	}
	comps.Images = images
	if route != nil {
		comps.MediaRoutes = append(comps.MediaRoutes, *route)
	}

	comps.Thumbnails = images
	if c.ThumbnailStorageURL != "" {
		thumbs, route, err := c.buildStore(ctx, c.ThumbnailStorageURL, ThumbnailsURLPattern)
		if err != nil {
			return nil, fmt.Errorf("failed to build thumbnail store: %w", err)
		}
		comps.Thumbnails = thumbs
		if route != nil {
			comps.MediaRoutes = append(comps.MediaRoutes, *route)
		}
	}

	if mem, ok := images.(*memorystorage.Backend); ok {
		if err := seedPlaceholder(ctx, mem, c.PlaceholderKey); err != nil {
			return nil, err
		}
	}

	comps.Resolver, err = media.New(media.Config{
		Primary:          comps.Images,
		Thumbnails:       comps.Thumbnails,
		PlaceholderKey:   c.PlaceholderKey,
		URLValidity:      c.URLValidity,
		PreferThumbnails: c.PreferThumbnails,
		Observer:         comps.Metrics,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	comps.Thumbnailer, err = thumbnail.NewProcessor(thumbnail.Config{
		Store:    comps.Thumbnails,
		Source:   comps.Images,
		Observer: comps.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	comps.Worker = thumbnail.NewWorker(comps.Thumbnailer, 0, 0)

	comps.Monitor, err = c.BuildMonitor(comps.Metrics, logger)
	if err != nil {
		return nil, err
	}

	repo, pool, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo
	comps.Pool = pool

	sinks := catalog.MultiEventSink{catalog.NewLoggingEventSink(logger)}
	if pool == nil {
		comps.Bridge = changefeed.NewAsyncSinkBridge(comps.Monitor, 0)
		sinks = append(sinks, comps.Bridge)
	}

	keyGen, err := objectkey.NewGenerator(c.KeyLayout)
	if err != nil {
		comps.Close()
		return nil, err
	}

	comps.Service, err = catalog.New(
		catalog.WithRepository(repo),
		catalog.WithMediaResolver(comps.Resolver),
		catalog.WithBlobStore(comps.Images),
		catalog.WithKeyGenerator(keyGen),
		catalog.WithEventSink(sinks),
		catalog.WithHooks(&catalog.Hooks{
			AfterImageUpload: []catalog.AfterImageUploadHook{comps.Worker.Hook()},
		}),
		catalog.WithReleaseDelay(c.ReleaseDelay),
		catalog.WithLogger(logger),
	)
	if err != nil {
		comps.Close()
		return nil, err
	}
	return comps, nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (catalog.Service, error) {
	comps, err := c.Build(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return comps.Service, nil
}

// BuildMonitor creates the change feed monitor. Without an event topic the
// monitor skips every batch. extra options are applied last.
func (c *ServerConfig) BuildMonitor(observer changefeed.Observer, logger *slog.Logger, extra ...changefeed.MonitorOption) (*changefeed.Monitor, error) {
	opts := []changefeed.MonitorOption{changefeed.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, changefeed.WithObserver(observer))
	}
	if c.EventTopicEndpoint != "" {
		pub, err := changefeed.NewCloudEventsPublisher(c.EventTopicEndpoint, c.EventTopicKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, changefeed.WithPublisher(pub))
	}
	return changefeed.NewMonitor(append(opts, extra...)...), nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (catalog.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := c.OpenPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// OpenPool opens a pgx pool whose sessions use DBSchema as search_path.
func (c *ServerConfig) OpenPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(databaseURL, schema string) error {
	cfg := ServerConfig{DatabaseURL: databaseURL, DBSchema: schema}
	pool, err := cfg.OpenPool(context.Background())
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStore creates the BlobStore for a storage URL. File stores also
// return the route serving their signed URLs.
func (c *ServerConfig) buildStore(ctx context.Context, rawURL, urlPattern string) (storage.BlobStore, *MediaRoute, error) {
	loc, err := parseStorageURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	switch loc.scheme {
	case schemeMemory:
		return memorystorage.New(loc.name), nil, nil

	case schemeFile:
		signer := presigned.New(
			presigned.WithSecretKey(c.SigningSecret),
			presigned.WithURLPattern(urlPattern),
		)
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir: loc.name,
			BaseURL: c.PublicBaseURL,
			Signer:  signer,
		})
		if err != nil {
			return nil, nil, err
		}
		route := &MediaRoute{
			Pattern: signer.PathForKey("*"),
			Handler: presigned.ValidateMiddlewareWithSigner(signer, backend.Handler()),
		}
		return backend, route, nil

	case schemeS3:
		s3cfg := s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 loc.name,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		}
		if v := loc.query.Get("region"); v != "" {
			s3cfg.Region = v
		}
		if v := loc.query.Get("endpoint"); v != "" {
			s3cfg.Endpoint = v
		}
		if v := loc.query.Get("path_style"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid path_style in storage URL: %w", err)
			}
			s3cfg.UsePathStyle = b
		}
		backend, err := s3storage.New(s3cfg)
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend type: %s", loc.scheme)
	}
}

// seedPlaceholder stores a blank placeholder image in a fresh memory store
// so unreleased images resolve in development.
func seedPlaceholder(ctx context.Context, store *memorystorage.Backend, key string) error {
	ok, err := store.Exists(ctx, key)
	if err != nil || ok {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return store.Upload(ctx, &buf, storage.UploadParams{ObjectKey: key, MimeType: "image/png"})
}
