// Package config turns environment and programmatic options into a wired
// catalog: repository, blob stores, media resolver, thumbnailer, change feed
// and metrics.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/media"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
)

// DevJWTSecret is accepted outside production only.
const DevJWTSecret = "development-only-secret"

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:             "8080",
		Environment:      "development",
		DatabaseType:     "memory",
		DBSchema:         "catalog",
		StorageURL:       "memory://images",
		PlaceholderKey:   media.DefaultPlaceholderKey,
		URLValidity:      media.DefaultURLValidity,
		PreferThumbnails: true,
		ReleaseDelay:     catalog.DefaultReleaseDelay,
		KeyLayout:        objectkey.LayoutFlat,
		JWTSecret:        DevJWTSecret,
		PublicBaseURL:    "http://localhost:8080",
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
	}
}

// ServerConfig is the catalog server configuration. The env tags are read
// by WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing

	// Database configuration. DatabaseType is derived from DatabaseURL by WithEnv.
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string // "memory", "postgres"
	DBSchema     string `env:"DB_SCHEMA" env-default:"catalog"`

	// Storage URLs: memory://name, file:///dir or s3://bucket?region=&endpoint=&path_style=
	StorageURL          string `env:"STORAGE_URL" env-default:"memory://images"`
	ThumbnailStorageURL string `env:"THUMBNAIL_STORAGE_URL"` // empty: thumbnails live beside the images
	S3                  S3Config

	// Media resolution
	PlaceholderKey   string        `env:"PLACEHOLDER_KEY" env-default:"comingsoon.png"`
	URLValidity      time.Duration `env:"URL_VALIDITY" env-default:"1h"`
	PreferThumbnails bool          `env:"PREFER_THUMBNAILS" env-default:"true"`
	ReleaseDelay     time.Duration `env:"RELEASE_DELAY" env-default:"120h"`
	KeyLayout        string        `env:"KEY_LAYOUT" env-default:"flat" env-description:"Uploaded image key layout: flat or sharded"`

	// Security
	JWTSecret      string   `env:"JWT_SECRET" env-default:"development-only-secret"`
	SigningSecret  string   `env:"SIGNING_SECRET"` // HMAC key for file:// media URLs
	PublicBaseURL  string   `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:","`

	// Change feed
	EventTopicEndpoint string `env:"EVENT_TOPIC_ENDPOINT"`
	EventTopicKey      string `env:"EVENT_TOPIC_KEY"`
}

// S3Config holds credentials and options shared by every s3:// store.
type S3Config struct {
	Region                 string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID            string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `env:"S3_ENDPOINT"`
	UsePathStyle           bool   `env:"S3_USE_PATH_STYLE"`
	EnableSSE              bool   `env:"S3_ENABLE_SSE"`
	SSEAlgorithm           string `env:"S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID            string `env:"S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `env:"S3_CREATE_BUCKET_IF_NOT_EXIST"`
}

// IsProduction reports whether Environment is production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return errors.New("jwt_secret must be set in production")
	}

	if c.URLValidity <= 0 {
		return errors.New("url_validity must be positive")
	}
	if c.ReleaseDelay < 0 {
		return errors.New("release_delay must not be negative")
	}
	if _, err := objectkey.NewGenerator(c.KeyLayout); err != nil {
		return fmt.Errorf("key_layout: %w", err)
	}

	for name, raw := range map[string]string{"storage_url": c.StorageURL, "thumbnail_storage_url": c.ThumbnailStorageURL} {
		if raw == "" && name == "thumbnail_storage_url" {
			continue
		}
		loc, err := parseStorageURL(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if loc.scheme == schemeFile && c.SigningSecret == "" {
			return fmt.Errorf("%s: signing_secret is required for file storage", name)
		}
	}

	return nil
}

type storageScheme string

const (
	schemeMemory storageScheme = "memory"
	schemeFile   storageScheme = "file"
	schemeS3     storageScheme = "s3"
)

// storageLocation is a parsed storage URL
type storageLocation struct {
	scheme storageScheme
	name   string // memory store name, fs directory or bucket
	query  url.Values
}

func parseStorageURL(raw string) (storageLocation, error) {
	if raw == "" || raw == "memory" {
		return storageLocation{scheme: schemeMemory, name: "images"}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return storageLocation{}, fmt.Errorf("invalid storage URL %q: %w", raw, err)
	}

	loc := storageLocation{scheme: storageScheme(u.Scheme), query: u.Query()}
	switch loc.scheme {
	case schemeMemory:
		loc.name = u.Host
		if loc.name == "" {
			loc.name = "images"
		}
	case schemeFile:
		loc.name = u.Path
		if loc.name == "" {
			return storageLocation{}, errors.New("filesystem path cannot be empty in storage URL")
		}
	case schemeS3:
		loc.name = u.Host
		if loc.name == "" {
			return storageLocation{}, errors.New("S3 bucket name cannot be empty in storage URL")
		}
	default:
		return storageLocation{}, fmt.Errorf("unsupported storage URL %q (use 'memory://', 'file://...', or 's3://...')", raw)
	}
	return loc, nil
}
