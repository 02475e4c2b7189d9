package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.DatabaseType != "memory" {
		t.Errorf("expected memory database, got: %s", cfg.DatabaseType)
	}
	if cfg.StorageURL != "memory://images" {
		t.Errorf("expected memory storage, got: %s", cfg.StorageURL)
	}
	if cfg.URLValidity != time.Hour {
		t.Errorf("expected 1h URL validity, got: %s", cfg.URLValidity)
	}
	if cfg.ReleaseDelay != 120*time.Hour {
		t.Errorf("expected 5 day release delay, got: %s", cfg.ReleaseDelay)
	}
	if !cfg.PreferThumbnails {
		t.Error("expected thumbnails to be preferred by default")
	}
}

func TestWithPort(t *testing.T) {
	cfg, err := Load(WithPort("9090"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got: %s", cfg.Port)
	}
}

func TestWithPortEmpty(t *testing.T) {
	_, err := Load(WithPort(""))
	if err == nil {
		t.Error("expected error for empty port, got nil")
	}
}

func TestWithDatabase(t *testing.T) {
	tests := []struct {
		name      string
		dbType    string
		url       string
		wantError bool
	}{
		{"memory valid", "memory", "", false},
		{"postgres valid", "postgres", "postgresql://localhost/test", false},
		{"postgres missing url", "postgres", "", true},
		{"invalid type", "mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithDatabase(tt.dbType, tt.url))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if cfg.DatabaseType != tt.dbType {
				t.Errorf("expected database type %s, got: %s", tt.dbType, cfg.DatabaseType)
			}
		})
	}
}

func TestWithStorage(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		wantError bool
	}{
		{"memory", []Option{WithStorage("memory://products")}, false},
		{"s3", []Option{WithStorage("s3://catalog-images?region=eu-west-1")}, false},
		{"file with secret", []Option{WithSigningSecret("s3cret"), WithStorage("file:///var/lib/catalog")}, false},
		{"file without secret", []Option{WithStorage("file:///var/lib/catalog")}, true},
		{"thumbnail file without secret", []Option{WithThumbnailStorage("file:///var/lib/thumbs")}, true},
		{"unknown scheme", []Option{WithStorage("ftp://host/images")}, true},
		{"empty bucket", []Option{WithStorage("s3://")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	if _, err := Load(WithEnvironment("production")); err == nil {
		t.Error("expected error for development JWT secret in production")
	}
	if _, err := Load(WithEnvironment("production"), WithJWTSecret("prod-secret")); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if _, err := Load(WithJWTSecret("")); err == nil {
		t.Error("expected error for empty JWT secret")
	}
}

func TestMediaOptions(t *testing.T) {
	cfg, err := Load(
		WithPlaceholderKey("soon.jpg"),
		WithURLValidity(15*time.Minute),
		WithPreferThumbnails(false),
		WithReleaseDelay(0),
		WithEventTopic("https://topic.example.com/api/events", "k"),
		WithAllowedOrigins("https://shop.example.com"),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.PlaceholderKey != "soon.jpg" || cfg.URLValidity != 15*time.Minute || cfg.PreferThumbnails || cfg.ReleaseDelay != 0 {
		t.Errorf("media options not applied: %+v", cfg)
	}
	if cfg.EventTopicEndpoint != "https://topic.example.com/api/events" || cfg.EventTopicKey != "k" {
		t.Errorf("event topic not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Errorf("expected one allowed origin, got: %v", cfg.AllowedOrigins)
	}

	if _, err := Load(WithURLValidity(0)); err == nil {
		t.Error("expected error for zero URL validity")
	}
	if _, err := Load(WithReleaseDelay(-time.Second)); err == nil {
		t.Error("expected error for negative release delay")
	}
}
