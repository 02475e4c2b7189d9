package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/lmittmann/tint"
)

// NewLogger returns a JSON logger in production and a colored console
// logger everywhere else.
func (c *ServerConfig) NewLogger() *slog.Logger {
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}

// NewRequestLogger returns the HTTP access logger for service
func (c *ServerConfig) NewRequestLogger(service string) *httplog.Logger {
	return httplog.NewLogger(service, httplog.Options{
		JSON:     c.IsProduction(),
		LogLevel: slog.LevelInfo,
		Concise:  !c.IsProduction(),
	})
}
