package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads every env-tagged ServerConfig field from the process
// environment, applying the tag defaults for unset variables. Place it
// before programmatic options that should win over the environment.
//
// DATABASE_URL selects the repository: empty or "memory" keeps the
// in-memory repository, postgres:// and postgresql:// URLs select Postgres.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return applyDatabaseURL(c)
	}
}

// applyDatabaseURL derives DatabaseType from DatabaseURL
func applyDatabaseURL(c *ServerConfig) error {
	switch {
	case c.DatabaseURL == "" || c.DatabaseURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(c.DatabaseURL, "postgresql://"), strings.HasPrefix(c.DatabaseURL, "postgres://"):
		c.DatabaseType = "postgres"
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.DatabaseURL)
	}
	return nil
}

// EnvDescription lists the supported variables, for --help output.
func EnvDescription() (string, error) {
	var cfg ServerConfig
	return cleanenv.GetDescription(&cfg, nil)
}
