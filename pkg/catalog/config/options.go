package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorage sets the image store URL
func WithStorage(storageURL string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseStorageURL(storageURL); err != nil {
			return err
		}
		c.StorageURL = storageURL
		return nil
	}
}

// WithThumbnailStorage sets a separate thumbnail store URL
func WithThumbnailStorage(storageURL string) Option {
	return func(c *ServerConfig) error {
		if _, err := parseStorageURL(storageURL); err != nil {
			return err
		}
		c.ThumbnailStorageURL = storageURL
		return nil
	}
}

// WithS3Credentials sets the credentials used by s3:// stores
func WithS3Credentials(region, accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if region != "" {
			c.S3.Region = region
		}
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithSigningSecret sets the HMAC key for filesystem media URLs
func WithSigningSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.SigningSecret = secret
		return nil
	}
}

// WithPublicBaseURL sets the base URL filesystem media URLs are served from
func WithPublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("public base URL cannot be empty")
		}
		c.PublicBaseURL = baseURL
		return nil
	}
}

// WithJWTSecret sets the HS256 key for API tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("JWT secret cannot be empty")
		}
		c.JWTSecret = secret
		return nil
	}
}

// WithPlaceholderKey sets the object shown before an image's release
func WithPlaceholderKey(key string) Option {
	return func(c *ServerConfig) error {
		if key == "" {
			return fmt.Errorf("placeholder key cannot be empty")
		}
		c.PlaceholderKey = key
		return nil
	}
}

// WithURLValidity sets how long signed media URLs stay valid
func WithURLValidity(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("URL validity must be positive, got: %s", d)
		}
		c.URLValidity = d
		return nil
	}
}

// WithPreferThumbnails toggles serving thumbnails for released images
func WithPreferThumbnails(prefer bool) Option {
	return func(c *ServerConfig) error {
		c.PreferThumbnails = prefer
		return nil
	}
}

// WithReleaseDelay sets how long after upload an image is released
func WithReleaseDelay(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d < 0 {
			return fmt.Errorf("release delay must not be negative, got: %s", d)
		}
		c.ReleaseDelay = d
		return nil
	}
}

// WithKeyLayout selects how uploaded image keys are built: flat or sharded
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.KeyLayout = layout
		return nil
	}
}

// WithEventTopic sets the CloudEvents endpoint and its access key
func WithEventTopic(endpoint, key string) Option {
	return func(c *ServerConfig) error {
		c.EventTopicEndpoint = endpoint
		c.EventTopicKey = key
		return nil
	}
}

// WithAllowedOrigins sets the CORS origins
func WithAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.AllowedOrigins = origins
		return nil
	}
}
