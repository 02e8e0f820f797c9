package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers understood by the server.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Media backends understood by the server.
const (
	MediaS3    = "s3"
	MediaMinIO = "minio"
	MediaNone  = "none"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	Tokens  TokenConfig
	Cookies CookieConfig
	Media   MediaConfig
	Log     LogConfig

	CORSOrigins    []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	UploadMaxBytes int64    `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

// TokenConfig carries the signing material for both token kinds.
type TokenConfig struct {
	Issuer        string        `env:"JWT_ISSUER" envDefault:"streamhub-backend"`
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"240h"`
}

// CookieConfig controls how session cookies are written.
type CookieConfig struct {
	Secure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	Domain string `env:"COOKIE_DOMAIN"`
}

// MediaConfig selects and configures the upload backend.
type MediaConfig struct {
	Backend   string `env:"MEDIA_BACKEND" envDefault:"s3"`
	Endpoint  string `env:"MEDIA_ENDPOINT"`
	Region    string `env:"MEDIA_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"MEDIA_BUCKET"`
	AccessKey string `env:"MEDIA_ACCESS_KEY"`
	SecretKey string `env:"MEDIA_SECRET_KEY"`
	UseSSL    bool   `env:"MEDIA_USE_SSL" envDefault:"true"`
	PublicURL string `env:"MEDIA_PUBLIC_URL"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	File      string `env:"LOG_FILE"`
	MaxSizeMB int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.Tokens.AccessSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET is required")
	}
	if c.Tokens.RefreshSecret == "" {
		return errors.New("REFRESH_TOKEN_SECRET is required")
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Tokens.AccessTTL >= c.Tokens.RefreshTTL {
		return errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}

	switch c.Media.Backend {
	case MediaS3, MediaMinIO:
		if c.Media.Bucket == "" {
			return errors.New("MEDIA_BUCKET is required")
		}
	case MediaNone:
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend)
	}
	if c.Media.Backend == MediaMinIO && c.Media.Endpoint == "" {
		return errors.New("MEDIA_ENDPOINT is required for the minio backend")
	}

	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.Media.Backend = strings.ToLower(strings.TrimSpace(c.Media.Backend))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.Tokens.AccessSecret = strings.TrimSpace(c.Tokens.AccessSecret)
	c.Tokens.RefreshSecret = strings.TrimSpace(c.Tokens.RefreshSecret)
	c.CORSOrigins = parseOrigins(c.CORSOrigins)
}

func parseOrigins(in []string) []string {
	var out []string
	for _, part := range in {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
