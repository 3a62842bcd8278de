// Package config defines the service configuration and its viper defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logger  logger.Config `mapstructure:"logger"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Search  SearchConfig  `mapstructure:"search"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	CKAN    CKANConfig    `mapstructure:"ckan"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Address is host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CrawlerConfig configures page fetching.
type CrawlerConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxBodySize     int           `mapstructure:"max_body_size"`
	Delay           time.Duration `mapstructure:"delay"`
	MaxDepth        int           `mapstructure:"max_depth"`
	Workers         int           `mapstructure:"workers"`
	IgnoreRobotsTxt bool          `mapstructure:"ignore_robots_txt"`
}

// SearchConfig configures the query engine and its HTTP limits.
type SearchConfig struct {
	DefaultLimit int     `mapstructure:"default_limit"`
	MaxLimit     int     `mapstructure:"max_limit"`
	Threshold    float64 `mapstructure:"threshold"`
}

// RefreshConfig configures the refresh schedule.
type RefreshConfig struct {
	Schedule string `mapstructure:"schedule"`
	OnStart  bool   `mapstructure:"on_start"`
}

// CatalogConfig locates the source catalog.
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// CKANConfig configures catalogue portal harvesting.
type CKANConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// Defaults.
const (
	DefaultPort         = 8095
	DefaultWorkers      = 4
	DefaultMaxDepth     = 2
	DefaultSearchLimit  = 50
	DefaultMaxLimit     = 100
	DefaultThreshold    = 0.4
	DefaultSchedule     = "0 3 * * *"
	DefaultCatalogPath  = "catalog.yml"
	DefaultCKANRetries  = 3
	DefaultMaxBodyBytes = 10 * 1024 * 1024
)

// SetDefaults registers defaults on v. Values from the environment or a config file win.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server", map[string]any{
		"host":             "0.0.0.0",
		"port":             DefaultPort,
		"read_timeout":     "15s",
		"write_timeout":    "30s",
		"idle_timeout":     "60s",
		"shutdown_timeout": "10s",
		"cors_origins":     []string{"*"},
	})
	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"format":       "json",
		"development":  false,
		"output_paths": []string{"stdout"},
	})
	v.SetDefault("crawler", map[string]any{
		"user_agent":        "gov-indexer/1.0 (+https://github.com/jonesrussell/north-cloud)",
		"timeout":           "10s",
		"max_body_size":     DefaultMaxBodyBytes,
		"delay":             "1s",
		"max_depth":         DefaultMaxDepth,
		"workers":           DefaultWorkers,
		"ignore_robots_txt": false,
	})
	v.SetDefault("search", map[string]any{
		"default_limit": DefaultSearchLimit,
		"max_limit":     DefaultMaxLimit,
		"threshold":     DefaultThreshold,
	})
	v.SetDefault("refresh", map[string]any{
		"schedule": DefaultSchedule,
		"on_start": true,
	})
	v.SetDefault("catalog", map[string]any{
		"path":  DefaultCatalogPath,
		"watch": false,
	})
	v.SetDefault("ckan", map[string]any{
		"enabled": true,
		"timeout": "30s",
		"retries": DefaultCKANRetries,
	})
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logger.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ValidationError names the first invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("invalid port: %d", c.Server.Port)}
	}
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "logger.level", Message: fmt.Sprintf("unknown level %q", c.Logger.Level)}
	}
	if c.Crawler.MaxDepth < 1 {
		return &ValidationError{Field: "crawler.max_depth", Message: "must be at least 1"}
	}
	if c.Crawler.Workers < 1 {
		return &ValidationError{Field: "crawler.workers", Message: "must be at least 1"}
	}
	if c.Crawler.Delay < 0 {
		return &ValidationError{Field: "crawler.delay", Message: "must not be negative"}
	}
	if c.Search.MaxLimit < 1 {
		return &ValidationError{Field: "search.max_limit", Message: "must be greater than 0"}
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return &ValidationError{
			Field:   "search.default_limit",
			Message: fmt.Sprintf("must be between 1 and %d", c.Search.MaxLimit),
		}
	}
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return &ValidationError{Field: "search.threshold", Message: "must be between 0 and 1"}
	}
	if c.CKAN.Retries < 0 {
		return &ValidationError{Field: "ckan.retries", Message: "must not be negative"}
	}
	return nil
}
