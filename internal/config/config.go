package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB      DBConfig
	YouTube YouTubeConfig
	Sync    SyncConfig
	Server  ServerConfig
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_NAME" default:"ytcatalog"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// YouTubeConfig holds the external API client configuration
type YouTubeConfig struct {
	APIKey           string        `envconfig:"YOUTUBE_API_KEY" required:"true"`
	BaseURL          string        `envconfig:"YOUTUBE_API_BASE_URL" default:"https://www.googleapis.com/youtube/v3"`
	ThumbnailBaseURL string        `envconfig:"YOUTUBE_THUMBNAIL_BASE_URL" default:"https://i.ytimg.com"`
	ThumbnailQuality string        `envconfig:"YOUTUBE_THUMBNAIL_QUALITY" default:"hqdefault"`
	Timeout          time.Duration `envconfig:"YOUTUBE_TIMEOUT" default:"30s"`
	RateLimit        float64       `envconfig:"YOUTUBE_RATE_LIMIT" default:"5"`
}

// SyncConfig holds the scheduled maintenance job configuration
type SyncConfig struct {
	Enabled         bool          `envconfig:"SYNC_ENABLED" default:"true"`
	Interval        time.Duration `envconfig:"SYNC_INTERVAL" default:"1h"`
	Full            bool          `envconfig:"SYNC_FULL" default:"false"`
	MaxAttempts     int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"5"`
	RetryDelay      time.Duration `envconfig:"SYNC_RETRY_DELAY" default:"5s"`
	SweepLimit      int           `envconfig:"SYNC_SWEEP_LIMIT" default:"500"`
	RefreshDuration bool          `envconfig:"SYNC_REFRESH_DURATION" default:"false"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.YouTube); err != nil {
		return nil, fmt.Errorf("failed to load youtube config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Sync); err != nil {
		return nil, fmt.Errorf("failed to load sync config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY is required")
	}
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.YouTube.RateLimit <= 0 {
		return fmt.Errorf("YOUTUBE_RATE_LIMIT must be positive")
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive")
	}
	if c.Sync.SweepLimit <= 0 {
		return fmt.Errorf("SYNC_SWEEP_LIMIT must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	return nil
}
