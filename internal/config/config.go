package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port            int    `env:"PORT" envDefault:"8080"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	RedisURL        string `env:"REDIS_URL,required"`
	RecordStoreURL  string `env:"RECORD_STORE_URL,required"`
	AuthServiceURL  string `env:"AUTH_SERVICE_URL,required"`
	PublicBaseURL   string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// ShareURL builds the user-facing link for a record's QR display page.
func (c *Config) ShareURL(recordID string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/qr/" + recordID
}

func (c *Config) Validate(isProduction bool) error {
	if !strings.HasPrefix(c.RecordStoreURL, "http://") && !strings.HasPrefix(c.RecordStoreURL, "https://") {
		return fmt.Errorf("RECORD_STORE_URL must be an http(s) URL")
	}
	if !strings.HasPrefix(c.AuthServiceURL, "http://") && !strings.HasPrefix(c.AuthServiceURL, "https://") {
		return fmt.Errorf("AUTH_SERVICE_URL must be an http(s) URL")
	}

	if isProduction {
		if strings.HasPrefix(c.RecordStoreURL, "http://") {
			log.Warn().Msg("RECORD_STORE_URL uses http:// (not TLS) in production")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
