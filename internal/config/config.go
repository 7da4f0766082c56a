package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	AuthAPIURL        string `env:"AUTH_API_URL" envDefault:"http://localhost:7001/api"`
	CollectorAPIURL   string `env:"COLLECTOR_API_URL" envDefault:"http://localhost:5000"`
	RedisURL          string `env:"REDIS_URL,required"`
	DatabaseURL       string `env:"DATABASE_URL"`
	APITimeoutSeconds int    `env:"API_TIMEOUT_SECONDS" envDefault:"30"`
	RefreshIntervalS  int    `env:"REFRESH_INTERVAL_SECONDS" envDefault:"300"`
	RateLimitPerMin   int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	SecureCookies     bool   `env:"SECURE_COOKIES" envDefault:"false"`
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AuditEnabled reports whether the Postgres audit trail is configured.
// The gateway runs fine without it.
func (c *Config) AuditEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.AuthAPIURL, "http") {
		return fmt.Errorf("AUTH_API_URL must be an http(s) URL")
	}
	if !strings.HasPrefix(c.CollectorAPIURL, "http") {
		return fmt.Errorf("COLLECTOR_API_URL must be an http(s) URL")
	}
	if c.APITimeoutSeconds <= 0 {
		return fmt.Errorf("API_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
