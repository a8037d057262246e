package config

import (
	"time"

	platformconfig "payaid/internal/platform/config"
)

type Config struct {
	Port                     string `env:"REALTIME_PORT" envDefault:"8085"`
	DatabaseURL              string `env:"DB_DSN,required"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret                string `env:"JWT_SECRET,required"`
	JWTIssuer                string `env:"JWT_ISSUER" envDefault:"payaid-auth"`
	PollSeconds              int    `env:"REALTIME_POLL_SECONDS" envDefault:"1"`
	BatchSize                int    `env:"REALTIME_BATCH_SIZE" envDefault:"100"`
	OutboxCleanup            bool   `env:"REALTIME_OUTBOX_CLEANUP" envDefault:"true"`
	CORSAllowedOrigins       string `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute       int    `env:"REALTIME_RATE_LIMIT_PER_MIN" envDefault:"600"`
	RateLimitBurst           int    `env:"REALTIME_RATE_LIMIT_BURST" envDefault:"100"`
	TenantRateLimitPerMinute int    `env:"REALTIME_TENANT_RATE_LIMIT_PER_MIN" envDefault:"3000"`
	TenantRateLimitBurst     int    `env:"REALTIME_TENANT_RATE_LIMIT_BURST" envDefault:"300"`
}

func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

func (c Config) AllowedOrigins() []string {
	return platformconfig.SplitList(c.CORSAllowedOrigins)
}
