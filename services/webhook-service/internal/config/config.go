package config

import (
	"time"

	platformconfig "payaid/internal/platform/config"
)

type Config struct {
	Port           string `env:"WEBHOOK_PORT" envDefault:"8082"`
	DatabaseURL    string `env:"DB_DSN,required"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	PollSeconds    int    `env:"WEBHOOK_POLL_SECONDS" envDefault:"5"`
	BatchSize      int    `env:"WEBHOOK_BATCH_SIZE" envDefault:"50"`
	Concurrency    int    `env:"WEBHOOK_CONCURRENCY" envDefault:"4"`
	MaxFailures    int    `env:"WEBHOOK_MAX_FAILURES" envDefault:"10"`
	TimeoutSeconds int    `env:"WEBHOOK_TIMEOUT_SECONDS" envDefault:"10"`
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
		return 5 * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
