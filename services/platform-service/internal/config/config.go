package config

import (
	"time"

	platformconfig "payaid/internal/platform/config"
)

type Config struct {
	Port                     string `env:"PLATFORM_PORT" envDefault:"8083"`
	DatabaseURL              string `env:"DB_DSN,required"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret                string `env:"JWT_SECRET,required"`
	JWTIssuer                string `env:"JWT_ISSUER" envDefault:"payaid-auth"`
	LicenseCacheTTLSeconds   int    `env:"LICENSE_CACHE_TTL_SECONDS" envDefault:"60"`
	BreakerFailureThreshold  int    `env:"DB_BREAKER_FAILURES" envDefault:"5"`
	BreakerResetSeconds      int    `env:"DB_BREAKER_RESET_SECONDS" envDefault:"30"`
	CORSAllowedOrigins       string `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute       int    `env:"PLATFORM_RATE_LIMIT_PER_MIN" envDefault:"120"`
	RateLimitBurst           int    `env:"PLATFORM_RATE_LIMIT_BURST" envDefault:"30"`
	TenantRateLimitPerMinute int    `env:"PLATFORM_TENANT_RATE_LIMIT_PER_MIN" envDefault:"300"`
	TenantRateLimitBurst     int    `env:"PLATFORM_TENANT_RATE_LIMIT_BURST" envDefault:"60"`
}

func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) LicenseCacheTTL() time.Duration {
	return time.Duration(c.LicenseCacheTTLSeconds) * time.Second
}

func (c Config) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

func (c Config) AllowedOrigins() []string {
	return platformconfig.SplitList(c.CORSAllowedOrigins)
}
