package config

import (
	"time"

	platformconfig "payaid/internal/platform/config"
)

type Config struct {
	Port                     string        `env:"AUTH_PORT" envDefault:"8081"`
	DatabaseURL              string        `env:"DB_DSN,required"`
	LogLevel                 string        `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret                string        `env:"JWT_SECRET,required"`
	JWTIssuer                string        `env:"JWT_ISSUER" envDefault:"payaid-auth"`
	AccessTokenTTL           time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL          time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	SSOSharedSecret          string        `env:"AUTH_SSO_SHARED_SECRET"`
	CORSAllowedOrigins       string        `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute       int           `env:"AUTH_RATE_LIMIT_PER_MIN" envDefault:"120"`
	RateLimitBurst           int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"30"`
	TenantRateLimitPerMinute int           `env:"AUTH_TENANT_RATE_LIMIT_PER_MIN" envDefault:"300"`
	TenantRateLimitBurst     int           `env:"AUTH_TENANT_RATE_LIMIT_BURST" envDefault:"60"`
}

func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) AllowedOrigins() []string {
	return platformconfig.SplitList(c.CORSAllowedOrigins)
}
