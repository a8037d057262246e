package config

import (
	"time"

	"payaid/internal/gst"
	platformconfig "payaid/internal/platform/config"
)

type Config struct {
	Port                     string `env:"FINANCE_PORT" envDefault:"8084"`
	DatabaseURL              string `env:"DB_DSN,required"`
	LogLevel                 string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret                string `env:"JWT_SECRET,required"`
	JWTIssuer                string `env:"JWT_ISSUER" envDefault:"payaid-auth"`
	LicenseCacheTTLSeconds   int    `env:"LICENSE_CACHE_TTL_SECONDS" envDefault:"60"`
	LicenseWatchSeconds      int    `env:"LICENSE_WATCH_INTERVAL_SECONDS" envDefault:"5"`
	BreakerFailureThreshold  int    `env:"DB_BREAKER_FAILURES" envDefault:"5"`
	BreakerResetSeconds      int    `env:"DB_BREAKER_RESET_SECONDS" envDefault:"30"`
	B2CLThresholdRupees      int64  `env:"FINANCE_B2CL_THRESHOLD_RUPEES" envDefault:"100000"`
	ArchiveBucket            string `env:"FINANCE_ARCHIVE_BUCKET"`
	ArchiveRegion            string `env:"AWS_REGION" envDefault:"ap-south-1"`
	ArchiveEndpoint          string `env:"FINANCE_ARCHIVE_ENDPOINT"`
	ArchiveBreakerFailures   int    `env:"ARCHIVE_BREAKER_FAILURES" envDefault:"3"`
	ArchiveBreakerResetSecs  int    `env:"ARCHIVE_BREAKER_RESET_SECONDS" envDefault:"60"`
	CORSAllowedOrigins       string `env:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute       int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	RateLimitBurst           int    `env:"RATE_LIMIT_BURST" envDefault:"30"`
	TenantRateLimitPerMinute int    `env:"TENANT_RATE_LIMIT_PER_MIN" envDefault:"600"`
	TenantRateLimitBurst     int    `env:"TENANT_RATE_LIMIT_BURST" envDefault:"120"`
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

func (c Config) LicenseWatchInterval() time.Duration {
	return time.Duration(c.LicenseWatchSeconds) * time.Second
}

func (c Config) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

func (c Config) ArchiveBreakerReset() time.Duration {
	return time.Duration(c.ArchiveBreakerResetSecs) * time.Second
}

// B2CLThreshold returns the threshold in paise.
func (c Config) B2CLThreshold() int64 {
	if c.B2CLThresholdRupees <= 0 {
		return gst.DefaultB2CLThreshold
	}
	return c.B2CLThresholdRupees * 100
}

func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

func (c Config) AllowedOrigins() []string {
	return platformconfig.SplitList(c.CORSAllowedOrigins)
}
