package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/payaid")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8085", cfg.Port)
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 100, cfg.BatchSize)
	assert.True(t, cfg.OutboxCleanup)
}

func TestLoadOrigins(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/payaid")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.payaid.in, https://admin.payaid.in")
	t.Setenv("REALTIME_POLL_SECONDS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.payaid.in", "https://admin.payaid.in"}, cfg.AllowedOrigins())
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
}
