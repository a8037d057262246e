package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/payaid")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8084", cfg.Port)
	assert.False(t, cfg.ArchiveEnabled())
	assert.Equal(t, int64(10000000), cfg.B2CLThreshold())
	assert.Equal(t, "ap-south-1", cfg.ArchiveRegion)
}

func TestLoadArchiveSettings(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/payaid")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FINANCE_ARCHIVE_BUCKET", "returns")
	t.Setenv("FINANCE_B2CL_THRESHOLD_RUPEES", "250000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ArchiveEnabled())
	assert.Equal(t, int64(25000000), cfg.B2CLThreshold())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("DB_DSN"))
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	_, err := Load()
	assert.Error(t, err)
}
