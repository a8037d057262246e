package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envTestConfig struct {
	Port     string        `env:"PAYAID_TEST_PORT" envDefault:"8080"`
	Interval time.Duration `env:"PAYAID_TEST_INTERVAL" envDefault:"5s"`
	Burst    int           `env:"PAYAID_TEST_BURST" envDefault:"30"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 30, cfg.Burst)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("PAYAID_TEST_BURST", "lots")
	var cfg envTestConfig
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, SplitList(" http://a, ,http://b "))
	assert.Nil(t, SplitList(""))
}
