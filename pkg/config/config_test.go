package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "https://buff.163.com", cfg.BuffBaseURL)
	assert.Equal(t, "https://api.youpin898.com", cfg.YoupinBaseURL)
	assert.Equal(t, 2*time.Second, cfg.BuffMinInterval)
	assert.Equal(t, 3*time.Second, cfg.YoupinMinInterval)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 80, cfg.BuffPageSize)
	assert.Equal(t, 100, cfg.YoupinPageSize)
	assert.Equal(t, 2000, cfg.BuffMaxPages)
	assert.Equal(t, 1*time.Hour, cfg.FullInterval)
	assert.Equal(t, 10*time.Minute, cfg.IncrementalInterval)
	assert.Equal(t, "console", cfg.StorageMode)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BUFF_MIN_INTERVAL", "500ms")
	t.Setenv("BUFF_PAGE_SIZE", "40")
	t.Setenv("BREAKER_OPEN_THRESHOLD", "0.8")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.BuffMinInterval)
	assert.Equal(t, 40, cfg.BuffPageSize)
	assert.InDelta(t, 0.8, cfg.BreakerOpenThreshold, 1e-9)
}

func TestLoadFromEnvUnparseableValuesFallBack(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "lots")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.HTTPPort = "" }},
		{"empty buff url", func(c *Config) { c.BuffBaseURL = "" }},
		{"empty youpin url", func(c *Config) { c.YoupinBaseURL = "" }},
		{"zero retry attempts", func(c *Config) { c.RetryMaxAttempts = 0 }},
		{"inverted pause band", func(c *Config) { c.LongPauseMinSeconds = 9; c.LongPauseMaxSeconds = 3 }},
		{"zero full interval", func(c *Config) { c.FullInterval = 0 }},
		{"breaker thresholds inverted", func(c *Config) { c.BreakerOpenThreshold = 0.1 }},
		{"unknown storage mode", func(c *Config) { c.StorageMode = "redis" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, valid().Validate())
}
