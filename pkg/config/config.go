package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all static application configuration. Runtime-tunable
// analysis parameters live in the settings store, not here.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	DataDir  string

	// Marketplace endpoints
	BuffBaseURL   string
	YoupinBaseURL string

	// Client pacing
	BuffMinInterval     time.Duration
	YoupinMinInterval   time.Duration
	RequestTimeout      time.Duration
	ConnectTimeout      time.Duration
	RetryMaxAttempts    int
	RetryBaseBackoff    time.Duration
	RetryMaxBackoff     time.Duration
	LongPauseEvery      int
	LongPauseMinSeconds float64
	LongPauseMaxSeconds float64

	// Fetch limits
	BuffPageSize    int
	YoupinPageSize  int
	BuffMaxPages    int
	YoupinMaxPages  int
	FetchFailureCap int

	// Scheduler cadences
	FullInterval        time.Duration
	IncrementalInterval time.Duration

	// Circuit breaker
	BreakerWindowSize     int
	BreakerOpenThreshold  float64
	BreakerCloseThreshold float64

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		DataDir:  getEnvOrDefault("DATA_DIR", "data"),

		// Marketplace endpoint defaults
		BuffBaseURL:   getEnvOrDefault("BUFF_BASE_URL", "https://buff.163.com"),
		YoupinBaseURL: getEnvOrDefault("YOUPIN_BASE_URL", "https://api.youpin898.com"),

		// Pacing defaults
		BuffMinInterval:     getDurationOrDefault("BUFF_MIN_INTERVAL", 2*time.Second),
		YoupinMinInterval:   getDurationOrDefault("YOUPIN_MIN_INTERVAL", 3*time.Second),
		RequestTimeout:      getDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ConnectTimeout:      getDurationOrDefault("CONNECT_TIMEOUT", 10*time.Second),
		RetryMaxAttempts:    getIntOrDefault("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseBackoff:    getDurationOrDefault("RETRY_BASE_BACKOFF", 1*time.Second),
		RetryMaxBackoff:     getDurationOrDefault("RETRY_MAX_BACKOFF", 10*time.Second),
		LongPauseEvery:      getIntOrDefault("LONG_PAUSE_EVERY", 10),
		LongPauseMinSeconds: getFloat64OrDefault("LONG_PAUSE_MIN_SECONDS", 3.0),
		LongPauseMaxSeconds: getFloat64OrDefault("LONG_PAUSE_MAX_SECONDS", 6.0),

		// Fetch limit defaults
		BuffPageSize:    getIntOrDefault("BUFF_PAGE_SIZE", 80),
		YoupinPageSize:  getIntOrDefault("YOUPIN_PAGE_SIZE", 100),
		BuffMaxPages:    getIntOrDefault("BUFF_MAX_PAGES", 2000),
		YoupinMaxPages:  getIntOrDefault("YOUPIN_MAX_PAGES", 2000),
		FetchFailureCap: getIntOrDefault("FETCH_FAILURE_CAP", 10),

		// Scheduler defaults
		FullInterval:        getDurationOrDefault("FULL_UPDATE_INTERVAL", 1*time.Hour),
		IncrementalInterval: getDurationOrDefault("INCREMENTAL_UPDATE_INTERVAL", 10*time.Minute),

		// Circuit breaker defaults
		BreakerWindowSize:     getIntOrDefault("BREAKER_WINDOW_SIZE", 20),
		BreakerOpenThreshold:  getFloat64OrDefault("BREAKER_OPEN_THRESHOLD", 0.5),
		BreakerCloseThreshold: getFloat64OrDefault("BREAKER_CLOSE_THRESHOLD", 0.2),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "skinarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "skinarb123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "skinarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.BuffBaseURL == "" {
		return fmt.Errorf("BUFF_BASE_URL cannot be empty")
	}

	if c.YoupinBaseURL == "" {
		return fmt.Errorf("YOUPIN_BASE_URL cannot be empty")
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}

	if c.LongPauseMinSeconds > c.LongPauseMaxSeconds {
		return fmt.Errorf("LONG_PAUSE_MIN_SECONDS %f exceeds LONG_PAUSE_MAX_SECONDS %f",
			c.LongPauseMinSeconds, c.LongPauseMaxSeconds)
	}

	if c.FullInterval <= 0 || c.IncrementalInterval <= 0 {
		return fmt.Errorf("update intervals must be positive")
	}

	if c.BreakerOpenThreshold <= c.BreakerCloseThreshold {
		return fmt.Errorf("BREAKER_OPEN_THRESHOLD %f must exceed BREAKER_CLOSE_THRESHOLD %f",
			c.BreakerOpenThreshold, c.BreakerCloseThreshold)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
