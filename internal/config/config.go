package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Data struct {
		Sources        []string
		Encoding       string
		Sheet          string
		OutlierColumns []string
		SnapshotPath   string
	}

	Scheduler struct {
		ReloadSchedule       string
		CacheCleanupSchedule string
		WatchSources         bool
		WatchDebounce        time.Duration
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	HTTP struct {
		Timeout time.Duration
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = envDuration("FIBER_READ_TIMEOUT", 10*time.Second)
	cfg.Server.WriteTimeout = envDuration("FIBER_WRITE_TIMEOUT", 30*time.Second)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Data sources; DATA_SOURCES is a comma separated list of files, directories and URLs
	cfg.Data.Sources = splitList(getEnv("DATA_SOURCES", "./PRSA_Data_20130301-20170228"))
	cfg.Data.Encoding = getEnv("SOURCE_ENCODING", "")
	cfg.Data.Sheet = getEnv("XLSX_SHEET", "")
	cfg.Data.OutlierColumns = splitList(getEnv("OUTLIER_COLUMNS", ""))
	cfg.Data.SnapshotPath = getEnv("SNAPSHOT_PATH", "")

	// Background jobs
	cfg.Scheduler.ReloadSchedule = getEnv("RELOAD_SCHEDULE", "")
	cfg.Scheduler.CacheCleanupSchedule = getEnv("CACHE_CLEANUP_SCHEDULE", "@every 1m")
	cfg.Scheduler.WatchSources = envBool("WATCH_SOURCES", false)
	cfg.Scheduler.WatchDebounce = envDuration("WATCH_DEBOUNCE", 2*time.Second)

	// Dashboard cache
	cfg.Cache.Duration = envDuration("CACHE_DURATION", 10*time.Minute)
	cfg.Cache.MaxSize = envInt("MAX_CACHE_SIZE", 256)

	// Remote sources
	cfg.HTTP.Timeout = envDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg.CircuitBreaker.Threshold = envInt("CIRCUIT_BREAKER_THRESHOLD", 3)
	cfg.CircuitBreaker.Timeout = envDuration("CIRCUIT_BREAKER_TIMEOUT", 30*time.Second)
	cfg.Retry.MaxRetries = envInt("MAX_RETRIES", 3)
	cfg.Retry.Delay = envDuration("RETRY_DELAY", time.Second)
	cfg.Retry.Multiplier = envFloat("RETRY_MULTIPLIER", 2)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("FIBER_PORT must not be empty")
	}
	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("MAX_CACHE_SIZE must be at least 1, got %d", c.Cache.MaxSize)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Scheduler.WatchSources && c.Scheduler.WatchDebounce <= 0 {
		return fmt.Errorf("WATCH_DEBOUNCE must be positive when WATCH_SOURCES is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// The env* helpers fall back to the default when the variable is unset or malformed.

func envDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		warnInvalid(key, value, err)
		return defaultValue
	}
	return duration
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		warnInvalid(key, value, err)
		return defaultValue
	}
	return intValue
}

func envFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		warnInvalid(key, value, err)
		return defaultValue
	}
	return floatValue
}

func envBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		warnInvalid(key, value, err)
		return defaultValue
	}
	return boolValue
}

func warnInvalid(key, value string, err error) {
	zap.L().Warn("Invalid environment value, using default",
		zap.String("key", key),
		zap.String("value", value),
		zap.Error(err))
}
