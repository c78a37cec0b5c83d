package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"sjsage522/marketcrawler/services/cache"
)

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	StartURL          string
	MaxPages          int
	RequestDelay      time.Duration
	RequestTimeout    time.Duration
	FallbackThreshold int
	DetailBudget      int
	MaxBodyBytes      int64
	ProfilesFile      string

	// Persistence
	DatabasePath   string
	PersistWorkers int
	KnownURLCache  int

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisGroup           string
	RedisConsumer        string
	RedisStreamMaxLength int64

	// Memcache configuration
	MemcacheAddr  string
	BlockDuration time.Duration

	// Metrics
	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "marketcrawler"
	}

	return &Config{
		StartURL:             getEnv("START_URL", ""),
		MaxPages:             getEnvInt("MAX_PAGES", 10),
		RequestDelay:         time.Duration(getEnvInt("REQUEST_DELAY_MS", 1000)) * time.Millisecond,
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		FallbackThreshold:    getEnvInt("FALLBACK_THRESHOLD", 10),
		DetailBudget:         getEnvInt("DETAIL_BUDGET", 100),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		ProfilesFile:         getEnv("PROFILES_FILE", ""),
		DatabasePath:         getEnv("DATABASE_PATH", "marketcrawler.db"),
		PersistWorkers:       getEnvInt("PERSIST_WORKERS", 4),
		KnownURLCache:        getEnvInt("KNOWN_URL_CACHE", 4096),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "product-urls"),
		RedisGroup:           getEnv("REDIS_GROUP", "extractors"),
		RedisConsumer:        getEnv("REDIS_CONSUMER", hostname),
		RedisStreamMaxLength: int64(getEnvInt("REDIS_STREAM_MAX_LENGTH", 10000)),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		BlockDuration:        time.Duration(getEnvInt("BLOCK_DURATION_SECONDS", 300)) * time.Second,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("MARKETCRAWLER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the crawler cannot run with
func (c *Config) Validate() error {
	if c.StartURL != "" {
		u, err := url.Parse(c.StartURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("START_URL must be an absolute URL, got %q", c.StartURL)
		}
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY_MS must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.FallbackThreshold < 0 || c.DetailBudget < 0 {
		return fmt.Errorf("FALLBACK_THRESHOLD and DETAIL_BUDGET must not be negative")
	}
	if c.PersistWorkers <= 0 {
		return fmt.Errorf("PERSIST_WORKERS must be positive, got %d", c.PersistWorkers)
	}
	if c.BlockDuration < 0 || c.BlockDuration > cache.MaxExpiration {
		return fmt.Errorf("BLOCK_DURATION_SECONDS must be between 0 and %d", int(cache.MaxExpiration.Seconds()))
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return n
}
