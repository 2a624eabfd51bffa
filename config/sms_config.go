package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends for the shared key-value store.
const (
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	// Shared store
	StoreBackend string `yaml:"store_backend"`
	RedisURL     string `yaml:"redis_url"`
	SharedDSN    string `yaml:"shared_dsn"` // postgres URL when StoreBackend is sql
	KeyPrefix    string `yaml:"key_prefix"`

	// Process-local fallback store (sqlite path)
	LocalStoreDSN string `yaml:"local_store_dsn"`

	// Filter
	FilterDeadlineMS int `yaml:"filter_deadline_ms"`

	// Breaker in front of the shared store
	BreakerTimeoutSec int `yaml:"breaker_timeout_sec"`

	// JWT for settings routes; empty disables auth
	JWTSecret string `yaml:"jwt_secret"`

	// Requests per minute per client on settings routes; 0 disables
	SettingsRateLimit int `yaml:"settings_rate_limit"`

	// CORS
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Run a history sync when the API starts
	SyncOnStart bool `yaml:"sync_on_start"`
}

func defaults() *Config {
	return &Config{
		Port:              "8080",
		Environment:       "development",
		LogLevel:          "info",
		StoreBackend:      BackendRedis,
		RedisURL:          "redis://localhost:6379/0",
		KeyPrefix:         "smsfilter",
		LocalStoreDSN:     "smsfilter_local.db",
		FilterDeadlineMS:  500,
		BreakerTimeoutSec: 30,
		SettingsRateLimit: 120,
		AllowedOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		SyncOnStart:       true,
	}
}

// Load builds the config from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", cfg.StoreBackend))
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SharedDSN = getEnv("DATABASE_URL", cfg.SharedDSN)
	cfg.KeyPrefix = getEnv("KEY_PREFIX", cfg.KeyPrefix)
	cfg.LocalStoreDSN = getEnv("LOCAL_STORE_DSN", cfg.LocalStoreDSN)

	cfg.FilterDeadlineMS = getEnvInt("FILTER_DEADLINE_MS", cfg.FilterDeadlineMS)
	cfg.BreakerTimeoutSec = getEnvInt("BREAKER_TIMEOUT_SEC", cfg.BreakerTimeoutSec)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.SettingsRateLimit = getEnvInt("SETTINGS_RATE_LIMIT", cfg.SettingsRateLimit)
	cfg.AllowedOrigins = getEnvSlice("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.SyncOnStart = getEnvBool("SYNC_ON_START", cfg.SyncOnStart)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendSQL:
		if c.SharedDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the sql backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.FilterDeadlineMS <= 0 {
		return fmt.Errorf("FILTER_DEADLINE_MS must be positive")
	}
	return nil
}

// FilterDeadline bounds one filter request.
func (c *Config) FilterDeadline() time.Duration {
	return time.Duration(c.FilterDeadlineMS) * time.Millisecond
}

// BreakerTimeout is how long the shared-store breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
