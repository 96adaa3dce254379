// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Dedupe        DedupeConfig        `yaml:"dedupe"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration. Driver is "sqlite"
// (default) or "postgres".
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabasePath string `yaml:"database_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// DedupeConfig holds duplicate-detection tuning. VendorSuffixes lets
// jurisdictions beyond the built-in table extend the legal-entity
// suffix list without code changes; an empty list keeps the default
// table.
type DedupeConfig struct {
	WindowDays      int      `yaml:"window_days"`
	AmountTolerance string   `yaml:"amount_tolerance"`
	ToleranceMode   string   `yaml:"tolerance_mode"`
	SimilarityFloor float64  `yaml:"similarity_floor"`
	VendorSuffixes  []string `yaml:"vendor_suffixes"`
}

// EventsConfig holds duplicate-event publishing settings. Publishing
// is disabled when NATSURL is empty.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration. File enables rotating
// file output alongside stdout when set.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads and parses the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGER_PG_DSN})
	expanded := os.ExpandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := defaults()
	cfg.Server.Port = getEnvInt("LEDGER_PORT", cfg.Server.Port)
	if origins := os.Getenv("LEDGER_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.Storage.Driver = getEnv("LEDGER_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DatabasePath = getEnv("LEDGER_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Storage.PostgresDSN = os.Getenv("LEDGER_PG_DSN")
	cfg.Dedupe.WindowDays = getEnvInt("LEDGER_DEDUPE_WINDOW_DAYS", cfg.Dedupe.WindowDays)
	cfg.Dedupe.AmountTolerance = getEnv("LEDGER_DEDUPE_AMOUNT_TOLERANCE", cfg.Dedupe.AmountTolerance)
	cfg.Dedupe.ToleranceMode = getEnv("LEDGER_DEDUPE_TOLERANCE_MODE", cfg.Dedupe.ToleranceMode)
	cfg.Events.NATSURL = os.Getenv("LEDGER_NATS_URL")
	cfg.Events.Subject = getEnv("LEDGER_NATS_SUBJECT", cfg.Events.Subject)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	cfg.Observability.Logging.File = os.Getenv("LOG_FILE")
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment
// variables.
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back
// to environment variables.
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Storage: StorageConfig{
			Driver:       "sqlite",
			DatabasePath: "ngo_ledger.db",
		},
		Dedupe: DedupeConfig{
			WindowDays:      3,
			AmountTolerance: "0.00",
			ToleranceMode:   "absolute",
			SimilarityFloor: 0.95,
		},
		Events: EventsConfig{
			Subject: "ledger.duplicates.detected",
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback
// default.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
