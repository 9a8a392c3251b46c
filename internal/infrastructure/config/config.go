// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback), optionally seeded from a .env file
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	tolerance, err := cfg.Matching.ToleranceDecimal()
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatchingConfig holds subset search settings
type MatchingConfig struct {
	Tolerance      string `yaml:"tolerance"`       // Absolute slack in currency units, e.g. "0.02"
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Wall-clock budget per search
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"` // Empty disables authentication
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults
const (
	DefaultDatabasePath   = "invoice_match.db"
	DefaultTolerance      = "0.02"
	DefaultTimeoutSeconds = 10
	DefaultPort           = 8080
)

// Default returns a configuration with every field at its default value.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{DatabasePath: DefaultDatabasePath},
		Matching: MatchingConfig{
			Tolerance:      DefaultTolerance,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		API: APIConfig{
			Port:           DefaultPort,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "text"},
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// Load reads and parses the config file. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${API_JWT_SECRET})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment. Variables that
// are already set are not overridden. An empty path loads ./.env and ignores
// a missing file; an explicit path must exist.
func LoadDotEnv(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.DatabasePath = getEnv("INVOICE_MATCH_DB_PATH", DefaultDatabasePath)
	cfg.Matching.Tolerance = getEnv("MATCH_TOLERANCE", DefaultTolerance)
	cfg.Matching.TimeoutSeconds = getEnvInt("MATCH_TIMEOUT_SECONDS", DefaultTimeoutSeconds)
	cfg.API.Port = getEnvInt("API_PORT", DefaultPort)
	cfg.API.JWTSecret = os.Getenv("API_JWT_SECRET")
	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", "text")
	cfg.Observability.Metrics.Enabled = getEnvBool("METRICS_ENABLED", true)

	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("storage.database_path is required"))
	}
	if tol, err := c.Matching.ToleranceDecimal(); err != nil {
		errs = append(errs, err)
	} else if tol.IsNegative() {
		errs = append(errs, fmt.Errorf("matching.tolerance must not be negative, got %s", tol))
	}
	if c.Matching.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("matching.timeout_seconds must be positive, got %d", c.Matching.TimeoutSeconds))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}

	return errors.Join(errs...)
}

// ToleranceDecimal parses the configured tolerance.
func (m MatchingConfig) ToleranceDecimal() (decimal.Decimal, error) {
	if m.Tolerance == "" {
		return decimal.RequireFromString(DefaultTolerance), nil
	}
	tol, err := decimal.NewFromString(m.Tolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid matching.tolerance %q: %w", m.Tolerance, err)
	}
	return tol, nil
}

// TimeoutDuration returns the search budget as a duration.
func (m MatchingConfig) TimeoutDuration() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
