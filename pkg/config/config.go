package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/residenciauni/residencia/pkg/observability"
)

// DefaultAPIURL is the backend used when nothing is configured
const DefaultAPIURL = "http://localhost:3000"

// Session backends
const (
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Config holds all client configuration
type Config struct {
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	Policy        PolicyConfig        `yaml:"policy"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Watch         WatchConfig         `yaml:"watch"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig selects where the logged-in identity is kept
type SessionConfig struct {
	Backend     string        `yaml:"backend"`
	File        string        `yaml:"file"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
	Name        string        `yaml:"name"`
}

// AuthConfig holds Google sign-in settings
type AuthConfig struct {
	GoogleClientID string `yaml:"google_client_id"`
	GoogleIssuer   string `yaml:"google_issuer"`
}

// PolicyConfig tunes the authorization predicate
type PolicyConfig struct {
	// LegacyUnowned lets own-grant roles manage records without an author
	LegacyUnowned bool `yaml:"legacy_unowned"`
}

// DashboardConfig holds dashboard cache settings
type DashboardConfig struct {
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
}

// WatchConfig holds the watch command schedule
type WatchConfig struct {
	Schedule string `yaml:"schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsFile receives a Prometheus textfile dump when set
	MetricsFile string `yaml:"metrics_file"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Format returns the parsed log format
func (o ObservabilityConfig) Format() observability.LogFormat {
	return observability.ParseLogFormat(o.LogFormat)
}

// OTel returns the OpenTelemetry settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Backend:     SessionBackendFile,
			File:        defaultSessionFile(),
			RedisPrefix: "residencia:",
			Name:        "default",
		},
		Auth: AuthConfig{
			GoogleIssuer: "https://accounts.google.com",
		},
		Policy: PolicyConfig{
			LegacyUnowned: true,
		},
		Dashboard: DashboardConfig{
			CacheTTL:  time.Minute,
			CacheSize: 64,
		},
		Watch: WatchConfig{
			Schedule: "@every 1m",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "residencia-cli",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by RESIDENCIA_CONFIG, and environment variables, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("RESIDENCIA_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays a YAML file on the current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides values with environment variables
func (c *Config) applyEnv() {
	c.API.BaseURL = strings.TrimRight(getEnv("RESIDENCIA_API_URL", c.API.BaseURL), "/")
	c.API.Timeout = getEnvDuration("RESIDENCIA_TIMEOUT", c.API.Timeout)

	c.Session.Backend = strings.ToLower(getEnv("RESIDENCIA_SESSION_BACKEND", c.Session.Backend))
	c.Session.File = getEnv("RESIDENCIA_SESSION_FILE", c.Session.File)
	c.Session.RedisURL = getEnv("RESIDENCIA_REDIS_URL", c.Session.RedisURL)
	c.Session.RedisPrefix = getEnv("RESIDENCIA_REDIS_PREFIX", c.Session.RedisPrefix)
	c.Session.RedisTTL = getEnvDuration("RESIDENCIA_REDIS_TTL", c.Session.RedisTTL)
	c.Session.Name = getEnv("RESIDENCIA_SESSION_NAME", c.Session.Name)
	if c.Session.RedisURL != "" && os.Getenv("RESIDENCIA_SESSION_BACKEND") == "" && c.Session.Backend == SessionBackendFile {
		c.Session.Backend = SessionBackendRedis
	}

	c.Auth.GoogleClientID = getEnv("RESIDENCIA_GOOGLE_CLIENT_ID", c.Auth.GoogleClientID)
	c.Auth.GoogleIssuer = getEnv("RESIDENCIA_GOOGLE_ISSUER", c.Auth.GoogleIssuer)

	c.Policy.LegacyUnowned = getEnvBool("RESIDENCIA_LEGACY_UNOWNED", c.Policy.LegacyUnowned)

	c.Dashboard.CacheTTL = getEnvDuration("RESIDENCIA_DASHBOARD_CACHE_TTL", c.Dashboard.CacheTTL)
	c.Dashboard.CacheSize = getEnvInt("RESIDENCIA_DASHBOARD_CACHE_SIZE", c.Dashboard.CacheSize)

	c.Watch.Schedule = getEnv("RESIDENCIA_WATCH_SCHEDULE", c.Watch.Schedule)

	c.Observability.LogLevel = getEnv("RESIDENCIA_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("RESIDENCIA_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsFile = getEnv("RESIDENCIA_METRICS_FILE", c.Observability.MetricsFile)
	c.Observability.OTelEnabled = getEnvBool("RESIDENCIA_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("RESIDENCIA_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("RESIDENCIA_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("RESIDENCIA_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("RESIDENCIA_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("RESIDENCIA_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("API base URL must include a host")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	switch c.Session.Backend {
	case SessionBackendFile:
		if c.Session.File == "" {
			return fmt.Errorf("session file is required for file sessions")
		}
	case SessionBackendRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis sessions")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("invalid session backend: %s (must be file, redis, or memory)", c.Session.Backend)
	}

	if c.Dashboard.CacheSize <= 0 {
		return fmt.Errorf("dashboard cache size must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "residencia", "session.json")
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
