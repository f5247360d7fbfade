// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/citymarket/gateward/pkg/auth"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Store  StoreConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token and session settings.
// TokenSecret has no default: startup must fail when it is unset rather
// than fall back to a guessable literal.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	TokenIssuer string
	PermCache   PermCacheConfig
}

// PermCacheConfig sizes the in-process role-permission cache
type PermCacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// StoreConfig selects the session/user/permission backends. Empty URLs
// select the in-memory stores.
type StoreConfig struct {
	PostgresURL string
	RedisURL    string

	// PolicyOverridesPath points at an optional YAML file adjusting the
	// built-in rate limit policies.
	PolicyOverridesPath string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("GATEWARD_HOST", "0.0.0.0"),
			Port:            getEnv("GATEWARD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("GATEWARD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("GATEWARD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("GATEWARD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("GATEWARD_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("GATEWARD_HEALTH_PORT", "9090"),
		},
		Auth: AuthConfig{
			TokenSecret: os.Getenv("GATEWARD_TOKEN_SECRET"),
			TokenTTL:    getEnvDuration("GATEWARD_TOKEN_TTL", 24*time.Hour),
			TokenIssuer: getEnv("GATEWARD_TOKEN_ISSUER", "gateward"),
			PermCache: PermCacheConfig{
				Enabled: getEnvBool("GATEWARD_PERM_CACHE_ENABLED", true),
				Size:    getEnvInt("GATEWARD_PERM_CACHE_SIZE", 64),
				TTL:     getEnvDuration("GATEWARD_PERM_CACHE_TTL", 30*time.Second),
			},
		},
		Store: StoreConfig{
			PostgresURL:         getEnv("GATEWARD_POSTGRES_URL", ""),
			RedisURL:            getEnv("GATEWARD_REDIS_URL", ""),
			PolicyOverridesPath: getEnv("GATEWARD_POLICY_OVERRIDES", ""),
		},
		Log: LogConfig{
			Level: getEnv("GATEWARD_LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("GATEWARD_TOKEN_SECRET is required")
	}
	if len(c.Auth.TokenSecret) < auth.MinSecretLength {
		return fmt.Errorf("GATEWARD_TOKEN_SECRET must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.PermCache.Enabled {
		if c.Auth.PermCache.Size <= 0 {
			return fmt.Errorf("permission cache size must be positive")
		}
		if c.Auth.PermCache.TTL <= 0 {
			return fmt.Errorf("permission cache TTL must be positive")
		}
	}
	return nil
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
