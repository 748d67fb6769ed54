// Package config loads service configuration from the environment.
// All keys are prefixed GATEHOUSE_.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the complete service configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the PostgreSQL connection pool
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// AuthConfig configures token signing and the password policy
type AuthConfig struct {
	SecretKey                string
	Algorithm                string
	AccessTokenExpireMinutes int
	PasswordRegex            string
	PasswordHelp             string
	BcryptCost               int
	// RedisURL enables Redis-backed login rate limiting when set
	RedisURL string
	// LoginRateLimit is the allowed login attempts per minute per client IP
	LoginRateLimit int
}

// ObservabilityConfig configures logging, metrics and health endpoints
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool
	// HealthPort serves /healthz, /readyz and /metrics separately from the API
	HealthPort int
}

// Load reads configuration from the environment, applying defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("GATEHOUSE_HOST", "0.0.0.0"),
			Port:            getEnvInt("GATEHOUSE_PORT", 8000),
			ReadTimeout:     getEnvDuration("GATEHOUSE_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:         getEnv("GATEHOUSE_DATABASE_URL", "postgres://localhost:5432/gatehouse?sslmode=disable"),
			MaxConns:    getEnvInt("GATEHOUSE_DB_MAX_CONNS", 20),
			MinConns:    getEnvInt("GATEHOUSE_DB_MIN_CONNS", 2),
			Timeout:     getEnvDuration("GATEHOUSE_DB_TIMEOUT", 5*time.Second),
			MaxLifetime: getEnvDuration("GATEHOUSE_DB_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("GATEHOUSE_DB_MAX_IDLE_TIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			SecretKey:                getEnv("GATEHOUSE_SECRET_KEY", ""),
			Algorithm:                getEnv("GATEHOUSE_ALGORITHM", "HS256"),
			AccessTokenExpireMinutes: getEnvInt("GATEHOUSE_ACCESS_TOKEN_EXPIRE_MINUTES", 30),
			PasswordRegex:            getEnv("GATEHOUSE_PASSWORD_REGEX", ""),
			PasswordHelp:             getEnv("GATEHOUSE_PASSWORD_HELP", ""),
			BcryptCost:               getEnvInt("GATEHOUSE_BCRYPT_COST", 0),
			RedisURL:                 getEnv("GATEHOUSE_REDIS_URL", ""),
			LoginRateLimit:           getEnvInt("GATEHOUSE_LOGIN_RATE_LIMIT", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("GATEHOUSE_LOG_LEVEL", "info"),
			MetricsEnabled: getEnvBool("GATEHOUSE_METRICS_ENABLED", true),
			HealthPort:     getEnvInt("GATEHOUSE_HEALTH_PORT", 8001),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working service
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("GATEHOUSE_SECRET_KEY is required")
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported GATEHOUSE_ALGORITHM: %s", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("GATEHOUSE_ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid GATEHOUSE_PORT: %d", c.Server.Port)
	}
	if c.Observability.HealthPort == c.Server.Port {
		return fmt.Errorf("GATEHOUSE_HEALTH_PORT must differ from GATEHOUSE_PORT")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("GATEHOUSE_DATABASE_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
