// Package config provides configuration management for the proxy service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PROXY_PORT: Proxy listener port (default: 3000)
//   - ADMIN_PORT: Admin interface port (default: 8080)
//   - DEFAULT_TIMEOUT: Default upstream timeout, e.g. "30s" (default: 30s)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./rule_proxy.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Admin Authentication:
//   - ADMIN_USERNAME: Admin login username (default: admin)
//   - ADMIN_PASSWORD: Admin login password (plaintext; ignored when a hash is set)
//   - ADMIN_PASSWORD_HASH: bcrypt hash of the admin password (preferred)
//   - SESSION_SECRET: Session token signing secret (required, minimum 32 characters)
//
// Logging:
//   - LOG_DIR: Directory for rolling log files (default: ./logs)
//   - LOG_MAX_SIZE: Max log file size in bytes before rotation (default: 104857600)
//   - LOG_RETENTION_DAYS: Days to keep rotated log files (default: 7)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the proxy service.
// Load it with Load() and validate with Validate() before use.
type Config struct {
	// Application settings
	ProxyPort      string        // Proxy listener port
	AdminPort      string        // Admin interface port
	DefaultTimeout time.Duration // Upstream timeout when a rule does not set one
	LogLevel       string        // Logging level (debug, info, warn, error)

	// Database configuration
	DatabaseType     string // Database type: "sqlite" or "postgres"
	DatabasePath     string // Path to SQLite database file
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode (disable, require, etc.)

	// Admin authentication
	AdminUsername     string // Admin login username
	AdminPassword     string // Plaintext admin password (fallback)
	AdminPasswordHash string // bcrypt hash of the admin password (preferred)
	SessionSecret     string // Secret key for session token signing (required)

	// Logging
	LogDir           string // Directory for rolling log files
	LogMaxSize       int64  // Max bytes per log file before rotation
	LogRetentionDays int    // Days to keep rotated log files
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults. Call Validate() before use.
func Load() *Config {
	return &Config{
		ProxyPort:      getEnv("PROXY_PORT", "3000"),
		AdminPort:      getEnv("ADMIN_PORT", "8080"),
		DefaultTimeout: getDurationEnv("DEFAULT_TIMEOUT", 30*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./rule_proxy.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "rule_proxy"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionSecret:     getEnv("SESSION_SECRET", ""),

		LogDir:           getEnv("LOG_DIR", "./logs"),
		LogMaxSize:       getInt64Env("LOG_MAX_SIZE", 100*1024*1024),
		LogRetentionDays: getIntEnv("LOG_RETENTION_DAYS", 7),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET environment variable is required")
	}

	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters long for security")
	}

	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	for _, p := range []struct{ name, value string }{
		{"PROXY_PORT", c.ProxyPort},
		{"ADMIN_PORT", c.AdminPort},
	} {
		if port, err := strconv.Atoi(p.value); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%s must be a valid port number between 1 and 65535", p.name)
		}
	}

	if c.ProxyPort == c.AdminPort {
		return fmt.Errorf("PROXY_PORT and ADMIN_PORT must differ")
	}

	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("DEFAULT_TIMEOUT must be positive")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.LogRetentionDays < 1 {
		return fmt.Errorf("LOG_RETENTION_DAYS must be at least 1")
	}

	return nil
}
