package storage

import (
	"fmt"

	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/config"
)

// NewStorage creates a storage adapter based on configuration
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return NewSQLite(cfg.DatabasePath)

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB,
			cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresSSLMode)
		return NewPostgres(dsn)

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}
