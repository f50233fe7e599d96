package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rule-proxy/internal/common/errors"
)

// PostgresStorage implements Storage backed by PostgreSQL via pgx.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgres connects to PostgreSQL with the given DSN and runs migrations.
func NewPostgres(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *PostgresStorage) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS proxy_rules (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			timeout_secs BIGINT DEFAULT 30,
			enabled BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_rules_enabled ON proxy_rules(enabled)`,
		`INSERT INTO settings (key, value) VALUES ('` + SettingDirectProxyPath + `', 'proxy')
		 ON CONFLICT (key) DO NOTHING`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close closes the database handle
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Health verifies the database connection
func (s *PostgresStorage) Health() error {
	return s.db.Ping()
}

// CreateRule inserts a rule and fills in its assigned id
func (s *PostgresStorage) CreateRule(rule *Rule) error {
	query := `INSERT INTO proxy_rules (name, source, target, timeout_secs, enabled)
			  VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := s.db.QueryRow(query, rule.Name, rule.Source, rule.Target, rule.TimeoutSecs, rule.Enabled).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetRule fetches a single rule by id
func (s *PostgresStorage) GetRule(id int64) (*Rule, error) {
	query := `SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
			  FROM proxy_rules WHERE id = $1`

	rule := &Rule{}
	err := s.db.QueryRow(query, id).Scan(&rule.ID, &rule.Name, &rule.Source, &rule.Target,
		&rule.TimeoutSecs, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("rule")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListRules returns all rules in ascending id order
func (s *PostgresStorage) ListRules() ([]*Rule, error) {
	return s.queryRules(`SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
						 FROM proxy_rules ORDER BY id`)
}

// ListEnabledRules returns enabled rules in ascending id order
func (s *PostgresStorage) ListEnabledRules() ([]*Rule, error) {
	return s.queryRules(`SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
						 FROM proxy_rules WHERE enabled ORDER BY id`)
}

func (s *PostgresStorage) queryRules(query string) ([]*Rule, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*Rule
	for rows.Next() {
		rule := &Rule{}
		err := rows.Scan(&rule.ID, &rule.Name, &rule.Source, &rule.Target,
			&rule.TimeoutSecs, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// UpdateRule updates all mutable fields of a rule
func (s *PostgresStorage) UpdateRule(rule *Rule) error {
	query := `UPDATE proxy_rules SET name = $1, source = $2, target = $3, timeout_secs = $4,
			  enabled = $5, updated_at = NOW() WHERE id = $6`

	result, err := s.db.Exec(query, rule.Name, rule.Source, rule.Target, rule.TimeoutSecs, rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// DeleteRule removes a rule by id
func (s *PostgresStorage) DeleteRule(id int64) error {
	result, err := s.db.Exec(`DELETE FROM proxy_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// SetRuleEnabled toggles a rule without touching its other fields
func (s *PostgresStorage) SetRuleEnabled(id int64, enabled bool) error {
	query := `UPDATE proxy_rules SET enabled = $1, updated_at = NOW() WHERE id = $2`

	result, err := s.db.Exec(query, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// GetSetting returns the value stored for key
func (s *PostgresStorage) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errors.NotFoundError("setting")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// SetSetting inserts or replaces a setting
func (s *PostgresStorage) SetSetting(key, value string) error {
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
			  ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// GetAllSettings returns every settings row
func (s *PostgresStorage) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	return settings, rows.Err()
}
