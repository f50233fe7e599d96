package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"rule-proxy/internal/common/errors"
)

// SQLiteStorage implements Storage backed by a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) the SQLite database at path and
// runs migrations.
func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL keeps reads from blocking behind admin writes.
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA temp_store = MEMORY`,
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS proxy_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			timeout_secs INTEGER DEFAULT 30,
			enabled BOOLEAN DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proxy_rules_enabled ON proxy_rules(enabled)`,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('` + SettingDirectProxyPath + `', 'proxy')`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close closes the database handle
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Health verifies the database connection
func (s *SQLiteStorage) Health() error {
	return s.db.Ping()
}

// CreateRule inserts a rule and fills in its assigned id
func (s *SQLiteStorage) CreateRule(rule *Rule) error {
	query := `INSERT INTO proxy_rules (name, source, target, timeout_secs, enabled)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := s.db.Exec(query, rule.Name, rule.Source, rule.Target, rule.TimeoutSecs, rule.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rule.ID = id
	return nil
}

// GetRule fetches a single rule by id
func (s *SQLiteStorage) GetRule(id int64) (*Rule, error) {
	query := `SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
			  FROM proxy_rules WHERE id = ?`

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
func (s *SQLiteStorage) ListRules() ([]*Rule, error) {
	return s.queryRules(`SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
						 FROM proxy_rules ORDER BY id`)
}

// ListEnabledRules returns enabled rules in ascending id order. This ordering
// is the rule evaluation priority.
func (s *SQLiteStorage) ListEnabledRules() ([]*Rule, error) {
	return s.queryRules(`SELECT id, name, source, target, timeout_secs, enabled, created_at, updated_at
						 FROM proxy_rules WHERE enabled = 1 ORDER BY id`)
}

func (s *SQLiteStorage) queryRules(query string) ([]*Rule, error) {
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
func (s *SQLiteStorage) UpdateRule(rule *Rule) error {
	query := `UPDATE proxy_rules SET name = ?, source = ?, target = ?, timeout_secs = ?,
			  enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.Exec(query, rule.Name, rule.Source, rule.Target, rule.TimeoutSecs, rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// DeleteRule removes a rule by id
func (s *SQLiteStorage) DeleteRule(id int64) error {
	result, err := s.db.Exec(`DELETE FROM proxy_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// SetRuleEnabled toggles a rule without touching its other fields
func (s *SQLiteStorage) SetRuleEnabled(id int64, enabled bool) error {
	query := `UPDATE proxy_rules SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.Exec(query, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	return requireRowAffected(result, "rule")
}

// GetSetting returns the value stored for key
func (s *SQLiteStorage) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errors.NotFoundError("setting")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

// SetSetting inserts or replaces a setting
func (s *SQLiteStorage) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// GetAllSettings returns every settings row
func (s *SQLiteStorage) GetAllSettings() (map[string]string, error) {
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

func requireRowAffected(result sql.Result, resource string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return errors.NotFoundError(resource)
	}
	return nil
}
