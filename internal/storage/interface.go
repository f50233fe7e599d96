// Package storage defines the persistence boundary for proxy rules and
// key/value settings, with interchangeable sqlite and postgres backends.
package storage

import (
	"time"
)

// SettingDirectProxyPath is the settings key holding the direct-passthrough
// path prefix used by the proxy dispatcher.
const SettingDirectProxyPath = "direct_proxy_path"

// Rule is a persisted proxy rule. Rules are evaluated in ascending id order;
// the first matching rule wins.
type Rule struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	TimeoutSecs int64     `json:"timeout_secs"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Timeout returns the rule's upstream timeout as a duration. Zero when the
// rule does not set one; callers substitute the configured default.
func (r *Rule) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// Storage is the persistence interface consumed by the admin API and the
// rule reload path.
type Storage interface {
	Close() error
	Health() error

	// Rules
	CreateRule(rule *Rule) error
	GetRule(id int64) (*Rule, error)
	ListRules() ([]*Rule, error)
	ListEnabledRules() ([]*Rule, error)
	UpdateRule(rule *Rule) error
	DeleteRule(id int64) error
	SetRuleEnabled(id int64, enabled bool) error

	// Settings
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	GetAllSettings() (map[string]string, error)
}
