package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Load()
	cfg.SessionSecret = "0123456789abcdef0123456789abcdef"
	cfg.AdminPassword = "hunter2"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ProxyPort != "3000" {
		t.Errorf("ProxyPort = %q, want 3000", cfg.ProxyPort)
	}
	if cfg.AdminPort != "8080" {
		t.Errorf("AdminPort = %q, want 8080", cfg.AdminPort)
	}
	if cfg.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.DefaultTimeout)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.LogRetentionDays != 7 {
		t.Errorf("LogRetentionDays = %d, want 7", cfg.LogRetentionDays)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROXY_PORT", "9000")
	t.Setenv("DEFAULT_TIMEOUT", "45s")
	t.Setenv("LOG_RETENTION_DAYS", "14")

	cfg := Load()
	if cfg.ProxyPort != "9000" {
		t.Errorf("ProxyPort = %q, want 9000", cfg.ProxyPort)
	}
	if cfg.DefaultTimeout != 45*time.Second {
		t.Errorf("DefaultTimeout = %v, want 45s", cfg.DefaultTimeout)
	}
	if cfg.LogRetentionDays != 14 {
		t.Errorf("LogRetentionDays = %d, want 14", cfg.LogRetentionDays)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing session secret", func(c *Config) { c.SessionSecret = "" }, true},
		{"short session secret", func(c *Config) { c.SessionSecret = "short" }, true},
		{"no password at all", func(c *Config) { c.AdminPassword = "" }, true},
		{"hash alone suffices", func(c *Config) {
			c.AdminPassword = ""
			c.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
		}, false},
		{"bad proxy port", func(c *Config) { c.ProxyPort = "notaport" }, true},
		{"port out of range", func(c *Config) { c.AdminPort = "70000" }, true},
		{"ports collide", func(c *Config) { c.AdminPort = c.ProxyPort }, true},
		{"zero timeout", func(c *Config) { c.DefaultTimeout = 0 }, true},
		{"unknown database type", func(c *Config) { c.DatabaseType = "oracle" }, true},
		{"postgres without host", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresHost = ""
		}, true},
		{"postgres complete", func(c *Config) { c.DatabaseType = "postgres" }, false},
		{"retention below one day", func(c *Config) { c.LogRetentionDays = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
