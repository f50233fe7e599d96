package proxy

import (
	"testing"
	"time"

	"rule-proxy/internal/storage"
)

func newTestDispatcher(t *testing.T, rules ...*storage.Rule) (*Dispatcher, *Table) {
	t.Helper()
	table := NewTable("proxy")
	table.Reload(rules)
	return NewDispatcher(table, 30*time.Second), table
}

func TestResolveRuleMatch(t *testing.T) {
	d, _ := newTestDispatcher(t,
		record(1, "api", "/api/{id}/info", "http://backend/v2/{id}", true),
	)

	res, ok := d.Resolve("/api/42/info", "")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Target != "http://backend/v2/42" {
		t.Errorf("Target = %q", res.Target)
	}
	if res.Direct {
		t.Error("rule match flagged as direct")
	}
	if res.Rule == nil || res.Rule.Name != "api" {
		t.Error("resolution missing rule")
	}
}

func TestResolveAppendsQuery(t *testing.T) {
	d, _ := newTestDispatcher(t,
		record(1, "api", "/api/{id}/info", "http://backend/v2/{id}", true),
	)

	res, ok := d.Resolve("/api/42/info", "x=1&y=2")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Target != "http://backend/v2/42?x=1&y=2" {
		t.Errorf("Target = %q", res.Target)
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	d, _ := newTestDispatcher(t,
		record(1, "narrow", "/api/{id}", "http://first/{id}", true),
		record(2, "broad", "/api/{*rest}", "http://second/{*rest}", true),
	)

	res, ok := d.Resolve("/api/42", "")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Target != "http://first/42" {
		t.Errorf("Target = %q, want first rule to win", res.Target)
	}
}

func TestResolveRuleTimeout(t *testing.T) {
	slow := record(1, "slow", "/slow/{id}", "http://slow/{id}", true)
	slow.TimeoutSecs = 120
	zero := record(2, "zero", "/zero/{id}", "http://zero/{id}", true)
	zero.TimeoutSecs = 0

	d, _ := newTestDispatcher(t, slow, zero)

	res, _ := d.Resolve("/slow/1", "")
	if res.Timeout != 120*time.Second {
		t.Errorf("rule timeout = %v, want 120s", res.Timeout)
	}

	res, _ = d.Resolve("/zero/1", "")
	if res.Timeout != 30*time.Second {
		t.Errorf("zero timeout fell back to %v, want default 30s", res.Timeout)
	}
}

func TestResolveDirectPassthrough(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res, ok := d.Resolve("/proxy/https://example.com/some/path", "a=b")
	if !ok {
		t.Fatal("expected direct match")
	}
	if !res.Direct {
		t.Error("not flagged direct")
	}
	if res.Target != "https://example.com/some/path?a=b" {
		t.Errorf("Target = %q", res.Target)
	}
	if res.Timeout != 30*time.Second {
		t.Errorf("direct timeout = %v, want default", res.Timeout)
	}
	if res.Rule != nil {
		t.Error("direct resolution carries a rule")
	}
}

func TestResolveDirectBeatsRules(t *testing.T) {
	d, _ := newTestDispatcher(t,
		record(1, "catchall", "/proxy/{*rest}", "http://rule-target/{*rest}", true),
	)

	res, ok := d.Resolve("/proxy/http://example.com/x", "")
	if !ok {
		t.Fatal("expected a match")
	}
	if !res.Direct {
		t.Fatalf("direct passthrough must win over rules, got target %q", res.Target)
	}

	// A non-URL remainder falls through to the rules.
	res, ok = d.Resolve("/proxy/plain/path", "")
	if !ok {
		t.Fatal("expected rule match")
	}
	if res.Direct {
		t.Error("non-URL remainder treated as direct")
	}
	if res.Target != "http://rule-target/plain/path" {
		t.Errorf("Target = %q", res.Target)
	}
}

func TestResolveDirectPrefixSwap(t *testing.T) {
	d, table := newTestDispatcher(t)

	if _, ok := d.Resolve("/fetch/https://example.com/", ""); ok {
		t.Fatal("unexpected match before prefix swap")
	}

	table.SetDirectPrefix("fetch")
	res, ok := d.Resolve("/fetch/https://example.com/", "")
	if !ok || !res.Direct {
		t.Fatal("expected direct match after prefix swap")
	}
}

func TestResolveNoMatch(t *testing.T) {
	d, _ := newTestDispatcher(t,
		record(1, "api", "/api/{id}", "http://backend/{id}", true),
	)

	if _, ok := d.Resolve("/other/path", ""); ok {
		t.Error("unexpected match")
	}
}
