package proxy

import (
	"strings"
	"time"
)

// Resolution is the outcome of resolving a request path against the table:
// a fully-built target URL and the timeout for the upstream call.
type Resolution struct {
	Target  string
	Timeout time.Duration
	Rule    *CompiledRule // nil in direct-passthrough mode
	Direct  bool
}

// Dispatcher resolves request paths against a rule table.
type Dispatcher struct {
	table          *Table
	defaultTimeout time.Duration
}

// NewDispatcher creates a dispatcher reading from table. defaultTimeout
// applies to direct-passthrough calls and to rules without a timeout.
func NewDispatcher(table *Table, defaultTimeout time.Duration) *Dispatcher {
	return &Dispatcher{table: table, defaultTimeout: defaultTimeout}
}

// Resolve maps a request path (and raw query string) to a target URL.
//
// Direct passthrough is checked first and short-circuits rule matching: a
// path of the form /{prefix}/https://host/... forwards to the embedded URL
// even when a rule would also match. Otherwise rules are scanned in snapshot
// order and the first match wins. Returns false when nothing matches.
//
// Resolve touches no shared mutable state and is safe for any number of
// concurrent callers.
func (d *Dispatcher) Resolve(path, rawQuery string) (*Resolution, bool) {
	directPrefix := "/" + d.table.DirectPrefix() + "/"
	if rest, ok := strings.CutPrefix(path, directPrefix); ok {
		if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
			return &Resolution{
				Target:  appendQuery(rest, rawQuery),
				Timeout: d.defaultTimeout,
				Direct:  true,
			}, true
		}
	}

	for _, rule := range d.table.Rules() {
		target, ok := rule.MatchTarget(path)
		if !ok {
			continue
		}
		timeout := rule.Timeout
		if timeout <= 0 {
			timeout = d.defaultTimeout
		}
		return &Resolution{
			Target:  appendQuery(target, rawQuery),
			Timeout: timeout,
			Rule:    rule,
		}, true
	}

	return nil, false
}

func appendQuery(target, rawQuery string) string {
	if rawQuery == "" {
		return target
	}
	return target + "?" + rawQuery
}
