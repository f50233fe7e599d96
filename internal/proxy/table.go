package proxy

import (
	"sync"
	"sync/atomic"

	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/storage"
)

// Table holds the active rule set and the direct-passthrough prefix as two
// independently swappable immutable snapshots.
//
// Readers load a snapshot once per request with a single atomic load and use
// it for that request's lifetime; a concurrent reload never tears or blocks
// a read. Writers build the replacement off to the side and publish it with
// one atomic store; reloads are serialized among themselves.
type Table struct {
	rules        atomic.Pointer[[]*CompiledRule]
	directPrefix atomic.Pointer[string]
	reloadMu     sync.Mutex
}

// NewTable creates an empty table with the given direct-passthrough prefix.
func NewTable(directPrefix string) *Table {
	t := &Table{}
	empty := []*CompiledRule{}
	t.rules.Store(&empty)
	t.directPrefix.Store(&directPrefix)
	return t
}

// Reload compiles records into a fresh snapshot and publishes it, returning
// the number of rules loaded. A rule that fails to compile is logged and
// dropped without aborting the rest of the reload. Record order (the store's
// ascending id order) is preserved as evaluation priority.
//
// Safe to call concurrently with reads and with itself.
func (t *Table) Reload(records []*storage.Rule) int {
	t.reloadMu.Lock()
	defer t.reloadMu.Unlock()

	compiled := make([]*CompiledRule, 0, len(records))
	for _, record := range records {
		if !record.Enabled {
			continue
		}
		rule, err := Compile(record.ID, record.Name, record.Source, record.Target, record.Timeout())
		if err != nil {
			logging.Error("Failed to compile rule", err,
				logging.String("name", record.Name),
				logging.String("source", record.Source),
			)
			continue
		}
		logging.Info("Loaded rule",
			logging.String("name", record.Name),
			logging.String("source", record.Source),
		)
		compiled = append(compiled, rule)
	}

	t.rules.Store(&compiled)
	logging.Info("Reloaded proxy rules", logging.Int("count", len(compiled)))
	return len(compiled)
}

// Rules returns the current rule snapshot. The returned slice is immutable;
// callers keep using it even if a reload publishes a newer one mid-request.
func (t *Table) Rules() []*CompiledRule {
	return *t.rules.Load()
}

// DirectPrefix returns the current direct-passthrough prefix.
func (t *Table) DirectPrefix() string {
	return *t.directPrefix.Load()
}

// SetDirectPrefix publishes a new direct-passthrough prefix without touching
// the rule snapshot.
func (t *Table) SetDirectPrefix(prefix string) {
	t.directPrefix.Store(&prefix)
}
