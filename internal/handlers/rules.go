package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/proxy"
	"rule-proxy/internal/storage"
)

// ruleRequest is the JSON body for creating or updating a rule.
type ruleRequest struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	TimeoutSecs int64  `json:"timeout_secs"`
	Enabled     *bool  `json:"enabled"`
}

func (req *ruleRequest) validate() error {
	if req.Name == "" {
		return errors.ValidationError("name is required")
	}
	if req.Source == "" {
		return errors.ValidationError("source is required")
	}
	if req.Target == "" {
		return errors.ValidationError("target is required")
	}
	if req.TimeoutSecs < 0 {
		return errors.ValidationError("timeout_secs must not be negative")
	}
	// Reject templates the compiler would drop at reload time.
	if _, err := proxy.Compile(0, req.Name, req.Source, req.Target, 0); err != nil {
		return errors.ValidationError("source template does not compile: " + err.Error())
	}
	return nil
}

func ruleID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errors.ValidationError("invalid rule id")
	}
	return id, nil
}

// ListRules returns every rule, enabled or not, in priority order.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.storage.ListRules()
	if err != nil {
		writeError(w, err)
		return
	}
	if rules == nil {
		rules = []*storage.Rule{}
	}
	writeData(w, rules)
}

// GetRule returns a single rule by id.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rule)
}

// CreateRule inserts a rule and reloads the table.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	timeout := req.TimeoutSecs
	if timeout == 0 {
		timeout = int64(h.cfg.DefaultTimeout.Seconds())
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &storage.Rule{
		Name:        req.Name,
		Source:      req.Source,
		Target:      req.Target,
		TimeoutSecs: timeout,
		Enabled:     enabled,
	}
	if err := h.storage.CreateRule(rule); err != nil {
		writeError(w, err)
		return
	}

	h.reloadTable()
	logging.Info("Created rule",
		logging.Int64("id", rule.ID),
		logging.String("name", rule.Name),
	)
	writeData(w, rule)
}

// UpdateRule replaces a rule's fields and reloads the table.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	existing, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, err)
		return
	}

	existing.Name = req.Name
	existing.Source = req.Source
	existing.Target = req.Target
	if req.TimeoutSecs > 0 {
		existing.TimeoutSecs = req.TimeoutSecs
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	if err := h.storage.UpdateRule(existing); err != nil {
		writeError(w, err)
		return
	}

	h.reloadTable()
	logging.Info("Updated rule",
		logging.Int64("id", existing.ID),
		logging.String("name", existing.Name),
	)
	writeData(w, existing)
}

// DeleteRule removes a rule and reloads the table.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.storage.DeleteRule(id); err != nil {
		writeError(w, err)
		return
	}

	h.reloadTable()
	logging.Info("Deleted rule", logging.Int64("id", id))
	writeMessage(w, "rule deleted")
}

// ToggleRule flips a rule's enabled flag and reloads the table.
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rule, err := h.storage.GetRule(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.storage.SetRuleEnabled(id, !rule.Enabled); err != nil {
		writeError(w, err)
		return
	}
	rule.Enabled = !rule.Enabled

	h.reloadTable()
	logging.Info("Toggled rule",
		logging.Int64("id", id),
		logging.Bool("enabled", rule.Enabled),
	)
	writeData(w, rule)
}

func (h *Handlers) reloadTable() {
	if _, err := h.reload(); err != nil {
		logging.Error("Failed to reload rule table", err)
	}
}
