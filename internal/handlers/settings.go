package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/storage"
)

type settingRequest struct {
	Value string `json:"value"`
}

// GetSettings returns every setting as a flat key/value map.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.storage.GetAllSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, settings)
}

// UpdateSetting stores a setting and applies it to the running proxy where
// the key is live-reloadable.
func (h *Handlers) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	if key == storage.SettingDirectProxyPath {
		if err := validateDirectPrefix(req.Value); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.storage.SetSetting(key, req.Value); err != nil {
		writeError(w, err)
		return
	}

	if key == storage.SettingDirectProxyPath {
		h.table.SetDirectPrefix(req.Value)
	}

	logging.Info("Updated setting",
		logging.String("key", key),
		logging.String("value", req.Value),
	)
	writeMessage(w, "setting updated")
}

// validateDirectPrefix rejects prefixes that would break path matching.
func validateDirectPrefix(value string) error {
	if value == "" {
		return errors.ValidationError("direct proxy path must not be empty")
	}
	if strings.Contains(value, "/") {
		return errors.ValidationError("direct proxy path must be a single path segment")
	}
	return nil
}
