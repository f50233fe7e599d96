// Package handlers implements the admin HTTP API and the embedded web UI.
package handlers

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"rule-proxy/internal/auth"
	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/config"
	"rule-proxy/internal/proxy"
	"rule-proxy/internal/storage"
)

// Handlers bundles the dependencies of the admin API endpoints.
type Handlers struct {
	storage storage.Storage
	auth    *auth.Service
	cfg     *config.Config
	table   *proxy.Table
	webFS   fs.FS

	// reload recompiles the rule table from storage after a mutation and
	// returns the number of rules loaded.
	reload func() (int, error)
}

// New creates the handler set. reload is invoked after every rule or setting
// mutation so the data path picks up changes without a restart.
func New(store storage.Storage, authService *auth.Service, cfg *config.Config, table *proxy.Table, webFS fs.FS, reload func() (int, error)) *Handlers {
	return &Handlers{
		storage: store,
		auth:    authService,
		cfg:     cfg,
		table:   table,
		webFS:   webFS,
		reload:  reload,
	}
}

// RegisterRoutes wires every admin endpoint onto the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/login", h.Login).Methods("POST")
	r.HandleFunc("/api/logout", h.Logout).Methods("POST")
	r.HandleFunc("/api/session", h.Session).Methods("GET")

	r.HandleFunc("/api/rules", h.ListRules).Methods("GET")
	r.HandleFunc("/api/rules", h.CreateRule).Methods("POST")
	r.HandleFunc("/api/rules/{id:[0-9]+}", h.GetRule).Methods("GET")
	r.HandleFunc("/api/rules/{id:[0-9]+}", h.UpdateRule).Methods("PUT")
	r.HandleFunc("/api/rules/{id:[0-9]+}", h.DeleteRule).Methods("DELETE")
	r.HandleFunc("/api/rules/{id:[0-9]+}/toggle", h.ToggleRule).Methods("POST")

	r.HandleFunc("/api/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/api/settings/{key}", h.UpdateSetting).Methods("PUT")

	r.HandleFunc("/api/status", h.Status).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")

	h.registerFrontend(r)
}

// apiResponse is the uniform JSON envelope for admin API responses.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error("Failed to encode response", err)
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: message})
}

// writeError maps an application error to the appropriate status code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsType(err, errors.ErrTypeNotFound):
		status = http.StatusNotFound
	case errors.IsType(err, errors.ErrTypeValidation):
		status = http.StatusBadRequest
	case errors.IsType(err, errors.ErrTypeAuth):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, apiResponse{Success: false, Message: err.Error()})
}

// Health reports storage connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Health(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Success: false, Message: "storage unavailable"})
		return
	}
	writeMessage(w, "ok")
}
