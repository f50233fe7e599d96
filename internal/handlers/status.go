package handlers

import (
	"net/http"
)

// Status reports the running configuration and the active rule count.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]interface{}{
		"running":           true,
		"proxy_port":        h.cfg.ProxyPort,
		"admin_port":        h.cfg.AdminPort,
		"rules_count":       len(h.table.Rules()),
		"direct_proxy_path": h.table.DirectPrefix(),
	})
}
