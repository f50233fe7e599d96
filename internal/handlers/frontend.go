package handlers

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"rule-proxy/internal/common/logging"
)

// registerFrontend serves the embedded admin UI. webFS is rooted at the
// static asset directory.
func (h *Handlers) registerFrontend(r *mux.Router) {
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(h.webFS))))

	r.HandleFunc("/login", h.servePage("login.html")).Methods("GET")
	r.HandleFunc("/", h.servePage("index.html")).Methods("GET")
}

func (h *Handlers) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := fs.ReadFile(h.webFS, name)
		if err != nil {
			logging.Error("Failed to read embedded page", err, logging.String("page", name))
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
