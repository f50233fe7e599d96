package handlers

import (
	"encoding/json"
	"net/http"

	"rule-proxy/internal/auth"
	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/common/logging"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks credentials and issues a session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid request body"))
		return
	}

	if !h.auth.CheckCredentials(req.Username, req.Password) {
		logging.Warn("Failed login attempt",
			logging.String("username", req.Username),
			logging.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, errors.AuthError("invalid credentials"))
		return
	}

	token, err := h.auth.CreateSession(req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(token))
	logging.Info("Admin login", logging.String("username", req.Username))
	writeData(w, map[string]string{"token": token})
}

// Logout revokes the current session and clears the cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		h.auth.RevokeToken(token)
	}
	http.SetCookie(w, auth.ClearSessionCookie())
	writeMessage(w, "logged out")
}

// Session reports whether the caller holds a valid session.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		writeData(w, map[string]interface{}{"authenticated": false})
		return
	}

	username, err := h.auth.ValidateToken(token)
	if err != nil {
		writeData(w, map[string]interface{}{"authenticated": false})
		return
	}
	writeData(w, map[string]interface{}{
		"authenticated": true,
		"username":      username,
	})
}
