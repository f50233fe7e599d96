// Package auth implements admin credential checks and JWT-backed sessions
// for the management API.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"rule-proxy/internal/common/errors"
	"rule-proxy/internal/config"
)

// SessionTTL is how long a login remains valid.
const SessionTTL = 24 * time.Hour

const sessionCookieName = "session"

// Service validates admin credentials and issues, verifies, and revokes
// session tokens.
type Service struct {
	cfg    *config.Config
	secret []byte

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewService creates the auth service from the loaded config.
func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:     cfg,
		secret:  []byte(cfg.SessionSecret),
		revoked: make(map[string]time.Time),
	}
}

// CheckCredentials verifies a username/password pair. When a bcrypt hash is
// configured it takes precedence over the plaintext password.
func (s *Service) CheckCredentials(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUsername)) != 1 {
		return false
	}

	if s.cfg.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
}

// CreateSession issues a signed session token for username.
func (s *Service) CreateSession(username string) (string, error) {
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", errors.InternalError("failed to generate session id", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        hex.EncodeToString(jti),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign session token", err)
	}
	return signed, nil
}

// ValidateToken verifies a session token and returns its username.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.AuthError("invalid session")
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return "", errors.AuthError("session revoked")
	}

	return claims.Subject, nil
}

// RevokeToken invalidates a session before its natural expiry. Unparseable
// tokens are ignored; logout is idempotent.
func (s *Service) RevokeToken(tokenString string) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || claims.ID == "" {
		return
	}

	expiry := time.Now().Add(SessionTTL)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	s.revoked[claims.ID] = expiry
	s.mu.Unlock()
}

// CleanupExpired drops revocation entries whose tokens have expired anyway.
func (s *Service) CleanupExpired() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jti, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, jti)
			removed++
		}
	}
	return removed
}

// SessionCookie builds the session cookie for a signed token.
func SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL.Seconds()),
	}
}

// ClearSessionCookie builds an expired session cookie.
func ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}

// TokenFromRequest extracts the session token from the session cookie or an
// Authorization bearer header. Returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// publicPaths need no session on the admin listener.
var publicPaths = map[string]bool{
	"/api/login":   true,
	"/api/session": true,
	"/login":       true,
	"/favicon.ico": true,
	"/health":      true,
	"/metrics":     true,
}

func isPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}

// RequireAuth gates the admin listener: API calls without a valid session get
// 401, page loads get redirected to /login.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := TokenFromRequest(r)
		if token != "" {
			if _, err := s.ValidateToken(token); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"authentication required"}`))
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}
