package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rule-proxy/internal/auth"
	"rule-proxy/internal/config"
	"rule-proxy/internal/proxy"
	"rule-proxy/internal/storage"
)

type testEnv struct {
	router *mux.Router
	store  storage.Storage
	table  *proxy.Table
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		ProxyPort:      "3000",
		AdminPort:      "8080",
		DefaultTimeout: 30 * time.Second,
		AdminUsername:  "admin",
		AdminPassword:  "hunter2",
		SessionSecret:  "0123456789abcdef0123456789abcdef",
	}

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	table := proxy.NewTable("proxy")
	reload := func() (int, error) {
		rules, err := store.ListEnabledRules()
		if err != nil {
			return 0, err
		}
		return table.Reload(rules), nil
	}

	webFS := fstest.MapFS{
		"index.html": {Data: []byte("<html>admin</html>")},
		"login.html": {Data: []byte("<html>login</html>")},
	}

	router := mux.NewRouter()
	New(store, auth.NewService(cfg), cfg, table, webFS, reload).RegisterRoutes(router)

	return &testEnv{router: router, store: store, table: table}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestRuleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, "POST", "/api/rules", map[string]interface{}{
		"name":   "api",
		"source": "/api/{id}/info",
		"target": "http://backend/v2/{id}",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	created := resp.Data.(map[string]interface{})
	id := strconv.Itoa(int(created["id"].(float64)))
	assert.Equal(t, float64(30), created["timeout_secs"], "zero timeout defaults")
	assert.Equal(t, true, created["enabled"])

	// The table reloaded on create.
	require.Len(t, env.table.Rules(), 1)

	rec, resp = env.do(t, "GET", "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	rec, _ = env.do(t, "PUT", "/api/rules/"+id, map[string]interface{}{
		"name":   "api-v3",
		"source": "/api/{id}/info",
		"target": "http://backend/v3/{id}",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://backend/v3/{id}", env.table.Rules()[0].Target)

	rec, _ = env.do(t, "POST", "/api/rules/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.table.Rules(), "disabled rule leaves the table")

	rec, _ = env.do(t, "DELETE", "/api/rules/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, "GET", "/api/rules/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"source": "/a/{x}", "target": "http://a/{x}"}},
		{"missing source", map[string]interface{}{"name": "a", "target": "http://a/{x}"}},
		{"missing target", map[string]interface{}{"name": "a", "source": "/a/{x}"}},
		{"negative timeout", map[string]interface{}{"name": "a", "source": "/a/{x}", "target": "http://a/{x}", "timeout_secs": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, "POST", "/api/rules", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestSettingsUpdate(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, "GET", "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := resp.Data.(map[string]interface{})
	assert.Equal(t, "proxy", settings[storage.SettingDirectProxyPath])

	rec, _ = env.do(t, "PUT", "/api/settings/"+storage.SettingDirectProxyPath,
		map[string]string{"value": "fetch"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fetch", env.table.DirectPrefix(), "live prefix updated")

	value, err := env.store.GetSetting(storage.SettingDirectProxyPath)
	require.NoError(t, err)
	assert.Equal(t, "fetch", value)

	// Invalid prefixes are rejected before hitting storage.
	for _, bad := range []string{"", "a/b"} {
		rec, _ = env.do(t, "PUT", "/api/settings/"+storage.SettingDirectProxyPath,
			map[string]string{"value": bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "value %q", bad)
	}
	assert.Equal(t, "fetch", env.table.DirectPrefix())
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, "POST", "/api/login", map[string]string{
		"username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, resp = env.do(t, "POST", "/api/login", map[string]string{
		"username": "admin", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	token := resp.Data.(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "session", cookies[0].Name)

	req := httptest.NewRequest("GET", "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	sessionRec := httptest.NewRecorder()
	env.router.ServeHTTP(sessionRec, req)

	var sessionResp apiResponse
	require.NoError(t, json.Unmarshal(sessionRec.Body.Bytes(), &sessionResp))
	data := sessionResp.Data.(map[string]interface{})
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, "admin", data["username"])
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["running"])
	assert.Equal(t, "3000", data["proxy_port"])
	assert.Equal(t, "proxy", data["direct_proxy_path"])
	assert.Equal(t, float64(0), data["rules_count"])
}

func TestFrontendPages(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin")

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login")
}
