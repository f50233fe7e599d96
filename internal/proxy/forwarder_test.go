package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rule-proxy/internal/common/httpclient"
)

func newTestForwarder() *Forwarder {
	return NewForwarder(httpclient.New())
}

func TestForwardRelaysRequestAndResponse(t *testing.T) {
	var gotMethod, gotBody string
	var gotHeader http.Header

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest("POST", "/api/thing", strings.NewReader("payload"))
	req.Header.Set("X-Custom", "value")
	req.RemoteAddr = "10.0.0.5:51234"
	rec := httptest.NewRecorder()

	newTestForwarder().Forward(rec, req, upstream.URL+"/api/thing", 5*time.Second, "10.0.0.5")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "created", rec.Body.String())
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "payload", gotBody)
	assert.Equal(t, "value", gotHeader.Get("X-Custom"))
}

func TestForwardStripsHopByHopHeaders(t *testing.T) {
	var gotHeader http.Header

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("Proxy-Authenticate", "Basic")
		w.Header().Set("X-Kept", "yes")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Proxy-Authorization", "secret")
	req.Header.Set("Te", "trailers")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("X-Kept", "yes")
	req.RemoteAddr = "10.0.0.5:1000"
	rec := httptest.NewRecorder()

	newTestForwarder().Forward(rec, req, upstream.URL+"/x", 5*time.Second, "10.0.0.5")

	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, gotHeader.Get("Proxy-Authorization"))
	assert.Empty(t, gotHeader.Get("Te"))
	assert.Empty(t, gotHeader.Get("Upgrade"))
	assert.Equal(t, "yes", gotHeader.Get("X-Kept"))

	assert.Empty(t, rec.Header().Get("Keep-Alive"))
	assert.Empty(t, rec.Header().Get("Proxy-Authenticate"))
	assert.Equal(t, "yes", rec.Header().Get("X-Kept"))
}

func TestForwardProxyChainHeaders(t *testing.T) {
	var gotHeader http.Header

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	t.Run("fresh chain", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "10.0.0.5:1000"
		rec := httptest.NewRecorder()

		newTestForwarder().Forward(rec, req, upstream.URL+"/x", 5*time.Second, "10.0.0.5")

		assert.Equal(t, "10.0.0.5", gotHeader.Get("X-Forwarded-For"))
		assert.Equal(t, "10.0.0.5", gotHeader.Get("X-Real-IP"))
		assert.Equal(t, "http", gotHeader.Get("X-Forwarded-Proto"))
	})

	t.Run("existing chain appended", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/x", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		req.Header.Set("X-Real-IP", "203.0.113.7")
		req.Header.Set("X-Forwarded-Proto", "https")
		req.RemoteAddr = "10.0.0.5:1000"
		rec := httptest.NewRecorder()

		newTestForwarder().Forward(rec, req, upstream.URL+"/x", 5*time.Second, "10.0.0.5")

		assert.Equal(t, "203.0.113.7, 10.0.0.5", gotHeader.Get("X-Forwarded-For"))
		assert.Equal(t, "203.0.113.7", gotHeader.Get("X-Real-IP"))
		assert.Equal(t, "https", gotHeader.Get("X-Forwarded-Proto"))
	})
}

func TestForwardTimeoutYields504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	req := httptest.NewRequest("GET", "/slow", nil)
	req.RemoteAddr = "10.0.0.5:1000"
	rec := httptest.NewRecorder()

	newTestForwarder().Forward(rec, req, upstream.URL+"/slow", 50*time.Millisecond, "10.0.0.5")

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestForwardConnectionErrorYields502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	req := httptest.NewRequest("GET", "/x", nil)
	req.RemoteAddr = "10.0.0.5:1000"
	rec := httptest.NewRecorder()

	newTestForwarder().Forward(rec, req, target+"/x", 5*time.Second, "10.0.0.5")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestReadBoundedBody(t *testing.T) {
	small, err := readBoundedBody(io.NopCloser(strings.NewReader("hello")))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(small))

	empty, err := readBoundedBody(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	over := io.NopCloser(io.LimitReader(zeroReader{}, MaxRequestBodyBytes+1))
	_, err = readBoundedBody(over)
	assert.ErrorIs(t, err, errBodyTooLarge)
}
