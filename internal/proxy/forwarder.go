package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"rule-proxy/internal/common/logging"
)

// MaxRequestBodyBytes is the hard cap on inbound request bodies. Bodies over
// the cap are rejected with 413 rather than forwarded.
//
// Inbound bodies at or under the cap are read fully before the upstream call
// begins, while upstream response bodies stream to the client without
// buffering. The asymmetry is deliberate: it keeps outbound requests
// replay-safe and bounded while the response side, where large payloads
// actually live, stays incremental.
const MaxRequestBodyBytes = 100 << 20 // 100 MiB

// hopByHopHeaders are connection-level headers that must never cross the
// proxy boundary in either direction (RFC 7230 §6.1, plus Host).
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

// Forwarder relays a matched request to its upstream target and streams the
// response back. The underlying client and its connection pool are shared by
// all in-flight requests.
type Forwarder struct {
	client *http.Client
}

// NewForwarder creates a forwarder using the shared outbound client.
func NewForwarder(client *http.Client) *Forwarder {
	return &Forwarder{client: client}
}

// Forward executes the upstream call for r against targetURL and writes the
// outcome to w.
//
// Failures are per-request: the inbound body exceeding the cap yields 413, a
// deadline exceeded yields 504, any other transport failure yields 502. Once
// upstream headers have been relayed, a mid-stream error truncates the
// response; no clean error can be produced at that point.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, targetURL string, timeout time.Duration, clientIP string) {
	body, err := readBoundedBody(r.Body)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	outbound, err := http.NewRequestWithContext(ctx, r.Method, targetURL, bodyReader)
	if err != nil {
		http.Error(w, "Bad gateway", http.StatusBadGateway)
		return
	}

	copyHeaders(outbound.Header, r.Header)
	injectForwardingHeaders(outbound.Header, r.Header, targetURL, clientIP)

	resp, err := f.client.Do(outbound)
	if err != nil {
		status := http.StatusBadGateway
		if isTimeoutError(err) {
			status = http.StatusGatewayTimeout
		}
		logging.Error("Upstream call failed", err,
			logging.String("target", targetURL),
			logging.Int("status", status),
		)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	// io.Copy pulls from upstream only as fast as the client accepts
	// bytes, so backpressure propagates end to end.
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Warn("Response stream interrupted",
			logging.String("target", targetURL),
			logging.Err(err),
		)
	}
}

var errBodyTooLarge = errors.New("request body exceeds limit")

// readBoundedBody reads the inbound body up to MaxRequestBodyBytes, failing
// rather than truncating when the cap is exceeded.
func readBoundedBody(body io.ReadCloser) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxRequestBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxRequestBodyBytes {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// copyHeaders copies all headers except the hop-by-hop set.
func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHopHeader(name) {
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}

// injectForwardingHeaders sets the proxy-chain headers on the outbound
// request: X-Forwarded-For appends the client IP to any existing chain,
// X-Real-IP and X-Forwarded-Proto are set only when absent.
func injectForwardingHeaders(dst, inbound http.Header, targetURL, clientIP string) {
	if existing := inbound.Get("X-Forwarded-For"); existing != "" {
		dst.Set("X-Forwarded-For", existing+", "+clientIP)
	} else {
		dst.Set("X-Forwarded-For", clientIP)
	}

	if inbound.Get("X-Real-IP") == "" {
		dst.Set("X-Real-IP", clientIP)
	}

	if inbound.Get("X-Forwarded-Proto") == "" {
		proto := "http"
		if strings.HasPrefix(targetURL, "https://") {
			proto = "https"
		}
		dst.Set("X-Forwarded-Proto", proto)
	}
}

// isTimeoutError reports whether an upstream failure was a deadline rather
// than a connection or protocol error.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
