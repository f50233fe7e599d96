package proxy

import (
	"net"
	"net/http"
	"time"

	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/metrics"
)

// Handler is the proxy listener's entry point: it resolves each request
// against the rule table and forwards matches upstream.
type Handler struct {
	dispatcher *Dispatcher
	forwarder  *Forwarder
}

// NewHandler creates the proxy handler.
func NewHandler(dispatcher *Dispatcher, forwarder *Forwarder) *Handler {
	return &Handler{dispatcher: dispatcher, forwarder: forwarder}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	start := time.Now()
	clientIP := clientAddr(r)

	resolution, ok := h.dispatcher.Resolve(r.URL.Path, r.URL.RawQuery)
	if !ok {
		metrics.ProxyRequests.WithLabelValues("none", "no_match").Inc()
		logging.Warn("No rule matched",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("client_ip", clientIP),
		)
		http.Error(w, "No matching proxy rule", http.StatusNotFound)
		return
	}

	mode := "rule"
	if resolution.Direct {
		mode = "direct"
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	h.forwarder.Forward(sw, r, resolution.Target, resolution.Timeout, clientIP)

	outcome := "success"
	if sw.status >= 500 {
		outcome = "error"
	}
	metrics.ProxyRequests.WithLabelValues(mode, outcome).Inc()
	metrics.ProxyDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	fields := []logging.Field{
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path),
		logging.String("target", resolution.Target),
		logging.Int("status", sw.status),
		logging.Duration("duration", time.Since(start)),
		logging.String("client_ip", clientIP),
	}
	if resolution.Rule != nil {
		fields = append(fields, logging.String("rule", resolution.Rule.Name))
	}
	logging.Info("Proxied request", fields...)
}

// clientAddr extracts the peer IP without the ephemeral port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusWriter records the status code written downstream.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
