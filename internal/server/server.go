// Package server wraps http.Server with sane timeouts and graceful shutdown.
package server

import (
	"context"
	"net/http"
	"time"

	"rule-proxy/internal/common/logging"
)

// Server is a named HTTP listener with graceful shutdown.
type Server struct {
	name string
	srv  *http.Server
}

// New creates a listener on port serving handler. The proxy listener streams
// large bodies, so no write timeout is set; idle and header timeouts still
// bound misbehaving clients.
func New(name, port string, handler http.Handler) *Server {
	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start runs the listener until Shutdown or a listen failure. The returned
// channel yields the terminal error, nil on clean shutdown.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server listening",
			logging.String("server", s.name),
			logging.String("addr", s.srv.Addr),
		)
		err := s.srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Server shutting down", logging.String("server", s.name))
	return s.srv.Shutdown(ctx)
}
