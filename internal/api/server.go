package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/reachify/beacon/internal/config"
)

// Server wraps the HTTP server and keeps a handle on the router so tests
// can drive requests without binding a port.
type Server struct {
	config  *config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer builds the HTTP server from an already wired handler set.
func NewServer(cfg *config.ServerConfig, h *Handlers) *Server {
	router := SetupRoutes(cfg, h)

	return &Server{
		config:  cfg,
		handler: router,
	}
}

// Start begins listening on the configured host and port. It blocks until
// the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
