// Package api assembles the HTTP surface: health and readiness
// probes, Prometheus metrics and the WebSocket endpoints, served from
// one chi router on a TCP address and optionally, read-only, on a
// local Unix socket.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/auth"
	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/metrics"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/ws"
)

// Config wires the HTTP server's collaborators.
type Config struct {
	Store    storage.Store
	Bus      *events.Bus
	Registry *ws.Registry
	Verifier auth.Verifier
	// Version is reported by the health endpoint.
	Version string
}

// Server is the platform's HTTP surface: health and readiness probes,
// Prometheus metrics, and the WebSocket endpoints under /ws.
type Server struct {
	cfg    Config
	router chi.Router
	http   *http.Server
	log    zerolog.Logger
}

// NewServer builds the router. Start binds it to an address.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	wsHandler := ws.NewHandler(ws.Config{
		Registry: cfg.Registry,
		Bus:      cfg.Bus,
		Verifier: cfg.Verifier,
		Store:    cfg.Store,
	})
	r.Mount("/ws", wsHandler.Routes())

	s.router = r
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP on addr until Stop is called. Read and write
// timeouts stay unset: the /ws routes hold connections open for the
// lifetime of a client session.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.http = &http.Server{
		Handler:     s.router,
		IdleTimeout: 120 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.http.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartLocal serves a read-only copy of the API on a Unix socket, for
// local CLI access without credentials.
func (s *Server) StartLocal(socketPath string) error {
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: ReadOnly(s.router)}
	s.log.Info().Str("socket", socketPath).Msg("local read-only listener up")
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
