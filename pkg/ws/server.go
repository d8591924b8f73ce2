package ws

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/auth"
	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/storage"
)

// Config collects the handler's dependencies.
type Config struct {
	Registry *Registry
	Bus      *events.Bus
	Verifier auth.Verifier
	Store    storage.Store
}

// Handler serves both WebSocket endpoints.
type Handler struct {
	registry *Registry
	bus      *events.Bus
	verifier auth.Verifier
	store    storage.Store
	log      zerolog.Logger
}

// NewHandler creates a handler from its dependencies.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		registry: cfg.Registry,
		bus:      cfg.Bus,
		verifier: cfg.Verifier,
		store:    cfg.Store,
		log:      log.WithComponent("ws"),
	}
}

// Routes returns the router the API server mounts at /ws.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleSession)
	r.Get("/deployments/{id}/logs", h.handleDeploymentLogs)
	return r
}
