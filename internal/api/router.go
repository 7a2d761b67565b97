package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortechron/nightwatch-testing/internal/api/middleware"
	"github.com/vortechron/nightwatch-testing/internal/auth"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
)

// RoutePrefix is the mount point of the test endpoints.
const RoutePrefix = "/api/nightwatch-test"

// bulkRoute restricts type to the known categories and count to digits.
const bulkRoute = "/bulk/{type:(queries|cache|jobs|mail|notifications|exceptions|all)}/{count:[0-9]+}"

// RouterConfig wires the router.
type RouterConfig struct {
	Handler *Handler
	// Tokens guards the authenticated routes. Nil leaves them unregistered.
	Tokens auth.TokenService
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Observer records request latencies when set.
	Observer middleware.HTTPObserver
	// Tracer defaults to the global harness tracer.
	Tracer trace.Tracer
	Logger *slog.Logger
}

// NewRouter creates the application router.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	h := cfg.Handler

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewTraceMiddleware(log, tracer))
	if cfg.Observer != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Observer))
	}

	r.Route(RoutePrefix, func(r chi.Router) {
		r.Get("/public", h.Public)
		r.Get("/outgoing", h.Outgoing)
		r.Get(bulkRoute, h.Bulk)

		if cfg.Tokens == nil {
			log.Warn("authenticated routes not registered: no auth guard configured")
			return
		}
		log.Info("authenticated routes registered", "guard", h.config.Guard)
		authMiddleware := middleware.NewAuthMiddleware(cfg.Tokens)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/authenticated", h.Authenticated)
			r.Post("/authenticated-job", h.AuthenticatedJob)
			r.Get("/authenticated-exception", h.AuthenticatedException)
		})
	})

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r
}
