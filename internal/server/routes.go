package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/creditgate/creditgate/internal/config"
	"github.com/creditgate/creditgate/internal/handler"
	"github.com/creditgate/creditgate/internal/metrics"
	"github.com/creditgate/creditgate/internal/middleware"
	"github.com/creditgate/creditgate/internal/repository"
	"github.com/creditgate/creditgate/internal/service"
	"github.com/creditgate/creditgate/internal/throttle"
)

// Deps are the components the router wires together.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Users    *repository.UserRepository
	Accounts *service.AccountService
	Items    *service.ItemService
	Limiter  throttle.Limiter
	Recorder metrics.Recorder
	// Metrics serves /metrics; nil leaves the route unmounted.
	Metrics http.Handler
	// Checks are pinged by /readyz.
	Checks map[string]handler.HealthChecker
}

// NewRouter builds the chi router with every route and middleware.
//
// Registration and recharge pass the IP throttle; everything but /register
// and the probes needs a bearer token; GET and POST /items cost one credit.
// Forwarded address headers only replace the peer address when
// cfg.TrustProxy is set.
func NewRouter(d Deps) *chi.Mux {
	cfg := d.Config
	logger := d.Logger

	r := chi.NewRouter()

	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	h := handler.New()
	health := handler.NewHealthHandler(logger, d.Checks)
	accounts := handler.NewAccountHandler(d.Accounts, logger)
	items := handler.NewItemHandler(d.Items, logger)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Get("/ping", h.Ping)

	requireToken := middleware.Auth(middleware.AuthConfig{
		Logger: logger,
		Users:  d.Users,
	})
	throttleAttempts := middleware.Throttle(middleware.ThrottleConfig{
		Logger:   logger,
		Limiter:  d.Limiter,
		Funded:   d.Users,
		Enabled:  cfg.ThrottleEnabled,
		Recorder: d.Recorder,
	})
	gate := middleware.Quota(middleware.QuotaConfig{
		Logger:   logger,
		Ledger:   d.Users,
		Recorder: d.Recorder,
	})

	r.With(throttleAttempts).Post("/register", accounts.Register)
	r.With(throttleAttempts, requireToken).Post("/recharge", accounts.Recharge)

	r.Route("/items", func(r chi.Router) {
		r.Use(requireToken)
		r.Method(http.MethodGet, "/", gate(items.List))
		r.Method(http.MethodPost, "/", gate(items.Create))
		r.Put("/{id}", items.Update)
		r.Delete("/{id}", items.Delete)
	})

	return r
}
