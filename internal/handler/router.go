package handler

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bossnet/party-signup/internal/ratelimit"
	"github.com/bossnet/party-signup/internal/requestmeta"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Handler         *RegistrationHandler
	GeneralLimiter  *ratelimit.Limiter
	RegisterLimiter *ratelimit.Limiter
	AllowedOrigins  []string
	// ClientIP resolves the source address that provenance and rate limits
	// are keyed on. Nil trusts no proxy headers.
	ClientIP *requestmeta.Resolver
	// StaticDir is served at / when it exists.
	StaticDir string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the chi router with the global middleware stack, the
// rate-limited /api tree and the optional static and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	resolver := cfg.ClientIP
	if resolver == nil {
		resolver = &requestmeta.Resolver{}
	}

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(resolver.Middleware)
	r.Use(Logger(cfg.Logger))
	r.Use(Recoverer(cfg.Logger))
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.AllowedOrigins))

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	h := cfg.Handler
	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.GeneralLimiter.Middleware)

		r.With(cfg.RegisterLimiter.Middleware).Post("/register", h.Register)
		r.Get("/registrations", h.ListRegistrations)
		r.Get("/health", h.Health)
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		} else {
			cfg.Logger.Info("static directory not found, serving API only", "dir", cfg.StaticDir)
		}
	}

	return r
}
