package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/api/handlers"
	"github.com/hugh/formlink/internal/api/middleware"
	"github.com/hugh/formlink/internal/archive"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/clients"
	"github.com/hugh/formlink/internal/links"
	"github.com/hugh/formlink/pkg/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	stoppers []func()
}

type RouterConfig struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Logger        *slog.Logger
	JWTService    *auth.JWTService
	AuthService   *auth.Service
	Gate          *access.Gate
	ClientService *clients.Service
	LinkService   *links.Service
	// Archiver is optional; without it the archive route is not mounted.
	Archiver       *archive.Archiver
	AllowedOrigins []string // CORS allowed origins
	RateLimit      config.RateLimitConfig
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimit.Requests > 0 {
		r.Use(middleware.RateLimit(router.limiter(cfg, "global", cfg.RateLimit.Requests), cfg.Logger))
	}

	// Token-addressed and credential routes get a tighter budget
	strict := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit.FormRequests > 0 {
		strict = middleware.RateLimit(router.limiter(cfg, "strict", cfg.RateLimit.FormRequests), cfg.Logger)
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Gate, cfg.Logger, cfg.SecureCookies, int(cfg.JWTService.Expiry().Seconds()))
	agentHandler := handlers.NewAgentHandler(cfg.AuthService, cfg.Gate, cfg.Logger)
	clientHandler := handlers.NewClientHandler(cfg.ClientService, cfg.Gate, cfg.Logger)
	linkHandler := handlers.NewLinkHandler(cfg.LinkService, cfg.Gate, cfg.Logger)
	formHandler := handlers.NewFormHandler(cfg.LinkService, cfg.Gate, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.With(strict).Post("/auth/register", authHandler.Register)
		r.With(strict).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", authHandler.Me)
			r.Post("/agents", agentHandler.Create)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", clientHandler.List)
				r.Post("/", clientHandler.Create)
				r.Get("/{id}", clientHandler.Get)
			})

			r.Route("/links", func(r chi.Router) {
				r.Get("/", linkHandler.List)
				r.Post("/", linkHandler.Issue)
				r.Get("/{id}", linkHandler.Get)
				r.Delete("/{id}", linkHandler.Revoke)
				r.Get("/{id}/submission", linkHandler.Submission)
				r.Post("/{id}/reset", linkHandler.Reset)
			})

			r.Get("/admin/inconsistencies", linkHandler.Inconsistencies)

			if cfg.Archiver != nil {
				archiveHandler := handlers.NewArchiveHandler(cfg.Archiver, cfg.Gate, cfg.Logger)
				r.Get("/submissions/{id}/archive", archiveHandler.Get)
			}

			// End-client form routes
			r.With(strict).Get("/forms/{token}", formHandler.View)
			r.With(strict).Post("/forms/{token}", formHandler.Submit)
		})
	})

	return router
}

// Close releases background resources held by in-process rate limiters.
func (r *Router) Close() {
	for _, stop := range r.stoppers {
		stop()
	}
}

func (r *Router) limiter(cfg RouterConfig, name string, requests int) middleware.Limiter {
	if cfg.RateLimit.UseRedis && cfg.Redis != nil {
		return middleware.NewRedisLimiter(cfg.Redis, name, requests, cfg.RateLimit.WindowSeconds)
	}
	l := middleware.NewMemoryLimiter(requests, cfg.RateLimit.WindowSeconds)
	r.stoppers = append(r.stoppers, l.Stop)
	return l
}
