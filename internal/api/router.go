package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/engine"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/handlers"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/ws"
)

// RouterConfig carries router dependencies.
type RouterConfig struct {
	Logger      zerolog.Logger
	Store       store.Store
	Engine      *engine.Engine
	RedisClient *redis.Client // nil disables rate limiting
	Whitelist   []string
	CORSOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(cfg.RedisClient, cfg.Logger, cfg.Whitelist)
	r.Use(limiter.Middleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(cfg.Store, cfg.Engine, cfg.Logger)
	auth := middleware.NewAuthMiddleware(cfg.Store)
	gateway := ws.NewGateway(cfg.Engine, cfg.Logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Handle("/ws", gateway)

		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}/lastseen", h.LastSeen)

		r.Post("/chats", h.CreateChat)
		r.Get("/chats", h.ChatSummaries)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Get("/chats/{id}/messages", h.ChatMessages)

		r.Post("/messages/read", h.MarkRead)
	})

	return r
}
