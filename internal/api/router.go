package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nexus.chat/internal/ai"
	"nexus.chat/internal/config"
	"nexus.chat/internal/entitlement"
	"nexus.chat/internal/export"
	"nexus.chat/internal/middleware"
)

// NewRouter assembles the HTTP surface. Everything except auth works both
// signed in and anonymous, so the account, chat and enterprise routes use the
// optional auth middleware.
func NewRouter(cfg *config.Config, registry *Registry, provider ai.Provider, exports *export.Service) http.Handler {
	authHandler := NewAuthHandler(cfg, registry)
	accountHandler := NewAccountHandler(registry)
	enterpriseHandler := NewEnterpriseHandler(registry)
	limiter := entitlement.NewRateLimiter(entitlement.DefaultRateLimitRequests, entitlement.DefaultRateLimitWindow)
	chatHandler := NewChatHandler(registry, provider, limiter)
	exportHandler := NewExportHandler(registry, exports)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.Signup)
		r.With(middleware.AuthMiddleware(cfg.JWTSecret)).Post("/logout", authHandler.Logout)
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(cfg.JWTSecret))

		r.Route("/api/account", func(r chi.Router) {
			r.Get("/state", accountHandler.State)
			r.Get("/plans", accountHandler.Plans)
			r.Put("/plan", accountHandler.SetPlan)
			r.Post("/trial", accountHandler.StartTrial)
			r.Post("/redeem", accountHandler.Redeem)
			r.Post("/credits", accountHandler.AddCredits)
		})

		r.Route("/api/enterprise", func(r chi.Router) {
			r.Post("/quote", enterpriseHandler.Quote)
			r.Post("/activate", enterpriseHandler.Activate)
			r.Put("/config", enterpriseHandler.UpdateConfig)
			r.Post("/members", enterpriseHandler.AddMember)
			r.Delete("/members/{email}", enterpriseHandler.RemoveMember)
			r.Delete("/", enterpriseHandler.Cancel)
		})

		r.Route("/api/chat", func(r chi.Router) {
			r.Get("/sessions", chatHandler.List)
			r.Post("/sessions", chatHandler.Create)
			r.Get("/sessions/{id}", chatHandler.Get)
			r.Delete("/sessions/{id}", chatHandler.Delete)
			r.Put("/sessions/{id}/model", chatHandler.SetModel)
			r.Put("/sessions/{id}/tone", chatHandler.SetTone)
			r.Post("/sessions/{id}/messages", chatHandler.Send)
			r.Post("/sessions/{id}/export", exportHandler.Export)
		})

		r.Get("/api/exports/*", exportHandler.Download)
	})

	return r
}
