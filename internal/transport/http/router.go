package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/plated-app/plated-api/internal/config"
	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/transport/http/handler"
	appmiddleware "github.com/plated-app/plated-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := denyAll
	if deps.Tokens != nil {
		authMw = appmiddleware.Auth(deps.Tokens)
	}

	// Uploads, submissions and messages: 2 requests/second, burst of 10.
	writeRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(2), 10)

	healthH := handler.NewHealthHandler()
	profileH := handler.NewProfileHandler(deps.Profiles)
	verificationH := handler.NewVerificationHandler(deps.Verification)
	conversationH := handler.NewConversationHandler(deps.Conversations)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	deviceH := handler.NewDeviceHandler(deps.Devices)
	postH := handler.NewPostHandler(deps.Posts)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			if deps.Profiles != nil {
				r.Use(appmiddleware.RequireActive(deps.Profiles))
			}

			r.Post("/profiles", profileH.Create)
			r.Get("/profiles/me", profileH.Me)
			r.Get("/profiles/availability", profileH.Availability)
			r.Get("/profiles/{id}", profileH.Get)

			r.Get("/verification", verificationH.GetInfo)
			r.Post("/verification/code", verificationH.GenerateCode)
			r.Get("/verification/images", verificationH.GetImages)
			r.With(writeRL.Limit).Put("/verification/images/{type}", verificationH.UploadImage)
			r.With(writeRL.Limit).Post("/verification/submit", verificationH.Submit)

			r.Post("/conversations", conversationH.Create)
			r.Get("/conversations", conversationH.List)
			r.Get("/conversations/{id}", conversationH.Get)
			r.Delete("/conversations/{id}", conversationH.Delete)
			r.Get("/conversations/{id}/messages", conversationH.Messages)
			r.With(writeRL.Limit).Post("/conversations/{id}/messages", conversationH.Send)
			r.Post("/conversations/{id}/read", conversationH.MarkAsRead)

			r.Get("/notifications", notifH.List)
			r.Delete("/notifications", notifH.DeleteAll)
			r.Put("/notifications/read-all", notifH.MarkAllAsRead)
			r.Put("/notifications/{id}", notifH.MarkAsRead)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Get("/devices", deviceH.List)
			r.Post("/devices", deviceH.Register)
			r.Get("/devices/notifications", deviceH.GetNotifications)
			r.Put("/devices/notifications", deviceH.SetNotifications)
			r.Delete("/devices/{id}", deviceH.Delete)

			r.With(writeRL.Limit).Post("/posts", postH.Create)
			r.Get("/posts", postH.List)
			r.Get("/posts/{id}", postH.Get)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Put("/admin/verifications/{userID}/status", verificationH.UpdateStatus)
				r.Delete("/admin/verifications/{userID}", verificationH.Reset)
				r.Post("/admin/verifications/sweep", verificationH.Sweep)
			})
		})
	})

	return r
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authentication is not configured"}`))
	})
}
