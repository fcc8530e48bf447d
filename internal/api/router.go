/**
 * @description
 * This file sets up the HTTP router for the registry-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, CORS, timeouts and
 * authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for chi.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RegistryRoutes creates and returns the router for the registry service.
func RegistryRoutes(h *Handlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints: the guest-facing registry, checkout, the webhook
	// sink and the Connect browser callback.
	r.Get("/registry/{slug}", h.PublicRegistryHandler)
	r.Post("/checkout", h.CreateCheckoutHandler)
	r.Post("/webhooks/stripe", h.StripeWebhookHandler)
	r.Get("/connect/callback", h.ConnectCallbackHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Get("/profile", h.GetProfileHandler)
		r.Patch("/profile", h.UpdateProfileHandler)

		r.Get("/gifts", h.ListGiftsHandler)
		r.Post("/gifts", h.CreateGiftHandler)
		r.Put("/gifts/order", h.ReorderGiftsHandler)
		r.Get("/gifts/{giftID}", h.GetGiftHandler)
		r.Patch("/gifts/{giftID}", h.UpdateGiftHandler)
		r.Delete("/gifts/{giftID}", h.DeleteGiftHandler)

		r.Get("/contributions", h.ListContributionsHandler)
		r.Post("/contributions/{contributionID}/thank-you", h.SendThankYouHandler)
		r.Post("/contributions/thanked", h.MarkAllThankedHandler)

		r.Post("/connect", h.StartConnectHandler)
		r.Post("/connect/refresh", h.RefreshConnectHandler)
	})

	return r
}
