/**
 * @description
 * This file contains the shared HTTP handler plumbing for the
 * registry-service's API endpoints. Handlers parse incoming requests, call
 * the application service, and write JSON responses. The endpoint-specific
 * handlers live in their own files (checkout, webhook, connect, gifts,
 * contributions, profile).
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/app"
	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

// EventReconciler processes verified payment provider events.
type EventReconciler interface {
	HandleEvent(ctx context.Context, event *stripeclient.Event) error
}

// Handlers holds the application services and per-endpoint settings that
// the HTTP layer needs.
type Handlers struct {
	service    *app.Service
	reconciler EventReconciler

	checkoutLimiter app.RateLimiter
	connectLimiter  app.RateLimiter

	webhookSecret      string
	connectClientID    string
	connectStateSecret string
	appBaseURL         string
}

// HandlersConfig carries the settings the HTTP layer needs beyond services.
type HandlersConfig struct {
	CheckoutLimiter    app.RateLimiter
	ConnectLimiter     app.RateLimiter
	WebhookSecret      string
	ConnectClientID    string
	ConnectStateSecret string
	AppBaseURL         string
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service, reconciler EventReconciler, cfg HandlersConfig) *Handlers {
	return &Handlers{
		service:            service,
		reconciler:         reconciler,
		checkoutLimiter:    cfg.CheckoutLimiter,
		connectLimiter:     cfg.ConnectLimiter,
		webhookSecret:      cfg.WebhookSecret,
		connectClientID:    cfg.ConnectClientID,
		connectStateSecret: cfg.ConnectStateSecret,
		appBaseURL:         strings.TrimRight(cfg.AppBaseURL, "/"),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// authedUserID resolves the authenticated user's UUID from the request
// context, writing the error response itself when that fails.
func (h *Handlers) authedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// clientIP returns the originating client address, honoring the first entry
// of X-Forwarded-For set by the fronting proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

// sameOrigin reports whether the request's Origin header, when present,
// matches either the request host or the configured application origin.
// Requests without an Origin header (server-to-server, curl) pass.
func (h *Handlers) sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(parsed.Host, r.Host) {
		return true
	}
	if appURL, err := url.Parse(h.appBaseURL); err == nil && strings.EqualFold(parsed.Host, appURL.Host) {
		return true
	}
	return false
}
