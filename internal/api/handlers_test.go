package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/app"
	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

type stubLimiter struct {
	decision app.Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Check(_ context.Context, key string) (app.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func newTestHandlers(cfg HandlersConfig) *Handlers {
	return NewHandlers(nil, nil, cfg)
}

func TestCreateCheckoutRejectsCrossOrigin(t *testing.T) {
	h := newTestHandlers(HandlersConfig{AppBaseURL: "https://bramlijst.nl"})

	req := httptest.NewRequest(http.MethodPost, "https://api.bramlijst.nl/checkout", strings.NewReader("{}"))
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	h.CreateCheckoutHandler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-origin request, got %d", rec.Code)
	}
}

func TestCreateCheckoutAllowsConfiguredOrigin(t *testing.T) {
	limiter := &stubLimiter{decision: app.Decision{Allowed: false, RetryAfter: 3 * time.Second}}
	h := newTestHandlers(HandlersConfig{AppBaseURL: "https://bramlijst.nl", CheckoutLimiter: limiter})

	// The app origin differs from the API host but is explicitly trusted;
	// the request passes the origin gate and reaches the rate limiter.
	req := httptest.NewRequest(http.MethodPost, "https://api.bramlijst.nl/checkout", strings.NewReader("{}"))
	req.Header.Set("Origin", "https://bramlijst.nl")
	rec := httptest.NewRecorder()

	h.CreateCheckoutHandler(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from the limiter, got %d", rec.Code)
	}
	if len(limiter.keys) != 1 {
		t.Fatalf("expected the limiter to be consulted once, got %d", len(limiter.keys))
	}
}

func TestCreateCheckoutRateLimitedResponse(t *testing.T) {
	limiter := &stubLimiter{decision: app.Decision{Allowed: false, RetryAfter: 7 * time.Second}}
	h := newTestHandlers(HandlersConfig{AppBaseURL: "https://bramlijst.nl", CheckoutLimiter: limiter})

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{}"))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()

	h.CreateCheckoutHandler(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "7" {
		t.Fatalf("expected Retry-After 7, got %q", got)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "checkout:203.0.113.7" {
		t.Fatalf("expected limiter keyed by forwarded client IP, got %v", limiter.keys)
	}
}

func TestWebhookWithoutSecretIsRejected(t *testing.T) {
	h := newTestHandlers(HandlersConfig{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	h.StripeWebhookHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when webhook secret is missing, got %d", rec.Code)
	}
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	h := newTestHandlers(HandlersConfig{WebhookSecret: "whsec_test"})

	payload := `{"id":"evt_1","type":"checkout.session.completed"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=12345,v1=deadbeef")
	rec := httptest.NewRecorder()

	h.StripeWebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
}

func TestWebhookMissingSignatureHeaderRejected(t *testing.T) {
	h := newTestHandlers(HandlersConfig{WebhookSecret: "whsec_test"})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	h.StripeWebhookHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature header, got %d", rec.Code)
	}
}

func TestWebhookValidSignatureUndecodablePayloadAcked(t *testing.T) {
	secret := "whsec_test"
	h := newTestHandlers(HandlersConfig{WebhookSecret: secret})

	payload := []byte("this is not json")
	header := stripeclient.SignPayload(payload, secret, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()

	h.StripeWebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected signed but undecodable payload to be acked with 200, got %d", rec.Code)
	}
}

type stubReconciler struct {
	err    error
	events []*stripeclient.Event
}

func (s *stubReconciler) HandleEvent(_ context.Context, event *stripeclient.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestWebhookReconciliationFailureStillAcked(t *testing.T) {
	secret := "whsec_test"
	reconciler := &stubReconciler{err: errors.New("database unavailable")}
	h := NewHandlers(nil, reconciler, HandlersConfig{WebhookSecret: secret})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	header := stripeclient.SignPayload(payload, secret, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()

	h.StripeWebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected processing failures to be acked with 200, got %d", rec.Code)
	}
	if len(reconciler.events) != 1 || reconciler.events[0].Type != "checkout.session.completed" {
		t.Fatalf("expected the event to reach the reconciler, got %+v", reconciler.events)
	}
}

func TestConnectStateRoundTrip(t *testing.T) {
	secret := "state-secret"
	userID := uuid.New()

	token, err := signConnectState(secret, userID, time.Now().Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	got, err := verifyConnectState(secret, token)
	if err != nil {
		t.Fatalf("expected state to verify, got %v", err)
	}
	if got != userID {
		t.Fatalf("expected user %s, got %s", userID, got)
	}
}

func TestConnectStateRejectsTampering(t *testing.T) {
	secret := "state-secret"
	userID := uuid.New()

	token, err := signConnectState(secret, userID, time.Now().Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifyConnectState("other-secret", token); err == nil {
		t.Fatal("expected verification with wrong secret to fail")
	}

	expired, err := signConnectState(secret, userID, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifyConnectState(secret, expired); err == nil {
		t.Fatal("expected expired state to fail")
	}

	if _, err := verifyConnectState(secret, "not-base64!!"); err == nil {
		t.Fatal("expected undecodable state to fail")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{name: "forwarded single", forwarded: "203.0.113.7", remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "forwarded chain takes first", forwarded: "203.0.113.7, 70.41.3.18", remote: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "no forwarding strips port", forwarded: "", remote: "198.51.100.2:5678", want: "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLimiterErrorFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	h := newTestHandlers(HandlersConfig{AppBaseURL: "https://bramlijst.nl", CheckoutLimiter: limiter})

	// With the limiter erroring the request proceeds to body parsing, which
	// rejects the empty body with 400, not 429 or 500.
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	h.CreateCheckoutHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected fail-open to reach body parsing (400), got %d", rec.Code)
	}
}
