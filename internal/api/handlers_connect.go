/**
 * @description
 * This file contains the Connect onboarding endpoints. Starting the flow is
 * an authenticated POST that returns the Stripe authorization URL; the
 * callback is an unauthenticated browser redirect, so the user's identity
 * travels in an HMAC-signed state token that is simultaneously pinned to
 * the browser through a short-lived httpOnly cookie. Both halves must match
 * on callback.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256: For the signed state token.
 * - pkg/stripeclient: For the OAuth URL and code exchange.
 */

package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

const (
	connectStateCookie = "bramlijst_connect_state"
	connectStateTTL    = 10 * time.Minute
)

// StartConnectHandler begins the Connect OAuth flow for the authenticated
// couple and returns the Stripe authorization URL.
func (h *Handlers) StartConnectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	if h.connectClientID == "" || h.connectStateSecret == "" {
		log.Printf("level=error component=api msg=\"connect flow not configured\"")
		h.writeError(w, http.StatusInternalServerError, "Connect onboarding is not configured")
		return
	}

	if h.connectLimiter != nil {
		decision, err := h.connectLimiter.Check(r.Context(), "connect:"+userID.String())
		if err != nil {
			log.Printf("level=warn component=api msg=\"connect rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		} else if !decision.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			h.writeError(w, http.StatusTooManyRequests, "Te veel verzoeken. Probeer het over een moment opnieuw.")
			return
		}
	}

	state, err := signConnectState(h.connectStateSecret, userID, time.Now().Add(connectStateTTL))
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to build connect state\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not start onboarding")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     connectStateCookie,
		Value:    state,
		Path:     "/connect",
		MaxAge:   int(connectStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	redirectURI := h.appBaseURL + "/connect/callback"
	h.writeJSON(w, http.StatusOK, map[string]string{
		"url": stripeclient.OAuthURL(h.connectClientID, redirectURI, state),
	})
}

// ConnectCallbackHandler completes the OAuth handshake when Stripe redirects
// the couple's browser back. On any failure the user lands back on the
// dashboard with an error message; on success the merchant account is linked.
func (h *Handlers) ConnectCallbackHandler(w http.ResponseWriter, r *http.Request) {
	dashboardURL := h.appBaseURL + "/dashboard/settings"
	redirectWithError := func(message string) {
		http.Redirect(w, r, dashboardURL+"?connect=error&message="+url.QueryEscape(message), http.StatusFound)
	}

	clearStateCookie(w)

	if stripeErr := r.URL.Query().Get("error"); stripeErr != "" {
		log.Printf("level=warn component=api msg=\"connect flow denied at stripe\" error=%s", stripeErr)
		redirectWithError("De koppeling met Stripe is geannuleerd.")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(connectStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		log.Printf("level=warn component=api msg=\"connect state cookie mismatch\" remote=%s", clientIP(r))
		redirectWithError("De koppeling kon niet geverifieerd worden. Probeer het opnieuw.")
		return
	}

	userID, err := verifyConnectState(h.connectStateSecret, state)
	if err != nil {
		log.Printf("level=warn component=api msg=\"connect state verification failed\" err=%v", err)
		redirectWithError("De koppeling kon niet geverifieerd worden. Probeer het opnieuw.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		redirectWithError("Er ontbreekt informatie in het antwoord van Stripe.")
		return
	}

	status, err := h.service.CompleteConnect(r.Context(), userID, code)
	if err != nil {
		log.Printf("level=error component=api msg=\"connect completion failed\" user_id=%s err=%v", userID, err)
		redirectWithError("De koppeling met Stripe is mislukt. Probeer het later opnieuw.")
		return
	}

	if status.Ready() {
		http.Redirect(w, r, dashboardURL+"?connect=success", http.StatusFound)
		return
	}
	http.Redirect(w, r, dashboardURL+"?connect=incomplete", http.StatusFound)
}

// RefreshConnectHandler re-checks the connected account's capabilities for
// the dashboard.
func (h *Handlers) RefreshConnectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.RefreshMerchantStatus(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api msg=\"merchant status refresh failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusBadRequest, "Could not refresh payment account status")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"charges_enabled":     status.ChargesEnabled,
		"payouts_enabled":     status.PayoutsEnabled,
		"details_submitted":   status.DetailsSubmitted,
		"onboarding_complete": status.Ready(),
	})
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     connectStateCookie,
		Value:    "",
		Path:     "/connect",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// signConnectState builds "userID:expiryUnix:nonce:sig" where sig is
// HMAC-SHA256 over the first three fields, base64url encoded as one token.
func signConnectState(secret string, userID uuid.UUID, expiresAt time.Time) (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(nonceBytes)

	payload := fmt.Sprintf("%s:%d:%s", userID, expiresAt.Unix(), nonce)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))

	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig)), nil
}

// verifyConnectState checks the token's signature and expiry and returns
// the user it was issued for.
func verifyConnectState(secret, token string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("state token not decodable: %w", err)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 {
		return uuid.Nil, fmt.Errorf("state token has %d parts", len(parts))
	}

	payload := strings.Join(parts[:3], ":")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return uuid.Nil, fmt.Errorf("state token signature mismatch")
	}

	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return uuid.Nil, fmt.Errorf("state token expiry not parseable: %w", err)
	}
	if time.Now().Unix() > expiry {
		return uuid.Nil, fmt.Errorf("state token expired")
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("state token user not parseable: %w", err)
	}
	return userID, nil
}
