/**
 * @description
 * This file contains the public checkout endpoint: the one unauthenticated
 * POST a guest makes to start a contribution. It is guarded by a same-origin
 * check and a per-IP rate limit before any business validation runs.
 *
 * @dependencies
 * - internal/app, internal/domain: For the checkout orchestrator and DTOs.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/bramlijst/registry-service/internal/app"
	"github.com/bramlijst/registry-service/internal/domain"
)

// CreateCheckoutHandler handles a guest's contribution intent and returns
// the hosted payment page URL.
func (h *Handlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	if !h.sameOrigin(r) {
		h.writeError(w, http.StatusForbidden, "Cross-origin request rejected")
		return
	}

	// Rate limit per client IP. Limiter failures are allows: abuse
	// protection must never take the checkout path down with it.
	if h.checkoutLimiter != nil {
		ip := clientIP(r)
		decision, err := h.checkoutLimiter.Check(r.Context(), "checkout:"+ip)
		if err != nil {
			log.Printf("level=warn component=api msg=\"checkout rate limiter unavailable; allowing request\" ip=%s err=%v", ip, err)
		} else if !decision.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			h.writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Te veel verzoeken. Probeer het over een moment opnieuw.",
				"code":  string(app.CodeRateLimited),
			})
			return
		}
	}

	var payload domain.CheckoutPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CreateCheckout(r.Context(), payload)
	if err != nil {
		var checkoutErr *app.CheckoutError
		if errors.As(err, &checkoutErr) {
			h.writeJSON(w, checkoutErr.HTTPStatus(), map[string]string{
				"error": checkoutErr.Message,
				"code":  string(checkoutErr.Code),
			})
			return
		}
		log.Printf("level=error component=api msg=\"checkout failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Er ging iets mis. Probeer het later opnieuw.")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}
