/**
 * @description
 * This file contains the Stripe webhook endpoint. Signature verification is
 * the trust boundary: nothing is read from the payload before the HMAC
 * check passes. After that, every signed delivery is acknowledged with 200
 * so Stripe stops redelivering; reconciliation faults are logged for
 * operator follow-up rather than surfaced as errors.
 *
 * @dependencies
 * - internal/app, pkg/stripeclient: For the reconciler and signature checks.
 */

package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

const maxWebhookBodyBytes = 1 << 20 // Stripe events stay well under 1 MiB

// StripeWebhookHandler verifies and dispatches Stripe event deliveries.
func (h *Handlers) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" {
		// Processing unverifiable events would let anyone move money state.
		log.Printf("level=error component=api msg=\"webhook secret not configured; rejecting delivery\"")
		h.writeError(w, http.StatusInternalServerError, "Webhook processing is not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := stripeclient.VerifySignature(payload, signature, h.webhookSecret, stripeclient.DefaultSignatureTolerance); err != nil {
		if errors.Is(err, stripeclient.ErrInvalidSignature) {
			log.Printf("level=warn component=api msg=\"webhook signature verification failed\" remote=%s", clientIP(r))
			h.writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		log.Printf("level=error component=api msg=\"webhook signature check errored\" err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	event, err := stripeclient.ParseEvent(payload)
	if err != nil {
		// Signed but undecodable; acknowledging stops pointless redelivery.
		log.Printf("level=error component=api msg=\"webhook payload undecodable\" err=%v", err)
		h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		// Acknowledge anyway; a retry storm will not fix a processing fault,
		// and the conditional transitions keep a manual replay safe.
		log.Printf("level=error component=api msg=\"webhook reconciliation failed\" event_id=%s event_type=%s err=%v", event.ID, event.Type, err)
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
