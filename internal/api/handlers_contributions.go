/**
 * @description
 * This file contains the authenticated contribution endpoints for the
 * couple's dashboard: listing received contributions and the thank-you
 * flows (individual email, bulk mark-as-thanked).
 *
 * @dependencies
 * - internal/domain, internal/store: For DTOs and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
)

// ListContributionsHandler returns the owner's contributions, newest first.
func (h *Handlers) ListContributionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	opts := domain.ContributionListOptions{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			opts.Offset = offset
		}
	}

	contributions, err := h.service.ListContributions(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to list contributions\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve contributions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"contributions": contributions})
}

// SendThankYouHandler emails the couple's thank-you note to one guest.
func (h *Handlers) SendThankYouHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	contributionID, err := uuid.Parse(chi.URLParam(r, "contributionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid contribution ID")
		return
	}

	var payload domain.ThankYouPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SendThankYou(r.Context(), contributionID, userID, payload); err != nil {
		if errors.Is(err, store.ErrContributionNotFound) {
			h.writeError(w, http.StatusNotFound, "Contribution not found")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllThankedHandler bulk-marks contributions thanked without email.
func (h *Handlers) MarkAllThankedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.BulkThankedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.MarkAllThanked(r.Context(), userID, payload)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
