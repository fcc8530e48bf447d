/**
 * @description
 * This file contains the profile endpoints: the authenticated dashboard
 * profile (read and partial update, including slug and publish state) and
 * the public registry view served to guests by slug.
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

	"github.com/go-chi/chi/v5"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
)

// GetProfileHandler returns the authenticated owner's full profile.
func (h *Handlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("level=error component=api msg=\"failed to load profile\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve profile")
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler applies partial profile updates from the dashboard.
func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.UpdateProfilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, payload)
	if err != nil {
		if errors.Is(err, store.ErrSlugTaken) {
			h.writeError(w, http.StatusConflict, "Deze URL is al in gebruik. Kies een andere.")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, profile)
}

// PublicRegistryHandler serves the guest-facing registry page data by slug.
// Unpublished registries are indistinguishable from missing ones.
func (h *Handlers) PublicRegistryHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	registry, err := h.service.PublicRegistryBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusNotFound, "Deze lijst bestaat niet.")
			return
		}
		log.Printf("level=error component=api msg=\"failed to load public registry\" slug=%s err=%v", slug, err)
		h.writeError(w, http.StatusInternalServerError, "Er ging iets mis. Probeer het later opnieuw.")
		return
	}

	h.writeJSON(w, http.StatusOK, registry)
}
