/**
 * @description
 * This file contains the authenticated gift management endpoints used by
 * the couple's dashboard: listing, creating, updating, deleting and
 * reordering the gifts on their registry.
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
	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
)

// ListGiftsHandler returns all of the owner's gifts, hidden ones included.
func (h *Handlers) ListGiftsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	gifts, err := h.service.ListGifts(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to list gifts\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve gifts")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"gifts": gifts})
}

// GetGiftHandler returns a single gift owned by the caller.
func (h *Handlers) GetGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	giftID, err := uuid.Parse(chi.URLParam(r, "giftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid gift ID")
		return
	}

	gift, err := h.service.GetGift(r.Context(), giftID, userID)
	if err != nil {
		if errors.Is(err, store.ErrGiftNotFound) {
			h.writeError(w, http.StatusNotFound, "Gift not found")
			return
		}
		log.Printf("level=error component=api msg=\"failed to fetch gift\" gift_id=%s user_id=%s err=%v", giftID, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve gift")
		return
	}

	h.writeJSON(w, http.StatusOK, gift)
}

// CreateGiftHandler adds a new gift to the owner's registry.
func (h *Handlers) CreateGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateGiftPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	gift, err := h.service.CreateGift(r.Context(), userID, payload)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, gift)
}

// UpdateGiftHandler applies partial updates to one of the owner's gifts.
func (h *Handlers) UpdateGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	giftID, err := uuid.Parse(chi.URLParam(r, "giftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid gift ID")
		return
	}

	var payload domain.UpdateGiftPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	gift, err := h.service.UpdateGift(r.Context(), giftID, userID, payload)
	if err != nil {
		if errors.Is(err, store.ErrGiftNotFound) {
			h.writeError(w, http.StatusNotFound, "Gift not found")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, gift)
}

// DeleteGiftHandler removes a gift; its contributions remain on record.
func (h *Handlers) DeleteGiftHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	giftID, err := uuid.Parse(chi.URLParam(r, "giftID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid gift ID")
		return
	}

	if err := h.service.DeleteGift(r.Context(), giftID, userID); err != nil {
		if errors.Is(err, store.ErrGiftNotFound) {
			h.writeError(w, http.StatusNotFound, "Gift not found")
			return
		}
		log.Printf("level=error component=api msg=\"failed to delete gift\" gift_id=%s user_id=%s err=%v", giftID, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not delete gift")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderGiftsHandler persists a new ordering for the owner's gifts.
func (h *Handlers) ReorderGiftsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.GiftOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ReorderGifts(r.Context(), userID, payload); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
