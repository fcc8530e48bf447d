/**
 * @description
 * This file defines the gift-related domain models for the registry-service.
 * A gift is a single fundable line item on a couple's registry with a target
 * amount and a running collected total, both held as integer cents.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents) to
 *   avoid floating-point inaccuracies with financial data.
 * - `CollectedAmount` is mutated only by the webhook reconciler, never by
 *   client-facing code.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Gift represents one fundable item on a registry. Maps to the `gifts` table.
type Gift struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	TargetAmount    int64     `json:"target_amount"`    // in cents
	CollectedAmount int64     `json:"collected_amount"` // in cents
	MinContribution int64     `json:"min_contribution"` // in cents
	AllowPartial    bool      `json:"allow_partial"`
	IsVisible       bool      `json:"is_visible"`
	IsFullyFunded   bool      `json:"is_fully_funded"`
	ImageURL        *string   `json:"image_url,omitempty"`
	SortOrder       int       `json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Remaining returns how many cents the gift still needs before it is fully
// funded. Never negative.
func (g *Gift) Remaining() int64 {
	remaining := g.TargetAmount - g.CollectedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateGiftPayload is the DTO for creating a new gift from the dashboard.
type CreateGiftPayload struct {
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	TargetAmount    int64   `json:"target_amount"` // in cents
	MinContribution int64   `json:"min_contribution"`
	AllowPartial    bool    `json:"allow_partial"`
	IsVisible       bool    `json:"is_visible"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// UpdateGiftPayload carries partial updates; nil fields are left untouched.
type UpdateGiftPayload struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	TargetAmount    *int64  `json:"target_amount,omitempty"`
	MinContribution *int64  `json:"min_contribution,omitempty"`
	AllowPartial    *bool   `json:"allow_partial,omitempty"`
	IsVisible       *bool   `json:"is_visible,omitempty"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// GiftOrderPayload reorders the owner's gifts; position in the slice is the
// new sort_order.
type GiftOrderPayload struct {
	GiftIDs []uuid.UUID `json:"gift_ids"`
}
