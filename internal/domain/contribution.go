/**
 * @description
 * This file defines the contribution domain model and its lifecycle states.
 * A contribution is a guest's monetary pledge toward a gift, tracked from
 * checkout-session creation through asynchronous payment reconciliation.
 *
 * @notes
 * - Contributions are financial records and are never deleted.
 * - Status transitions are monotonic: pending→succeeded, pending→failed,
 *   succeeded→refunded. All other transitions are no-ops.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contribution statuses. These are the only values ever stored.
const (
	ContributionPending   = "pending"
	ContributionSucceeded = "succeeded"
	ContributionFailed    = "failed"
	ContributionRefunded  = "refunded"
)

// Contribution represents a guest's pledge toward a gift. Maps to the
// `contributions` table.
type Contribution struct {
	ID                uuid.UUID      `json:"id"`
	GiftID            *uuid.UUID     `json:"gift_id,omitempty"` // nullable: gift may be deleted later
	UserID            uuid.UUID      `json:"user_id"`           // registry owner, denormalized
	GuestName         string         `json:"guest_name"`
	GuestEmail        *string        `json:"guest_email,omitempty"`
	Amount            int64          `json:"amount"` // in cents, immutable after creation
	Message           *string        `json:"message,omitempty"`
	Status            string         `json:"status"`
	CheckoutSessionID *string        `json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string        `json:"payment_intent_id,omitempty"`
	IsThankYouSent    bool           `json:"is_thank_you_sent"`
	ThankYouMessage   *string        `json:"thank_you_message,omitempty"`
	ThankYouSentAt    *time.Time     `json:"thank_you_sent_at,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CheckoutPayload is the DTO for a guest's contribution intent.
type CheckoutPayload struct {
	GiftID     uuid.UUID `json:"gift_id"`
	Amount     int64     `json:"amount"` // in cents
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email,omitempty"`
	Message    string    `json:"message,omitempty"`
	Slug       string    `json:"slug"`
}

// CheckoutResult carries the hosted payment redirect back to the guest.
type CheckoutResult struct {
	CheckoutURL string `json:"checkout_url"`
}

// ThankYouPayload marks a contribution thanked with an optional message.
type ThankYouPayload struct {
	Message string `json:"message"`
}

// BulkThankedPayload marks a batch of contributions thanked without email.
type BulkThankedPayload struct {
	ContributionIDs []uuid.UUID `json:"contribution_ids"`
}

// ContributionListOptions controls pagination for the owner's dashboard.
type ContributionListOptions struct {
	Limit  int
	Offset int
	Status string
}
