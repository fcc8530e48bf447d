/**
 * @description
 * This file defines the event payloads published to RabbitMQ when a
 * contribution moves through its payment lifecycle. Downstream consumers
 * (analytics, push notifications) receive these without coupling to the
 * reconciler's database transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContributionSucceededEvent is published after a contribution is reconciled
// as succeeded and the gift ledger has been credited.
type ContributionSucceededEvent struct {
	ContributionID  uuid.UUID  `json:"contribution_id"`
	GiftID          *uuid.UUID `json:"gift_id,omitempty"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	GuestName       string     `json:"guest_name"`
	Amount          int64      `json:"amount"`
	GiftFullyFunded bool       `json:"gift_fully_funded"`
	Timestamp       time.Time  `json:"timestamp"`
}

// ContributionFailedEvent is published after a contribution is reconciled
// as failed. No ledger change accompanies it.
type ContributionFailedEvent struct {
	ContributionID uuid.UUID `json:"contribution_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// ContributionRefundedEvent is published after a refund reconciliation.
type ContributionRefundedEvent struct {
	ContributionID uuid.UUID `json:"contribution_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}
