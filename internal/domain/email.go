/**
 * @description
 * This file defines the email audit-log model. Every outbound notification
 * attempt is recorded, success or failure, so support can see what a couple
 * or guest actually received.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Email types recorded in the audit log.
const (
	EmailContributionReceived = "contribution_received"
	EmailPaymentConfirmation  = "payment_confirmation"
	EmailThankYou             = "thank_you"
)

// EmailLog maps to the `email_logs` table.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	ContributionID *uuid.UUID `json:"contribution_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"` // 'sent' or 'failed'
	ErrorMessage   *string    `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}
