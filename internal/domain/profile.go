/**
 * @description
 * This file defines the couple's profile domain model. The profile carries
 * the public registry settings (slug, partner names, publish state) and the
 * merchant account link used to route guest payments to the couple's own
 * Stripe account.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile represents the registry owner. Maps to the `profiles` table.
type Profile struct {
	ID                       uuid.UUID  `json:"id"`
	Email                    string     `json:"email"`
	DisplayName              *string    `json:"display_name,omitempty"`
	PartnerName1             *string    `json:"partner_name_1,omitempty"`
	PartnerName2             *string    `json:"partner_name_2,omitempty"`
	Slug                     string     `json:"slug"`
	WeddingDate              *time.Time `json:"wedding_date,omitempty"`
	WelcomeMessage           *string    `json:"welcome_message,omitempty"`
	IsPublished              bool       `json:"is_published"`
	StripeAccountID          *string    `json:"stripe_account_id,omitempty"`
	StripeOnboardingComplete bool       `json:"stripe_onboarding_complete"`
	Currency                 string     `json:"currency"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// PaymentsReady reports whether checkout may be initiated for this owner's
// gifts: the merchant account must be linked and fully onboarded.
func (p *Profile) PaymentsReady() bool {
	return p.StripeAccountID != nil && *p.StripeAccountID != "" && p.StripeOnboardingComplete
}

// CoupleName builds the display name used in guest-facing notifications.
func (p *Profile) CoupleName() string {
	if p.PartnerName1 != nil && *p.PartnerName1 != "" && p.PartnerName2 != nil && *p.PartnerName2 != "" {
		return *p.PartnerName1 + " & " + *p.PartnerName2
	}
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return "Het bruidspaar"
}

// UpdateProfilePayload carries partial profile updates from the dashboard.
type UpdateProfilePayload struct {
	DisplayName    *string `json:"display_name,omitempty"`
	PartnerName1   *string `json:"partner_name_1,omitempty"`
	PartnerName2   *string `json:"partner_name_2,omitempty"`
	Slug           *string `json:"slug,omitempty"`
	WeddingDate    *string `json:"wedding_date,omitempty"` // YYYY-MM-DD
	WelcomeMessage *string `json:"welcome_message,omitempty"`
	IsPublished    *bool   `json:"is_published,omitempty"`
}

// PublicRegistry is the guest-facing view of a published registry.
type PublicRegistry struct {
	Profile Registry     `json:"profile"`
	Gifts   []PublicGift `json:"gifts"`
}

// Registry is the subset of the profile exposed to guests.
type Registry struct {
	CoupleName     string     `json:"couple_name"`
	Slug           string     `json:"slug"`
	WeddingDate    *time.Time `json:"wedding_date,omitempty"`
	WelcomeMessage *string    `json:"welcome_message,omitempty"`
	Currency       string     `json:"currency"`
}

// PublicGift is the guest-facing view of a visible gift.
type PublicGift struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	TargetAmount    int64     `json:"target_amount"`
	CollectedAmount int64     `json:"collected_amount"`
	MinContribution int64     `json:"min_contribution"`
	AllowPartial    bool      `json:"allow_partial"`
	IsFullyFunded   bool      `json:"is_fully_funded"`
	ImageURL        *string   `json:"image_url,omitempty"`
	PercentFunded   int       `json:"percent_funded"`
}
