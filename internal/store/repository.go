/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access required by the registry-service. The interface decouples the
 * business logic from the PostgreSQL implementation, which keeps the
 * checkout orchestrator and webhook reconciler testable against mocks.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Profile methods
	FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	FindProfileBySlug(ctx context.Context, slug string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) error
	// SetMerchantAccount persists the connected account link. Called only by
	// the connect callback on a fully successful handshake.
	SetMerchantAccount(ctx context.Context, userID uuid.UUID, accountID string, onboardingComplete bool) error
	IsSlugTaken(ctx context.Context, slug string, excludeUserID uuid.UUID) (bool, error)

	// Gift methods
	CreateGift(ctx context.Context, gift *domain.Gift) error
	FindGiftByID(ctx context.Context, giftID uuid.UUID) (*domain.Gift, error)
	// FindGiftWithOwner fetches a gift together with its owning profile in
	// one round trip; the checkout validation sequence needs both.
	FindGiftWithOwner(ctx context.Context, giftID uuid.UUID) (*domain.Gift, *domain.Profile, error)
	ListGiftsByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Gift, error)
	ListVisibleGiftsByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Gift, error)
	UpdateGift(ctx context.Context, giftID, userID uuid.UUID, params UpdateGiftParams) error
	DeleteGift(ctx context.Context, giftID, userID uuid.UUID) (bool, error)
	NextGiftSortOrder(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateGiftOrder(ctx context.Context, userID uuid.UUID, giftIDs []uuid.UUID) error
	// ApplyContributionToGift credits the funding ledger as one atomic
	// read-modify-write. The increment is clamped so collected_amount never
	// exceeds target_amount, and is_fully_funded is recomputed in the same
	// statement. Returns the post-update collected amount and funded flag.
	ApplyContributionToGift(ctx context.Context, giftID uuid.UUID, amount int64) (int64, bool, error)

	// Contribution methods
	CreateContribution(ctx context.Context, contribution *domain.Contribution) error
	SetContributionCheckoutSession(ctx context.Context, contributionID uuid.UUID, sessionID string) error
	FindContributionByID(ctx context.Context, contributionID uuid.UUID) (*domain.Contribution, error)
	FindContributionByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Contribution, error)
	// MarkContributionSucceeded transitions pending→succeeded and records the
	// payment reference. Returns false when the row was not pending, which
	// makes webhook redelivery a safe no-op.
	MarkContributionSucceeded(ctx context.Context, contributionID uuid.UUID, paymentIntentID string) (bool, error)
	// MarkContributionFailed transitions pending→failed; false when not pending.
	MarkContributionFailed(ctx context.Context, contributionID uuid.UUID) (bool, error)
	// MarkContributionRefunded transitions succeeded→refunded; false otherwise.
	MarkContributionRefunded(ctx context.Context, contributionID uuid.UUID) (bool, error)
	ListContributionsByOwner(ctx context.Context, userID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error)
	FindContributionForOwner(ctx context.Context, contributionID, userID uuid.UUID) (*domain.Contribution, error)
	MarkThankYouSent(ctx context.Context, contributionID, userID uuid.UUID, message *string) error
	MarkAllThanked(ctx context.Context, userID uuid.UUID, contributionIDs []uuid.UUID) (int64, error)

	// Email audit log
	InsertEmailLog(ctx context.Context, entry domain.EmailLog) error
}

// UpdateProfileParams carries partial profile updates; nil fields are skipped.
type UpdateProfileParams struct {
	DisplayName    *string
	PartnerName1   *string
	PartnerName2   *string
	Slug           *string
	WeddingDate    *string
	WelcomeMessage *string
	IsPublished    *bool
}

// UpdateGiftParams carries partial gift updates; nil fields are skipped.
// collected_amount and is_fully_funded are deliberately absent: the ledger
// is only ever touched through ApplyContributionToGift.
type UpdateGiftParams struct {
	Name            *string
	Description     *string
	TargetAmount    *int64
	MinContribution *int64
	AllowPartial    *bool
	IsVisible       *bool
	ImageURL        *string
}
