/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL for the profiles, gifts, contributions and
 * email_logs tables.
 *
 * Key invariants enforced here rather than in application code:
 * - The gift funding ledger is credited with a single conditional UPDATE
 *   that clamps collected_amount at target_amount, so concurrent webhook
 *   deliveries can never overshoot the target or lose an increment.
 * - Contribution status transitions carry their current-status guard in the
 *   WHERE clause; a zero row count means the transition already happened
 *   and the caller treats it as a no-op.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bramlijst/registry-service/internal/domain"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrGiftNotFound         = errors.New("gift not found")
	ErrContributionNotFound = errors.New("contribution not found")
	ErrSlugTaken            = errors.New("slug already in use")
)

// PostgresRepository is a concrete implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, email, display_name, partner_name_1, partner_name_2, slug, wedding_date,
	welcome_message, is_published, stripe_account_id, stripe_onboarding_complete, currency,
	created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.PartnerName1, &p.PartnerName2, &p.Slug, &p.WeddingDate,
		&p.WelcomeMessage, &p.IsPublished, &p.StripeAccountID, &p.StripeOnboardingComplete, &p.Currency,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindProfileByID retrieves a profile by the owner's user id.
func (r *PostgresRepository) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, userID))
}

// FindProfileBySlug retrieves a profile by its public registry slug.
func (r *PostgresRepository) FindProfileBySlug(ctx context.Context, slug string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(btrim(slug)) = lower(btrim($1))`
	return scanProfile(r.db.QueryRow(ctx, query, slug))
}

// UpdateProfile applies the non-nil fields of params to the owner's profile.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) error {
	setClauses := ""
	args := []interface{}{userID}
	add := func(column string, value interface{}) {
		args = append(args, value)
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = $%d", column, len(args))
	}

	if params.DisplayName != nil {
		add("display_name", *params.DisplayName)
	}
	if params.PartnerName1 != nil {
		add("partner_name_1", *params.PartnerName1)
	}
	if params.PartnerName2 != nil {
		add("partner_name_2", *params.PartnerName2)
	}
	if params.Slug != nil {
		add("slug", *params.Slug)
	}
	if params.WeddingDate != nil {
		add("wedding_date", *params.WeddingDate)
	}
	if params.WelcomeMessage != nil {
		add("welcome_message", *params.WelcomeMessage)
	}
	if params.IsPublished != nil {
		add("is_published", *params.IsPublished)
	}
	if setClauses == "" {
		return nil
	}

	query := fmt.Sprintf("UPDATE profiles SET %s, updated_at = NOW() WHERE id = $1", setClauses)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetMerchantAccount stores the connected Stripe account id and whether
// onboarding is complete (charges and payouts both enabled).
func (r *PostgresRepository) SetMerchantAccount(ctx context.Context, userID uuid.UUID, accountID string, onboardingComplete bool) error {
	query := `
		UPDATE profiles
		SET stripe_account_id = $2, stripe_onboarding_complete = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, userID, accountID, onboardingComplete)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// IsSlugTaken reports whether another profile already uses the slug.
func (r *PostgresRepository) IsSlugTaken(ctx context.Context, slug string, excludeUserID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM profiles WHERE lower(btrim(slug)) = lower(btrim($1)) AND id <> $2)`
	if err := r.db.QueryRow(ctx, query, slug, excludeUserID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const giftColumns = `id, user_id, name, description, target_amount, collected_amount,
	min_contribution, allow_partial, is_visible, is_fully_funded, image_url, sort_order,
	created_at, updated_at`

func scanGift(row pgx.Row) (*domain.Gift, error) {
	var g domain.Gift
	err := row.Scan(
		&g.ID, &g.UserID, &g.Name, &g.Description, &g.TargetAmount, &g.CollectedAmount,
		&g.MinContribution, &g.AllowPartial, &g.IsVisible, &g.IsFullyFunded, &g.ImageURL, &g.SortOrder,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	return &g, nil
}

// CreateGift inserts a new gift for the owner.
func (r *PostgresRepository) CreateGift(ctx context.Context, gift *domain.Gift) error {
	query := `
		INSERT INTO gifts (id, user_id, name, description, target_amount, min_contribution,
			allow_partial, is_visible, image_url, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING collected_amount, is_fully_funded, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		gift.ID, gift.UserID, gift.Name, gift.Description, gift.TargetAmount, gift.MinContribution,
		gift.AllowPartial, gift.IsVisible, gift.ImageURL, gift.SortOrder,
	).Scan(&gift.CollectedAmount, &gift.IsFullyFunded, &gift.CreatedAt, &gift.UpdatedAt)
}

// FindGiftByID retrieves a single gift.
func (r *PostgresRepository) FindGiftByID(ctx context.Context, giftID uuid.UUID) (*domain.Gift, error) {
	query := `SELECT ` + giftColumns + ` FROM gifts WHERE id = $1`
	return scanGift(r.db.QueryRow(ctx, query, giftID))
}

// FindGiftWithOwner retrieves a gift joined with its owning profile.
func (r *PostgresRepository) FindGiftWithOwner(ctx context.Context, giftID uuid.UUID) (*domain.Gift, *domain.Profile, error) {
	query := `
		SELECT g.id, g.user_id, g.name, g.description, g.target_amount, g.collected_amount,
			g.min_contribution, g.allow_partial, g.is_visible, g.is_fully_funded, g.image_url, g.sort_order,
			g.created_at, g.updated_at,
			p.id, p.email, p.display_name, p.partner_name_1, p.partner_name_2, p.slug, p.wedding_date,
			p.welcome_message, p.is_published, p.stripe_account_id, p.stripe_onboarding_complete, p.currency,
			p.created_at, p.updated_at
		FROM gifts g
		JOIN profiles p ON p.id = g.user_id
		WHERE g.id = $1
	`
	var g domain.Gift
	var p domain.Profile
	err := r.db.QueryRow(ctx, query, giftID).Scan(
		&g.ID, &g.UserID, &g.Name, &g.Description, &g.TargetAmount, &g.CollectedAmount,
		&g.MinContribution, &g.AllowPartial, &g.IsVisible, &g.IsFullyFunded, &g.ImageURL, &g.SortOrder,
		&g.CreatedAt, &g.UpdatedAt,
		&p.ID, &p.Email, &p.DisplayName, &p.PartnerName1, &p.PartnerName2, &p.Slug, &p.WeddingDate,
		&p.WelcomeMessage, &p.IsPublished, &p.StripeAccountID, &p.StripeOnboardingComplete, &p.Currency,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, ErrGiftNotFound
		}
		return nil, nil, err
	}
	return &g, &p, nil
}

func (r *PostgresRepository) listGifts(ctx context.Context, query string, args ...interface{}) ([]domain.Gift, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gifts []domain.Gift
	for rows.Next() {
		var g domain.Gift
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Name, &g.Description, &g.TargetAmount, &g.CollectedAmount,
			&g.MinContribution, &g.AllowPartial, &g.IsVisible, &g.IsFullyFunded, &g.ImageURL, &g.SortOrder,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

// ListGiftsByOwner returns all of the owner's gifts in display order.
func (r *PostgresRepository) ListGiftsByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Gift, error) {
	query := `SELECT ` + giftColumns + ` FROM gifts WHERE user_id = $1 ORDER BY sort_order ASC, created_at ASC`
	return r.listGifts(ctx, query, userID)
}

// ListVisibleGiftsByOwner returns the guest-facing subset of gifts.
func (r *PostgresRepository) ListVisibleGiftsByOwner(ctx context.Context, userID uuid.UUID) ([]domain.Gift, error) {
	query := `SELECT ` + giftColumns + ` FROM gifts WHERE user_id = $1 AND is_visible = TRUE ORDER BY sort_order ASC, created_at ASC`
	return r.listGifts(ctx, query, userID)
}

// UpdateGift applies the non-nil fields of params to a gift owned by userID.
func (r *PostgresRepository) UpdateGift(ctx context.Context, giftID, userID uuid.UUID, params UpdateGiftParams) error {
	setClauses := ""
	args := []interface{}{giftID, userID}
	add := func(column string, value interface{}) {
		args = append(args, value)
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = $%d", column, len(args))
	}

	if params.Name != nil {
		add("name", *params.Name)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.TargetAmount != nil {
		args = append(args, *params.TargetAmount)
		if setClauses != "" {
			setClauses += ", "
		}
		// The ledger credit relies on collected_amount <= target_amount, so a
		// new target never drops below what was already collected, and the
		// funded flag is recomputed against the requested target.
		setClauses += fmt.Sprintf("target_amount = GREATEST(collected_amount, $%d), is_fully_funded = (collected_amount >= $%d)", len(args), len(args))
	}
	if params.MinContribution != nil {
		add("min_contribution", *params.MinContribution)
	}
	if params.AllowPartial != nil {
		add("allow_partial", *params.AllowPartial)
	}
	if params.IsVisible != nil {
		add("is_visible", *params.IsVisible)
	}
	if params.ImageURL != nil {
		add("image_url", *params.ImageURL)
	}
	if setClauses == "" {
		return nil
	}

	query := fmt.Sprintf("UPDATE gifts SET %s, updated_at = NOW() WHERE id = $1 AND user_id = $2", setClauses)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGiftNotFound
	}
	return nil
}

// DeleteGift removes a gift owned by userID. Contributions keep their rows
// with gift_id set NULL by the schema's ON DELETE SET NULL.
func (r *PostgresRepository) DeleteGift(ctx context.Context, giftID, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM gifts WHERE id = $1 AND user_id = $2`, giftID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// NextGiftSortOrder returns the next free sort position for the owner.
func (r *PostgresRepository) NextGiftSortOrder(ctx context.Context, userID uuid.UUID) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(sort_order), -1) + 1 FROM gifts WHERE user_id = $1`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// UpdateGiftOrder rewrites sort_order for the owner's gifts in one
// transaction; position in giftIDs is the new order.
func (r *PostgresRepository) UpdateGiftOrder(ctx context.Context, userID uuid.UUID, giftIDs []uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for position, giftID := range giftIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE gifts SET sort_order = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
			giftID, userID, position,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ApplyContributionToGift credits the funding ledger atomically. The clamp
// at target_amount is the authoritative over-funding guard: the earlier
// checkout-time check runs against a possibly stale remaining figure, this
// statement does not.
func (r *PostgresRepository) ApplyContributionToGift(ctx context.Context, giftID uuid.UUID, amount int64) (int64, bool, error) {
	var collected int64
	var fullyFunded bool
	query := `
		UPDATE gifts
		SET collected_amount = LEAST(collected_amount + $2, target_amount),
			is_fully_funded = LEAST(collected_amount + $2, target_amount) >= target_amount,
			updated_at = NOW()
		WHERE id = $1
		RETURNING collected_amount, is_fully_funded
	`
	err := r.db.QueryRow(ctx, query, giftID, amount).Scan(&collected, &fullyFunded)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, ErrGiftNotFound
		}
		return 0, false, err
	}
	return collected, fullyFunded, nil
}

const contributionColumns = `id, gift_id, user_id, guest_name, guest_email, amount, message, status,
	stripe_checkout_session_id, stripe_payment_intent_id, is_thank_you_sent, thank_you_message,
	thank_you_sent_at, metadata, created_at, updated_at`

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var c domain.Contribution
	err := row.Scan(
		&c.ID, &c.GiftID, &c.UserID, &c.GuestName, &c.GuestEmail, &c.Amount, &c.Message, &c.Status,
		&c.CheckoutSessionID, &c.PaymentIntentID, &c.IsThankYouSent, &c.ThankYouMessage,
		&c.ThankYouSentAt, &c.Metadata, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrContributionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateContribution inserts a pending contribution row.
func (r *PostgresRepository) CreateContribution(ctx context.Context, contribution *domain.Contribution) error {
	query := `
		INSERT INTO contributions (id, gift_id, user_id, guest_name, guest_email, amount, message, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		contribution.ID, contribution.GiftID, contribution.UserID, contribution.GuestName,
		contribution.GuestEmail, contribution.Amount, contribution.Message, contribution.Status,
		contribution.Metadata,
	).Scan(&contribution.CreatedAt, &contribution.UpdatedAt)
}

// SetContributionCheckoutSession records the hosted session reference after
// the payment provider accepted the session request.
func (r *PostgresRepository) SetContributionCheckoutSession(ctx context.Context, contributionID uuid.UUID, sessionID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contributions SET stripe_checkout_session_id = $2, updated_at = NOW() WHERE id = $1`,
		contributionID, sessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContributionNotFound
	}
	return nil
}

// FindContributionByID retrieves any contribution by id.
func (r *PostgresRepository) FindContributionByID(ctx context.Context, contributionID uuid.UUID) (*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1`
	return scanContribution(r.db.QueryRow(ctx, query, contributionID))
}

// FindContributionByPaymentIntent retrieves a contribution by the external
// payment reference recorded at success time.
func (r *PostgresRepository) FindContributionByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE stripe_payment_intent_id = $1`
	return scanContribution(r.db.QueryRow(ctx, query, paymentIntentID))
}

// MarkContributionSucceeded performs the pending→succeeded transition. The
// status guard in the WHERE clause is the idempotency barrier for webhook
// redelivery.
func (r *PostgresRepository) MarkContributionSucceeded(ctx context.Context, contributionID uuid.UUID, paymentIntentID string) (bool, error) {
	query := `
		UPDATE contributions
		SET status = $2, stripe_payment_intent_id = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, contributionID, domain.ContributionSucceeded, paymentIntentID, domain.ContributionPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkContributionFailed performs the pending→failed transition.
func (r *PostgresRepository) MarkContributionFailed(ctx context.Context, contributionID uuid.UUID) (bool, error) {
	query := `UPDATE contributions SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`
	tag, err := r.db.Exec(ctx, query, contributionID, domain.ContributionFailed, domain.ContributionPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkContributionRefunded performs the succeeded→refunded transition.
func (r *PostgresRepository) MarkContributionRefunded(ctx context.Context, contributionID uuid.UUID) (bool, error) {
	query := `UPDATE contributions SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`
	tag, err := r.db.Exec(ctx, query, contributionID, domain.ContributionRefunded, domain.ContributionSucceeded)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListContributionsByOwner returns the owner's contributions, newest first.
func (r *PostgresRepository) ListContributionsByOwner(ctx context.Context, userID uuid.UUID, opts domain.ContributionListOptions) ([]domain.Contribution, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args := []interface{}{userID, limit, offset}
	statusFilter := ""
	if opts.Status != "" {
		args = append(args, opts.Status)
		statusFilter = fmt.Sprintf(" AND status = $%d", len(args))
	}

	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE user_id = $1` + statusFilter +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(
			&c.ID, &c.GiftID, &c.UserID, &c.GuestName, &c.GuestEmail, &c.Amount, &c.Message, &c.Status,
			&c.CheckoutSessionID, &c.PaymentIntentID, &c.IsThankYouSent, &c.ThankYouMessage,
			&c.ThankYouSentAt, &c.Metadata, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

// FindContributionForOwner retrieves a contribution scoped to its owner.
func (r *PostgresRepository) FindContributionForOwner(ctx context.Context, contributionID, userID uuid.UUID) (*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE id = $1 AND user_id = $2`
	return scanContribution(r.db.QueryRow(ctx, query, contributionID, userID))
}

// MarkThankYouSent records the thank-you state on an owner's contribution.
func (r *PostgresRepository) MarkThankYouSent(ctx context.Context, contributionID, userID uuid.UUID, message *string) error {
	query := `
		UPDATE contributions
		SET is_thank_you_sent = TRUE, thank_you_message = $3, thank_you_sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.db.Exec(ctx, query, contributionID, userID, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContributionNotFound
	}
	return nil
}

// MarkAllThanked bulk-marks the owner's contributions thanked without a message.
func (r *PostgresRepository) MarkAllThanked(ctx context.Context, userID uuid.UUID, contributionIDs []uuid.UUID) (int64, error) {
	query := `
		UPDATE contributions
		SET is_thank_you_sent = TRUE, thank_you_sent_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND id = ANY($2)
	`
	tag, err := r.db.Exec(ctx, query, userID, contributionIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertEmailLog appends one notification attempt to the audit log.
func (r *PostgresRepository) InsertEmailLog(ctx context.Context, entry domain.EmailLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO email_logs (id, user_id, contribution_id, email_type, recipient_email, subject, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.UserID, entry.ContributionID, entry.EmailType, entry.RecipientEmail,
		entry.Subject, entry.Status, entry.ErrorMessage, entry.SentAt,
	)
	return err
}
