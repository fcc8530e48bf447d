package app

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
	"github.com/bramlijst/registry-service/pkg/emailclient"
	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

// mockRepo is an in-memory store.Repository that mirrors the database's
// conditional-update semantics: status-guarded transitions and the clamped
// ledger credit behave like their SQL counterparts.
type mockRepo struct {
	mu            sync.Mutex
	profiles      map[uuid.UUID]*domain.Profile
	gifts         map[uuid.UUID]*domain.Gift
	contributions map[uuid.UUID]*domain.Contribution
	emailLogs     []domain.EmailLog

	applyCalls             int
	failCreateContribution bool
	failApply              bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		profiles:      make(map[uuid.UUID]*domain.Profile),
		gifts:         make(map[uuid.UUID]*domain.Gift),
		contributions: make(map[uuid.UUID]*domain.Contribution),
	}
}

func (m *mockRepo) FindProfileByID(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

func (m *mockRepo) FindProfileBySlug(_ context.Context, slug string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, profile := range m.profiles {
		if profile.Slug == slug {
			copied := *profile
			return &copied, nil
		}
	}
	return nil, store.ErrProfileNotFound
}

func (m *mockRepo) UpdateProfile(_ context.Context, userID uuid.UUID, params store.UpdateProfileParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return store.ErrProfileNotFound
	}
	if params.DisplayName != nil {
		profile.DisplayName = params.DisplayName
	}
	if params.Slug != nil {
		profile.Slug = *params.Slug
	}
	if params.IsPublished != nil {
		profile.IsPublished = *params.IsPublished
	}
	return nil
}

func (m *mockRepo) SetMerchantAccount(_ context.Context, userID uuid.UUID, accountID string, onboardingComplete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return store.ErrProfileNotFound
	}
	profile.StripeAccountID = &accountID
	profile.StripeOnboardingComplete = onboardingComplete
	return nil
}

func (m *mockRepo) IsSlugTaken(_ context.Context, slug string, excludeUserID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, profile := range m.profiles {
		if id != excludeUserID && profile.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) CreateGift(_ context.Context, gift *domain.Gift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *gift
	m.gifts[gift.ID] = &copied
	return nil
}

func (m *mockRepo) FindGiftByID(_ context.Context, giftID uuid.UUID) (*domain.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gift, ok := m.gifts[giftID]
	if !ok {
		return nil, store.ErrGiftNotFound
	}
	copied := *gift
	return &copied, nil
}

func (m *mockRepo) FindGiftWithOwner(_ context.Context, giftID uuid.UUID) (*domain.Gift, *domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gift, ok := m.gifts[giftID]
	if !ok {
		return nil, nil, store.ErrGiftNotFound
	}
	owner, ok := m.profiles[gift.UserID]
	if !ok {
		return nil, nil, store.ErrProfileNotFound
	}
	giftCopy := *gift
	ownerCopy := *owner
	return &giftCopy, &ownerCopy, nil
}

func (m *mockRepo) ListGiftsByOwner(_ context.Context, userID uuid.UUID) ([]domain.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var gifts []domain.Gift
	for _, gift := range m.gifts {
		if gift.UserID == userID {
			gifts = append(gifts, *gift)
		}
	}
	return gifts, nil
}

func (m *mockRepo) ListVisibleGiftsByOwner(_ context.Context, userID uuid.UUID) ([]domain.Gift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var gifts []domain.Gift
	for _, gift := range m.gifts {
		if gift.UserID == userID && gift.IsVisible {
			gifts = append(gifts, *gift)
		}
	}
	return gifts, nil
}

func (m *mockRepo) UpdateGift(_ context.Context, giftID, userID uuid.UUID, params store.UpdateGiftParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gift, ok := m.gifts[giftID]
	if !ok || gift.UserID != userID {
		return store.ErrGiftNotFound
	}
	if params.Name != nil {
		gift.Name = *params.Name
	}
	if params.TargetAmount != nil {
		target := *params.TargetAmount
		if target < gift.CollectedAmount {
			target = gift.CollectedAmount
		}
		gift.TargetAmount = target
		gift.IsFullyFunded = gift.CollectedAmount >= *params.TargetAmount
	}
	if params.IsVisible != nil {
		gift.IsVisible = *params.IsVisible
	}
	return nil
}

func (m *mockRepo) DeleteGift(_ context.Context, giftID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gift, ok := m.gifts[giftID]
	if !ok || gift.UserID != userID {
		return false, nil
	}
	delete(m.gifts, giftID)
	return true, nil
}

func (m *mockRepo) NextGiftSortOrder(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, gift := range m.gifts {
		if gift.UserID == userID && gift.SortOrder >= next {
			next = gift.SortOrder + 1
		}
	}
	return next, nil
}

func (m *mockRepo) UpdateGiftOrder(_ context.Context, userID uuid.UUID, giftIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for position, giftID := range giftIDs {
		if gift, ok := m.gifts[giftID]; ok && gift.UserID == userID {
			gift.SortOrder = position
		}
	}
	return nil
}

func (m *mockRepo) ApplyContributionToGift(_ context.Context, giftID uuid.UUID, amount int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.failApply {
		return 0, false, errors.New("ledger unavailable")
	}
	gift, ok := m.gifts[giftID]
	if !ok {
		return 0, false, store.ErrGiftNotFound
	}
	collected := gift.CollectedAmount + amount
	if collected > gift.TargetAmount {
		collected = gift.TargetAmount
	}
	gift.CollectedAmount = collected
	gift.IsFullyFunded = collected >= gift.TargetAmount
	return collected, gift.IsFullyFunded, nil
}

func (m *mockRepo) CreateContribution(_ context.Context, contribution *domain.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateContribution {
		return errors.New("insert failed")
	}
	copied := *contribution
	m.contributions[contribution.ID] = &copied
	return nil
}

func (m *mockRepo) SetContributionCheckoutSession(_ context.Context, contributionID uuid.UUID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok {
		return store.ErrContributionNotFound
	}
	contribution.CheckoutSessionID = &sessionID
	return nil
}

func (m *mockRepo) FindContributionByID(_ context.Context, contributionID uuid.UUID) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok {
		return nil, store.ErrContributionNotFound
	}
	copied := *contribution
	return &copied, nil
}

func (m *mockRepo) FindContributionByPaymentIntent(_ context.Context, paymentIntentID string) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, contribution := range m.contributions {
		if contribution.PaymentIntentID != nil && *contribution.PaymentIntentID == paymentIntentID {
			copied := *contribution
			return &copied, nil
		}
	}
	return nil, store.ErrContributionNotFound
}

func (m *mockRepo) MarkContributionSucceeded(_ context.Context, contributionID uuid.UUID, paymentIntentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok || contribution.Status != domain.ContributionPending {
		return false, nil
	}
	contribution.Status = domain.ContributionSucceeded
	if paymentIntentID != "" {
		contribution.PaymentIntentID = &paymentIntentID
	}
	return true, nil
}

func (m *mockRepo) MarkContributionFailed(_ context.Context, contributionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok || contribution.Status != domain.ContributionPending {
		return false, nil
	}
	contribution.Status = domain.ContributionFailed
	return true, nil
}

func (m *mockRepo) MarkContributionRefunded(_ context.Context, contributionID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok || contribution.Status != domain.ContributionSucceeded {
		return false, nil
	}
	contribution.Status = domain.ContributionRefunded
	return true, nil
}

func (m *mockRepo) ListContributionsByOwner(_ context.Context, userID uuid.UUID, _ domain.ContributionListOptions) ([]domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var contributions []domain.Contribution
	for _, contribution := range m.contributions {
		if contribution.UserID == userID {
			contributions = append(contributions, *contribution)
		}
	}
	return contributions, nil
}

func (m *mockRepo) FindContributionForOwner(_ context.Context, contributionID, userID uuid.UUID) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok || contribution.UserID != userID {
		return nil, store.ErrContributionNotFound
	}
	copied := *contribution
	return &copied, nil
}

func (m *mockRepo) MarkThankYouSent(_ context.Context, contributionID, userID uuid.UUID, message *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contribution, ok := m.contributions[contributionID]
	if !ok || contribution.UserID != userID {
		return store.ErrContributionNotFound
	}
	contribution.IsThankYouSent = true
	contribution.ThankYouMessage = message
	return nil
}

func (m *mockRepo) MarkAllThanked(_ context.Context, userID uuid.UUID, contributionIDs []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, id := range contributionIDs {
		if contribution, ok := m.contributions[id]; ok && contribution.UserID == userID && !contribution.IsThankYouSent {
			contribution.IsThankYouSent = true
			updated++
		}
	}
	return updated, nil
}

func (m *mockRepo) InsertEmailLog(_ context.Context, entry domain.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailLogs = append(m.emailLogs, entry)
	return nil
}

// mockPayments is a PaymentClient that records requests.
type mockPayments struct {
	sessions      []stripeclient.CheckoutSessionParams
	failCreate    bool
	sessionID     string
	sessionURL    string
	accountStatus stripeclient.AccountStatus
	oauthAccount  string
}

func (m *mockPayments) CreateCheckoutSession(_ context.Context, params stripeclient.CheckoutSessionParams) (*stripeclient.CheckoutSession, error) {
	m.sessions = append(m.sessions, params)
	if m.failCreate {
		return nil, errors.New("stripe unavailable")
	}
	id := m.sessionID
	if id == "" {
		id = "cs_test_123"
	}
	url := m.sessionURL
	if url == "" {
		url = "https://checkout.stripe.com/c/pay/cs_test_123"
	}
	return &stripeclient.CheckoutSession{ID: id, URL: url}, nil
}

func (m *mockPayments) GetAccountStatus(_ context.Context, accountID string) (*stripeclient.AccountStatus, error) {
	status := m.accountStatus
	status.AccountID = accountID
	return &status, nil
}

func (m *mockPayments) ExchangeOAuthCode(_ context.Context, _ string) (string, error) {
	if m.oauthAccount == "" {
		return "", errors.New("oauth exchange failed")
	}
	return m.oauthAccount, nil
}

// mockSender records outbound emails.
type mockSender struct {
	mu       sync.Mutex
	messages []emailclient.Message
	fail     bool
}

func (m *mockSender) Send(_ context.Context, msg emailclient.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("delivery rejected")
	}
	m.messages = append(m.messages, msg)
	return nil
}

func ptrString(value string) *string {
	return &value
}

// seedRegistry creates a published profile with a ready merchant account and
// one visible gift, returning both.
func seedRegistry(repo *mockRepo, target, collected, minContribution int64) (*domain.Profile, *domain.Gift) {
	accountID := "acct_ready"
	profile := &domain.Profile{
		ID:                       uuid.New(),
		Email:                    "paar@example.com",
		PartnerName1:             ptrString("Anna"),
		PartnerName2:             ptrString("Bram"),
		Slug:                     "anna-en-bram",
		IsPublished:              true,
		StripeAccountID:          &accountID,
		StripeOnboardingComplete: true,
		Currency:                 "eur",
	}
	gift := &domain.Gift{
		ID:              uuid.New(),
		UserID:          profile.ID,
		Name:            "Huwelijksreis",
		TargetAmount:    target,
		CollectedAmount: collected,
		MinContribution: minContribution,
		AllowPartial:    true,
		IsVisible:       true,
		IsFullyFunded:   collected >= target,
	}
	repo.profiles[profile.ID] = profile
	repo.gifts[gift.ID] = gift
	return profile, gift
}
