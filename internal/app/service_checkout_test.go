package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
)

func newTestService(repo *mockRepo, payments *mockPayments) *Service {
	notifier := NewNotifier(&mockSender{}, repo)
	return NewService(repo, payments, notifier, "https://bramlijst.nl", "eur", 500)
}

func TestCreateCheckoutHappyPath(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{}
	_, gift := seedRegistry(repo, 10000, 0, 500)
	service := newTestService(repo, payments)

	result, err := service.CreateCheckout(context.Background(), domain.CheckoutPayload{
		GiftID:     gift.ID,
		Amount:     2500,
		GuestName:  "Oom Kees",
		GuestEmail: "kees@example.com",
		Message:    "Veel geluk samen!",
		Slug:       "anna-en-bram",
	})
	if err != nil {
		t.Fatalf("expected checkout to succeed, got %v", err)
	}
	if result.CheckoutURL == "" {
		t.Fatal("expected a hosted checkout URL")
	}

	if len(payments.sessions) != 1 {
		t.Fatalf("expected one session request, got %d", len(payments.sessions))
	}
	params := payments.sessions[0]
	if params.AmountCents != 2500 {
		t.Fatalf("expected session amount 2500, got %d", params.AmountCents)
	}
	if params.DestinationAccountID != "acct_ready" {
		t.Fatalf("expected destination acct_ready, got %s", params.DestinationAccountID)
	}

	// Exactly one pending contribution with the session reference stored.
	if len(repo.contributions) != 1 {
		t.Fatalf("expected one contribution, got %d", len(repo.contributions))
	}
	for _, contribution := range repo.contributions {
		if contribution.Status != domain.ContributionPending {
			t.Fatalf("expected pending contribution, got %s", contribution.Status)
		}
		if contribution.CheckoutSessionID == nil || *contribution.CheckoutSessionID != "cs_test_123" {
			t.Fatal("expected checkout session id to be stored on the contribution")
		}
		if params.Metadata["contribution_id"] != contribution.ID.String() {
			t.Fatal("expected session metadata to reference the contribution")
		}
	}

	// The ledger is untouched until the webhook confirms payment.
	stored, _ := repo.FindGiftByID(context.Background(), gift.ID)
	if stored.CollectedAmount != 0 {
		t.Fatalf("expected collected amount 0 before reconciliation, got %d", stored.CollectedAmount)
	}
}

func TestCreateCheckoutValidationFailures(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{}
	owner, gift := seedRegistry(repo, 10000, 9000, 500)
	service := newTestService(repo, payments)

	hidden := &domain.Gift{ID: uuid.New(), UserID: owner.ID, Name: "Verborgen", TargetAmount: 5000, MinContribution: 500, IsVisible: false}
	repo.gifts[hidden.ID] = hidden

	funded := &domain.Gift{ID: uuid.New(), UserID: owner.ID, Name: "Vol", TargetAmount: 5000, CollectedAmount: 5000, MinContribution: 500, IsVisible: true, IsFullyFunded: true}
	repo.gifts[funded.ID] = funded

	base := domain.CheckoutPayload{GiftID: gift.ID, Amount: 1000, GuestName: "Gast", Slug: "anna-en-bram"}

	tests := []struct {
		name     string
		mutate   func(p *domain.CheckoutPayload)
		wantCode ErrorCode
	}{
		{
			name:     "missing guest name",
			mutate:   func(p *domain.CheckoutPayload) { p.GuestName = "   " },
			wantCode: CodeValidation,
		},
		{
			name:     "malformed email",
			mutate:   func(p *domain.CheckoutPayload) { p.GuestEmail = "not-an-email" },
			wantCode: CodeValidation,
		},
		{
			name:     "zero amount",
			mutate:   func(p *domain.CheckoutPayload) { p.Amount = 0 },
			wantCode: CodeValidation,
		},
		{
			name:     "unknown gift",
			mutate:   func(p *domain.CheckoutPayload) { p.GiftID = uuid.New() },
			wantCode: CodeNotFound,
		},
		{
			name:     "hidden gift",
			mutate:   func(p *domain.CheckoutPayload) { p.GiftID = hidden.ID },
			wantCode: CodeNotFound,
		},
		{
			name:     "slug mismatch",
			mutate:   func(p *domain.CheckoutPayload) { p.Slug = "ander-paar" },
			wantCode: CodeNotFound,
		},
		{
			name:     "fully funded gift",
			mutate:   func(p *domain.CheckoutPayload) { p.GiftID = funded.ID },
			wantCode: CodeAlreadyFunded,
		},
		{
			name:     "amount below minimum",
			mutate:   func(p *domain.CheckoutPayload) { p.Amount = 100 },
			wantCode: CodeAmountTooLow,
		},
		{
			name:     "amount exceeds remaining",
			mutate:   func(p *domain.CheckoutPayload) { p.Amount = 1500 },
			wantCode: CodeAmountExceedsRemaining,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := base
			tt.mutate(&payload)

			_, err := service.CreateCheckout(context.Background(), payload)
			var checkoutErr *CheckoutError
			if !errors.As(err, &checkoutErr) {
				t.Fatalf("expected a CheckoutError, got %v", err)
			}
			if checkoutErr.Code != tt.wantCode {
				t.Fatalf("expected code %s, got %s", tt.wantCode, checkoutErr.Code)
			}
		})
	}

	// None of the rejections may have created a contribution or called Stripe.
	if len(repo.contributions) != 0 {
		t.Fatalf("expected no contributions after rejections, got %d", len(repo.contributions))
	}
	if len(payments.sessions) != 0 {
		t.Fatalf("expected no session requests after rejections, got %d", len(payments.sessions))
	}
}

func TestCreateCheckoutExactRemainingStillBelowMinimumRejected(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{}
	// Remaining gap of 300 is below the 500 minimum; the minimum holds even
	// for a contribution that would exactly complete the gift.
	_, gift := seedRegistry(repo, 10000, 9700, 500)
	service := newTestService(repo, payments)

	_, err := service.CreateCheckout(context.Background(), domain.CheckoutPayload{
		GiftID:    gift.ID,
		Amount:    300,
		GuestName: "Tante Riet",
		Slug:      "anna-en-bram",
	})
	var checkoutErr *CheckoutError
	if !errors.As(err, &checkoutErr) {
		t.Fatalf("expected a CheckoutError, got %v", err)
	}
	if checkoutErr.Code != CodeAmountTooLow {
		t.Fatalf("expected code %s, got %s", CodeAmountTooLow, checkoutErr.Code)
	}
	if len(payments.sessions) != 0 {
		t.Fatalf("expected no session request for a below-minimum amount, got %d", len(payments.sessions))
	}
}

func TestCreateCheckoutPaymentsNotReady(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{}
	owner, gift := seedRegistry(repo, 10000, 0, 500)
	owner.StripeOnboardingComplete = false
	service := newTestService(repo, payments)

	_, err := service.CreateCheckout(context.Background(), domain.CheckoutPayload{
		GiftID:    gift.ID,
		Amount:    1000,
		GuestName: "Gast",
		Slug:      "anna-en-bram",
	})
	var checkoutErr *CheckoutError
	if !errors.As(err, &checkoutErr) || checkoutErr.Code != CodePaymentsNotReady {
		t.Fatalf("expected PAYMENTS_NOT_READY, got %v", err)
	}
}

func TestCreateCheckoutSessionFailureMarksContributionFailed(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{failCreate: true}
	_, gift := seedRegistry(repo, 10000, 0, 500)
	service := newTestService(repo, payments)

	_, err := service.CreateCheckout(context.Background(), domain.CheckoutPayload{
		GiftID:    gift.ID,
		Amount:    1000,
		GuestName: "Gast",
		Slug:      "anna-en-bram",
	})
	var checkoutErr *CheckoutError
	if !errors.As(err, &checkoutErr) || checkoutErr.Code != CodeUpstreamFailure {
		t.Fatalf("expected UPSTREAM_FAILURE, got %v", err)
	}

	// The orphaned pending row is closed out and the ledger untouched.
	if len(repo.contributions) != 1 {
		t.Fatalf("expected one contribution row, got %d", len(repo.contributions))
	}
	for _, contribution := range repo.contributions {
		if contribution.Status != domain.ContributionFailed {
			t.Fatalf("expected failed contribution, got %s", contribution.Status)
		}
	}
	if repo.applyCalls != 0 {
		t.Fatalf("expected no ledger credits, got %d", repo.applyCalls)
	}
}

func TestCreateCheckoutSanitizesGuestInput(t *testing.T) {
	repo := newMockRepo()
	payments := &mockPayments{}
	_, gift := seedRegistry(repo, 10000, 0, 500)
	service := newTestService(repo, payments)

	_, err := service.CreateCheckout(context.Background(), domain.CheckoutPayload{
		GiftID:    gift.ID,
		Amount:    1000,
		GuestName: "<script>alert(1)</script>",
		Message:   `Liefs van "ons"`,
		Slug:      "anna-en-bram",
	})
	if err != nil {
		t.Fatalf("expected checkout to succeed, got %v", err)
	}

	for _, contribution := range repo.contributions {
		if contribution.GuestName != "&lt;script&gt;alert(1)&lt;/script&gt;" {
			t.Fatalf("expected escaped guest name, got %q", contribution.GuestName)
		}
		if contribution.Message == nil || *contribution.Message != "Liefs van &quot;ons&quot;" {
			t.Fatalf("expected escaped message, got %v", contribution.Message)
		}
	}
}
