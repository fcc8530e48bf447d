package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
)

func TestGetGiftReturnsOwnGift(t *testing.T) {
	repo := newMockRepo()
	owner, gift := seedRegistry(repo, 10000, 0, 500)
	service := newTestService(repo, &mockPayments{})

	fetched, err := service.GetGift(context.Background(), gift.ID, owner.ID)
	if err != nil {
		t.Fatalf("expected gift, got error: %v", err)
	}
	if fetched.ID != gift.ID || fetched.Name != gift.Name {
		t.Fatalf("fetched wrong gift: %+v", fetched)
	}
}

func TestUpdateGiftLoweringTargetClampsToCollected(t *testing.T) {
	repo := newMockRepo()
	owner, gift := seedRegistry(repo, 10000, 4000, 500)
	service := newTestService(repo, &mockPayments{})

	newTarget := int64(2500)
	updated, err := service.UpdateGift(context.Background(), gift.ID, owner.ID, domain.UpdateGiftPayload{TargetAmount: &newTarget})
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if updated.TargetAmount != 4000 {
		t.Fatalf("expected target clamped to the collected amount, got %d", updated.TargetAmount)
	}
	if !updated.IsFullyFunded {
		t.Fatalf("expected gift to be marked fully funded after the clamp")
	}
}

func TestUpdateGiftRaisingTargetReopensFunding(t *testing.T) {
	repo := newMockRepo()
	owner, gift := seedRegistry(repo, 2000, 2000, 500)
	service := newTestService(repo, &mockPayments{})

	newTarget := int64(5000)
	updated, err := service.UpdateGift(context.Background(), gift.ID, owner.ID, domain.UpdateGiftPayload{TargetAmount: &newTarget})
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if updated.TargetAmount != 5000 {
		t.Fatalf("expected target raised to 5000, got %d", updated.TargetAmount)
	}
	if updated.IsFullyFunded {
		t.Fatalf("expected a raised target to reopen funding")
	}
}

func TestGetGiftHidesOtherOwnersGifts(t *testing.T) {
	repo := newMockRepo()
	_, gift := seedRegistry(repo, 10000, 0, 500)
	service := newTestService(repo, &mockPayments{})

	stranger := uuid.New()
	if _, err := service.GetGift(context.Background(), gift.ID, stranger); !errors.Is(err, store.ErrGiftNotFound) {
		t.Fatalf("expected ErrGiftNotFound for non-owner, got %v", err)
	}
}
