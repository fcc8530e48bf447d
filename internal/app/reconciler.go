/**
 * @description
 * The webhook reconciler: the only component that moves contributions out of
 * pending and the only writer of the gift funding ledger. Stripe delivers
 * events at-least-once and out of order, so every handler is idempotent:
 * state transitions are conditional updates that affect zero rows on
 * redelivery, and the ledger credit only runs when the transition actually
 * happened.
 *
 * Handlers return an error only for transient faults worth a redelivery
 * (database unavailable). Unknown or irrelevant events are acknowledged
 * silently, otherwise Stripe retries forever.
 *
 * @dependencies
 * - internal/store: For conditional state transitions and the ledger credit.
 * - pkg/stripeclient: For the decoded webhook payload types.
 * - pkg/rabbitmq: For lifecycle event publishing.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/store"
	"github.com/bramlijst/registry-service/pkg/rabbitmq"
	"github.com/bramlijst/registry-service/pkg/stripeclient"
)

// Reconciler applies verified webhook events to contribution and ledger state.
type Reconciler struct {
	repo     store.Repository
	notifier *Notifier
	producer rabbitmq.Publisher
}

// NewReconciler creates a new webhook reconciler.
func NewReconciler(repo store.Repository, notifier *Notifier, producer rabbitmq.Publisher) *Reconciler {
	return &Reconciler{repo: repo, notifier: notifier, producer: producer}
}

// HandleEvent dispatches a verified, decoded webhook event to its handler.
// Event types without a handler are acknowledged without action.
func (r *Reconciler) HandleEvent(ctx context.Context, event *stripeclient.Event) error {
	switch event.Type {
	case stripeclient.EventCheckoutCompleted:
		session, err := event.CheckoutSessionObject()
		if err != nil {
			log.Printf("level=error component=webhook_reconciler msg=\"malformed checkout session payload\" event_id=%s err=%v", event.ID, err)
			return nil
		}
		return r.HandleCheckoutCompleted(ctx, session)
	case stripeclient.EventPaymentIntentFailed:
		intent, err := event.PaymentIntentObject()
		if err != nil {
			log.Printf("level=error component=webhook_reconciler msg=\"malformed payment intent payload\" event_id=%s err=%v", event.ID, err)
			return nil
		}
		return r.HandlePaymentFailed(ctx, intent)
	case stripeclient.EventChargeRefunded:
		charge, err := event.ChargeObject()
		if err != nil {
			log.Printf("level=error component=webhook_reconciler msg=\"malformed charge payload\" event_id=%s err=%v", event.ID, err)
			return nil
		}
		return r.HandleChargeRefunded(ctx, charge)
	default:
		log.Printf("level=info component=webhook_reconciler msg=\"ignoring unhandled event type\" event_type=%s event_id=%s", event.Type, event.ID)
		return nil
	}
}

// HandleCheckoutCompleted transitions the contribution to succeeded and
// credits the gift ledger exactly once. The contribution is resolved through
// the session metadata written at checkout creation.
func (r *Reconciler) HandleCheckoutCompleted(ctx context.Context, session *stripeclient.WebhookCheckoutSession) error {
	// Async payment methods complete the session before the payment settles;
	// a later checkout.session.async_payment_succeeded is not wired up, so
	// only settled sessions count.
	if session.PaymentStatus != "" && session.PaymentStatus != "paid" {
		log.Printf("level=info component=webhook_reconciler msg=\"session completed but unpaid; skipping\" session_id=%s payment_status=%s", session.ID, session.PaymentStatus)
		return nil
	}

	contributionID, err := uuid.Parse(session.Metadata["contribution_id"])
	if err != nil {
		log.Printf("level=warn component=webhook_reconciler msg=\"session without contribution metadata\" session_id=%s", session.ID)
		return nil
	}

	contribution, err := r.repo.FindContributionByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, store.ErrContributionNotFound) {
			log.Printf("level=warn component=webhook_reconciler msg=\"contribution referenced by session does not exist\" contribution_id=%s session_id=%s", contributionID, session.ID)
			return nil
		}
		return err
	}

	transitioned, err := r.repo.MarkContributionSucceeded(ctx, contributionID, session.PaymentIntent)
	if err != nil {
		return err
	}
	if !transitioned {
		// Redelivery or an out-of-order event; the ledger was already
		// credited on the first delivery.
		log.Printf("level=info component=webhook_reconciler msg=\"contribution not pending; duplicate delivery ignored\" contribution_id=%s status=%s", contributionID, contribution.Status)
		return nil
	}

	var gift *domain.Gift
	fullyFunded := false
	if contribution.GiftID != nil {
		collected, funded, err := r.repo.ApplyContributionToGift(ctx, *contribution.GiftID, contribution.Amount)
		if err != nil {
			// The contribution is succeeded but the ledger credit failed.
			// Surfacing the error triggers a redelivery, which will find the
			// row non-pending and skip; this needs an operator.
			log.Printf("level=error component=webhook_reconciler msg=\"LEDGER CREDIT FAILED AFTER TRANSITION; manual reconciliation required\" contribution_id=%s gift_id=%s amount=%d err=%v", contributionID, *contribution.GiftID, contribution.Amount, err)
			return err
		}
		fullyFunded = funded
		log.Printf("level=info component=webhook_reconciler msg=\"gift ledger credited\" contribution_id=%s gift_id=%s amount=%d collected=%d fully_funded=%t", contributionID, *contribution.GiftID, contribution.Amount, collected, funded)

		if g, err := r.repo.FindGiftByID(ctx, *contribution.GiftID); err == nil {
			gift = g
		}
	}

	if owner, err := r.repo.FindProfileByID(ctx, contribution.UserID); err == nil {
		r.notifier.NotifyContributionSucceeded(ctx, owner, gift, contribution)
	} else {
		log.Printf("level=warn component=webhook_reconciler msg=\"owner lookup for notification failed\" user_id=%s err=%v", contribution.UserID, err)
	}

	r.publish(ctx, rabbitmq.RoutingContributionSucceeded, domain.ContributionSucceededEvent{
		ContributionID:  contribution.ID,
		GiftID:          contribution.GiftID,
		OwnerID:         contribution.UserID,
		GuestName:       contribution.GuestName,
		Amount:          contribution.Amount,
		GiftFullyFunded: fullyFunded,
		Timestamp:       time.Now().UTC(),
	})
	return nil
}

// HandlePaymentFailed transitions the contribution to failed. No ledger
// change: failed payments never credited anything.
func (r *Reconciler) HandlePaymentFailed(ctx context.Context, intent *stripeclient.WebhookPaymentIntent) error {
	contribution, err := r.findByIntentOrMetadata(ctx, intent.ID, intent.Metadata)
	if err != nil {
		return err
	}
	if contribution == nil {
		log.Printf("level=info component=webhook_reconciler msg=\"failed payment does not match a contribution\" payment_intent=%s", intent.ID)
		return nil
	}

	transitioned, err := r.repo.MarkContributionFailed(ctx, contribution.ID)
	if err != nil {
		return err
	}
	if !transitioned {
		log.Printf("level=info component=webhook_reconciler msg=\"contribution not pending; failure event ignored\" contribution_id=%s status=%s", contribution.ID, contribution.Status)
		return nil
	}

	log.Printf("level=info component=webhook_reconciler msg=\"contribution marked failed\" contribution_id=%s payment_intent=%s", contribution.ID, intent.ID)
	r.publish(ctx, rabbitmq.RoutingContributionFailed, domain.ContributionFailedEvent{
		ContributionID: contribution.ID,
		OwnerID:        contribution.UserID,
		Amount:         contribution.Amount,
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

// HandleChargeRefunded transitions a succeeded contribution to refunded.
// The gift ledger is deliberately left untouched: the couple already saw
// the gift as (partially) funded, and an automatic decrement would silently
// reopen gifts. Refund bookkeeping is an operator conversation.
func (r *Reconciler) HandleChargeRefunded(ctx context.Context, charge *stripeclient.WebhookCharge) error {
	if !charge.Refunded {
		// Partial refunds arrive with refunded=false; full refunds only.
		log.Printf("level=info component=webhook_reconciler msg=\"charge not fully refunded; skipping\" charge_id=%s", charge.ID)
		return nil
	}
	if charge.PaymentIntent == "" {
		return nil
	}

	contribution, err := r.repo.FindContributionByPaymentIntent(ctx, charge.PaymentIntent)
	if err != nil {
		if errors.Is(err, store.ErrContributionNotFound) {
			log.Printf("level=info component=webhook_reconciler msg=\"refunded charge does not match a contribution\" payment_intent=%s", charge.PaymentIntent)
			return nil
		}
		return err
	}

	transitioned, err := r.repo.MarkContributionRefunded(ctx, contribution.ID)
	if err != nil {
		return err
	}
	if !transitioned {
		log.Printf("level=info component=webhook_reconciler msg=\"contribution not succeeded; refund event ignored\" contribution_id=%s status=%s", contribution.ID, contribution.Status)
		return nil
	}

	log.Printf("level=warn component=webhook_reconciler msg=\"contribution refunded; ledger left as-is\" contribution_id=%s amount=%d", contribution.ID, contribution.Amount)
	r.publish(ctx, rabbitmq.RoutingContributionRefunded, domain.ContributionRefundedEvent{
		ContributionID: contribution.ID,
		OwnerID:        contribution.UserID,
		Amount:         contribution.Amount,
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

// findByIntentOrMetadata resolves a contribution by stored payment intent
// id, falling back to intent metadata for payments that failed before the
// success path ever recorded the intent reference.
func (r *Reconciler) findByIntentOrMetadata(ctx context.Context, paymentIntentID string, metadata map[string]string) (*domain.Contribution, error) {
	if paymentIntentID != "" {
		contribution, err := r.repo.FindContributionByPaymentIntent(ctx, paymentIntentID)
		if err == nil {
			return contribution, nil
		}
		if !errors.Is(err, store.ErrContributionNotFound) {
			return nil, err
		}
	}

	contributionID, parseErr := uuid.Parse(metadata["contribution_id"])
	if parseErr != nil {
		return nil, nil
	}
	contribution, err := r.repo.FindContributionByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, store.ErrContributionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return contribution, nil
}

func (r *Reconciler) publish(ctx context.Context, routingKey string, body interface{}) {
	if r.producer == nil {
		return
	}
	if err := r.producer.Publish(ctx, routingKey, body); err != nil {
		log.Printf("level=warn component=webhook_reconciler msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
