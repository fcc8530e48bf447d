/**
 * @description
 * Webhook envelope types and signature verification for Stripe event
 * deliveries. Every inbound webhook MUST pass VerifySignature before any
 * state is read or mutated; the scheme is HMAC-SHA256 over
 * "<timestamp>.<payload>" with the endpoint secret, carried in the
 * Stripe-Signature header as "t=<unix>,v1=<hex>[,v1=<hex>…]".
 *
 * Event payloads are decoded into explicit structs at this boundary so the
 * reconciler never touches loosely-typed maps.
 */

package stripeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types the reconciler handles.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventPaymentIntentFailed = "payment_intent.payment_failed"
	EventChargeRefunded      = "charge.refunded"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// DefaultSignatureTolerance bounds the accepted clock skew between the
	// signed timestamp and now, limiting replay of captured deliveries.
	DefaultSignatureTolerance = 5 * time.Minute

	// timeNow is swapped in signature tests.
	timeNow = time.Now
)

// Event is the outer webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookCheckoutSession is the data object of checkout.session.completed.
type WebhookCheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// WebhookPaymentIntent is the data object of payment_intent.payment_failed.
type WebhookPaymentIntent struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// WebhookCharge is the data object of charge.refunded.
type WebhookCharge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Refunded      bool   `json:"refunded"`
}

// ParseEvent decodes the webhook envelope. Signature verification must have
// happened first; this function trusts its input.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("webhook payload decode failed: %w", err)
	}
	if event.Type == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	return &event, nil
}

// CheckoutSessionObject decodes the event's data object as a checkout session.
func (e *Event) CheckoutSessionObject() (*WebhookCheckoutSession, error) {
	var session WebhookCheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("checkout session object decode failed: %w", err)
	}
	return &session, nil
}

// PaymentIntentObject decodes the event's data object as a payment intent.
func (e *Event) PaymentIntentObject() (*WebhookPaymentIntent, error) {
	var intent WebhookPaymentIntent
	if err := json.Unmarshal(e.Data.Object, &intent); err != nil {
		return nil, fmt.Errorf("payment intent object decode failed: %w", err)
	}
	return &intent, nil
}

// ChargeObject decodes the event's data object as a charge.
func (e *Event) ChargeObject() (*WebhookCharge, error) {
	var charge WebhookCharge
	if err := json.Unmarshal(e.Data.Object, &charge); err != nil {
		return nil, fmt.Errorf("charge object decode failed: %w", err)
	}
	return &charge, nil
}

// VerifySignature checks the Stripe-Signature header against the payload
// using the endpoint secret. Returns ErrInvalidSignature for a missing,
// malformed, stale, or non-matching signature.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if strings.TrimSpace(header) == "" {
		return ErrInvalidSignature
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			parsed, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			candidates = append(candidates, pair[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}

	skew := timeNow().Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > tolerance {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a valid Stripe-Signature header for the payload.
// Used by tests and local webhook replay tooling.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
