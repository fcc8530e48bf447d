package stripeclient

import (
	"errors"
	"testing"
	"time"
)

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}

func TestVerifySignature_Valid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	withFixedNow(t, now)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := SignPayload(payload, "whsec_test", now)

	if err := VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	now := time.Unix(1700000000, 0)
	withFixedNow(t, now)

	payload := []byte(`{"id":"evt_1"}`)
	valid := SignPayload(payload, "whsec_test", now)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
	}{
		{name: "missing header", payload: payload, header: "", secret: "whsec_test"},
		{name: "malformed header", payload: payload, header: "garbage", secret: "whsec_test"},
		{name: "wrong secret", payload: payload, header: valid, secret: "whsec_other"},
		{name: "tampered payload", payload: []byte(`{"id":"evt_2"}`), header: valid, secret: "whsec_test"},
		{name: "stale timestamp", payload: payload, header: SignPayload(payload, "whsec_test", now.Add(-10*time.Minute)), secret: "whsec_test"},
		{name: "future timestamp", payload: payload, header: SignPayload(payload, "whsec_test", now.Add(10*time.Minute)), secret: "whsec_test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.payload, tt.header, tt.secret, DefaultSignatureTolerance)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestVerifySignature_AcceptsAnyMatchingV1(t *testing.T) {
	now := time.Unix(1700000000, 0)
	withFixedNow(t, now)

	payload := []byte(`{"id":"evt_1"}`)
	valid := SignPayload(payload, "whsec_test", now)
	// Secret-rotation deliveries carry multiple v1 entries.
	header := valid + ",v1=deadbeef"

	if err := VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected rotated-secret header to verify, got %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_123", "payment_intent": "pi_456", "metadata": {"contribution_id": "abc"}}}
	}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if event.Type != EventCheckoutCompleted {
		t.Fatalf("expected type %q, got %q", EventCheckoutCompleted, event.Type)
	}

	session, err := event.CheckoutSessionObject()
	if err != nil {
		t.Fatalf("CheckoutSessionObject returned error: %v", err)
	}
	if session.ID != "cs_123" || session.PaymentIntent != "pi_456" {
		t.Fatalf("unexpected session decode: %+v", session)
	}
	if session.Metadata["contribution_id"] != "abc" {
		t.Fatalf("expected metadata contribution_id, got %v", session.Metadata)
	}
}

func TestParseEvent_MissingType(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"id":"evt_1"}`)); err == nil {
		t.Fatal("expected error for missing event type")
	}
}
