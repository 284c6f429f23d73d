package paystack

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/security"
)

func testAdapter() *Adapter {
	return New(Config{
		Secret:    []byte("sk_paystack_test"),
		Tolerance: 5 * time.Minute,
	})
}

func TestExtractSignature(t *testing.T) {
	a := testAdapter()
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)
	ts := time.Now().Unix()

	h := http.Header{}
	h.Set("X-Paystack-Signature", security.Sign(a.Profile(), body, 0))
	h.Set("X-Paystack-Timestamp", strconv.FormatInt(ts, 10))

	sig, err := a.ExtractSignature(h)
	if err != nil {
		t.Fatal(err)
	}
	// the timestamp travels in its own header and is not part of the
	// signed string
	if sig.TimestampSigned {
		t.Fatal("flat signature must not mark the timestamp as signed")
	}
	if sig.Timestamp != ts {
		t.Fatalf("timestamp header not read: %+v", sig)
	}
	if err := security.NewVerifier().Verify(a.Profile(), body, sig); err != nil {
		t.Fatalf("extracted signature failed verification: %v", err)
	}

	if _, err := a.ExtractSignature(http.Header{}); err == nil {
		t.Fatal("missing signature header accepted")
	}
}

func TestEventID(t *testing.T) {
	a := testAdapter()
	id, err := a.EventID([]byte(`{"event":"charge.success","data":{"reference":"ref_9"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if id != "charge.success:ref_9" {
		t.Fatalf("got %q", id)
	}
	if _, err := a.EventID([]byte(`{"event":"charge.success","data":{}}`)); err == nil {
		t.Fatal("payload without reference accepted")
	}
}

func TestNormalizeEvent(t *testing.T) {
	a := testAdapter()
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"id": 12345,
			"reference": "ref_77",
			"amount": 500000,
			"currency": "kes",
			"status": "success",
			"paid_at": "2026-08-01T10:00:00Z",
			"customer": {"email": "guest@example.com"}
		}
	}`)

	evt, err := a.NormalizeEvent(body)
	if err != nil {
		t.Fatal(err)
	}
	if evt.Type != webhook.TypePaymentCompleted {
		t.Fatalf("type not mapped: %s", evt.Type)
	}
	if evt.ID != "charge.success:ref_77" {
		t.Fatalf("event id %q", evt.ID)
	}
	if evt.Metadata.Currency != "KES" {
		t.Fatalf("currency not normalized: %q", evt.Metadata.Currency)
	}
	if evt.Metadata.Customer != "guest@example.com" || evt.Metadata.AmountMinor != 500000 {
		t.Fatalf("metadata not extracted: %+v", evt.Metadata)
	}
	if evt.Timestamp.Format(time.RFC3339) != "2026-08-01T10:00:00Z" {
		t.Fatalf("paid_at not carried: %v", evt.Timestamp)
	}
}

func TestNormalizeEventUnknownType(t *testing.T) {
	a := testAdapter()
	evt, err := a.NormalizeEvent([]byte(`{"event":"subscription.create","data":{"reference":"ref_1"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Type != webhook.TypeUnknown {
		t.Fatalf("unmapped type should normalize to unknown, got %s", evt.Type)
	}
}
