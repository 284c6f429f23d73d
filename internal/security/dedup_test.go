package security

import (
	"context"
	"testing"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/store/memory"
)

func TestDeduplicatorFirstAndDuplicate(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator(memory.NewDedupStore())

	rec, err := webhook.NewReceived("stripe", "evt_1", []byte(`{"id":"evt_1"}`))
	if err != nil {
		t.Fatal(err)
	}

	first, err := d.Register(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Fatal("first delivery reported as duplicate")
	}

	again, err := d.Register(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Fatal("second delivery reported as first")
	}
}

func TestDeduplicatorKeyedByProvider(t *testing.T) {
	ctx := context.Background()
	d := NewDeduplicator(memory.NewDedupStore())

	a, _ := webhook.NewReceived("stripe", "evt_1", []byte(`{}`))
	b, _ := webhook.NewReceived("paystack", "evt_1", []byte(`{}`))

	if first, _ := d.Register(ctx, a); !first {
		t.Fatal("stripe evt_1 should be first")
	}
	// same event id from a different provider is a distinct event
	if first, _ := d.Register(ctx, b); !first {
		t.Fatal("paystack evt_1 should be first for its provider")
	}
}
