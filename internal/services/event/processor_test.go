package event

import (
	"context"
	"testing"

	"bookpay/internal/domain/booking"
	"bookpay/internal/domain/transaction"
	"bookpay/internal/domain/webhook"
	"bookpay/internal/provider"
	"bookpay/internal/services/payment"
	"bookpay/internal/services/refund"
	"bookpay/internal/store/memory"
)

func newTestProcessor(t *testing.T) (*Processor, *memory.TransactionRepository) {
	t.Helper()
	transactions := memory.NewTransactionRepository()
	bookings := memory.NewBookingStore()
	entries := memory.NewLedgerRepository()
	jobs := memory.NewJobQueue()
	uow := memory.NewUnitOfWork(transactions, entries, bookings, jobs)

	bookings.Put(booking.Booking{ID: "bk_1", TenantID: 1, Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentStatusUnpaid})

	payments := payment.NewService(transactions, bookings, uow, nil, 0)
	refunds := refund.NewProcessor(transactions, provider.NewRegistry(), uow)
	return NewProcessor(payments, refunds), transactions
}

func seedProcessing(t *testing.T, repo *memory.TransactionRepository, providerTxID string) *transaction.Transaction {
	t.Helper()
	tx, err := transaction.New(1, "bk_1", 10000, transaction.USD, transaction.TypePayment, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	tx.Status = transaction.StatusProcessing
	tx.ProviderTxID = providerTxID
	if err := repo.Insert(context.Background(), tx); err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestProcessEventRoutesCompletion(t *testing.T) {
	p, repo := newTestProcessor(t)
	ctx := context.Background()
	tx := seedProcessing(t, repo, "pi_1")

	err := p.ProcessEvent(ctx, webhook.Event{
		ID:       "evt_1",
		Type:     webhook.TypePaymentCompleted,
		Provider: "stripe",
		Metadata: webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 10000},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := repo.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusCompleted {
		t.Fatalf("status %s", got.Status)
	}
}

func TestProcessEventRoutesFailure(t *testing.T) {
	p, repo := newTestProcessor(t)
	ctx := context.Background()
	tx := seedProcessing(t, repo, "pi_2")

	err := p.ProcessEvent(ctx, webhook.Event{
		ID:       "evt_2",
		Type:     webhook.TypePaymentFailed,
		Provider: "stripe",
		Metadata: webhook.Metadata{ProviderTxID: "pi_2", Reason: "insufficient_funds"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := repo.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusFailed || got.FailureReason != "insufficient_funds" {
		t.Fatalf("unexpected transaction: %+v", got)
	}
}

func TestProcessEventRoutesRefundFailure(t *testing.T) {
	p, repo := newTestProcessor(t)
	ctx := context.Background()

	parent := seedProcessing(t, repo, "pi_3")
	parent.Status = transaction.StatusCompleted
	if err := repo.Insert(ctx, parent); err != nil {
		t.Fatal(err)
	}
	ref, err := transaction.NewRefund(parent, 4000, true, "guest request")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Insert(ctx, ref); err != nil {
		t.Fatal(err)
	}

	err = p.ProcessEvent(ctx, webhook.Event{
		ID:       "evt_rf",
		Type:     webhook.TypeRefundFailed,
		Provider: "stripe",
		Metadata: webhook.Metadata{ProviderTxID: "pi_3", AmountMinor: 4000, Reason: "balance_insufficient"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := repo.FindByID(ctx, ref.ID)
	if got.Status != transaction.StatusFailed {
		t.Fatalf("refund status %s, want failed", got.Status)
	}
}

func TestProcessEventIgnoresUnknownTypes(t *testing.T) {
	p, _ := newTestProcessor(t)
	ctx := context.Background()

	for _, typ := range []webhook.Type{webhook.TypeUnknown, "something.else"} {
		if err := p.ProcessEvent(ctx, webhook.Event{ID: "evt_x", Type: typ, Provider: "stripe"}); err != nil {
			t.Fatalf("type %s should be acknowledged, got %v", typ, err)
		}
	}
}
