package refund

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"bookpay/internal/domain/booking"
	"bookpay/internal/domain/ledger"
	"bookpay/internal/domain/transaction"
	"bookpay/internal/domain/webhook"
	"bookpay/internal/provider"
	"bookpay/internal/store/memory"
)

// stubAdapter accepts or rejects outbound refund calls.
type stubAdapter struct {
	refundErr   error
	refundCalls []provider.RefundRequest
}

func (s *stubAdapter) Name() string              { return "stripe" }
func (s *stubAdapter) Profile() provider.Profile { return provider.Profile{Name: "stripe"} }
func (s *stubAdapter) ExtractSignature(http.Header) (provider.Signature, error) {
	return provider.Signature{}, nil
}
func (s *stubAdapter) EventID([]byte) (string, error) { return "", nil }
func (s *stubAdapter) NormalizeEvent([]byte) (webhook.Event, error) {
	return webhook.Event{}, nil
}
func (s *stubAdapter) CreateRefund(_ context.Context, req provider.RefundRequest) error {
	s.refundCalls = append(s.refundCalls, req)
	return s.refundErr
}
func (s *stubAdapter) ListTransactions(context.Context, time.Time, time.Time) ([]provider.ExportRow, error) {
	return nil, nil
}

type fixture struct {
	proc         *Processor
	adapter      *stubAdapter
	transactions *memory.TransactionRepository
	bookings     *memory.BookingStore
	entries      *memory.LedgerRepository
	jobs         *memory.JobQueue
	payment      *transaction.Transaction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	transactions := memory.NewTransactionRepository()
	bookings := memory.NewBookingStore()
	entries := memory.NewLedgerRepository()
	jobs := memory.NewJobQueue()
	uow := memory.NewUnitOfWork(transactions, entries, bookings, jobs)

	adapter := &stubAdapter{}
	registry := provider.NewRegistry()
	registry.Register(adapter)

	bookings.Put(booking.Booking{ID: "bk_1", TenantID: 1, Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentStatusPaid})

	pay, err := transaction.New(1, "bk_1", 10000, transaction.USD, transaction.TypePayment, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	pay.Status = transaction.StatusCompleted
	pay.ProviderTxID = "pi_1"
	if err := transactions.Insert(context.Background(), pay); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		proc:         NewProcessor(transactions, registry, uow),
		adapter:      adapter,
		transactions: transactions,
		bookings:     bookings,
		entries:      entries,
		jobs:         jobs,
		payment:      pay,
	}
}

func money(v int64) *transaction.Money {
	m := transaction.Money(v)
	return &m
}

func TestCreateRefundPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), "guest request")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Type != transaction.TypePartialRefund || ref.Status != transaction.StatusProcessing {
		t.Fatalf("unexpected refund: %+v", ref)
	}
	if len(f.adapter.refundCalls) != 1 || f.adapter.refundCalls[0].AmountMinor != 4000 {
		t.Fatalf("provider call: %+v", f.adapter.refundCalls)
	}
}

func TestCreateRefundDefaultsToRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Amount != 10000 || ref.Type != transaction.TypeRefund {
		t.Fatalf("full refund expected, got %+v", ref)
	}
}

func TestCreateRefundExceedsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(10001), ""); !errors.Is(err, ErrRefundExceedsBalance) {
		t.Fatalf("over-refund accepted: %v", err)
	}
	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(0), ""); !errors.Is(err, ErrRefundExceedsBalance) {
		t.Fatalf("zero refund accepted: %v", err)
	}
	// the balance check runs before any provider call
	if len(f.adapter.refundCalls) != 0 {
		t.Fatalf("provider called for invalid refunds: %d", len(f.adapter.refundCalls))
	}
}

func TestCreateRefundCumulativeBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), ""); err != nil {
			t.Fatal(err)
		}
		if err := f.proc.CompleteRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 4000}); err != nil {
			t.Fatal(err)
		}
	}

	// 4000 + 4000 already refunded of 10000: 3000 exceeds the remaining 2000
	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(3000), ""); !errors.Is(err, ErrRefundExceedsBalance) {
		t.Fatalf("refund past remaining balance accepted: %v", err)
	}
	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(2000), ""); err != nil {
		t.Fatalf("refund of exact remaining balance rejected: %v", err)
	}
}

func TestCreateRefundWrongTenant(t *testing.T) {
	f := newFixture(t)
	if _, err := f.proc.CreateRefund(context.Background(), 2, f.payment.ID, money(1000), ""); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("foreign transaction refundable: %v", err)
	}
}

func TestCreateRefundNonCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := transaction.New(1, "bk_2", 5000, transaction.USD, transaction.TypePayment, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.transactions.Insert(ctx, pending); err != nil {
		t.Fatal(err)
	}
	if _, err := f.proc.CreateRefund(ctx, 1, pending.ID, money(1000), ""); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("pending payment refundable: %v", err)
	}
}

func TestCreateRefundProviderRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.adapter.refundErr = &provider.Error{Code: provider.ErrCodeRefundRejected, Message: "rejected"}

	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), ""); err == nil {
		t.Fatal("provider rejection swallowed")
	}

	// the rejected refund row stays for audit, marked failed, and does not
	// consume the refundable balance
	f.adapter.refundErr = nil
	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(10000), ""); err != nil {
		t.Fatalf("failed refund consumed balance: %v", err)
	}
}

func TestCompleteRefundPartialThenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), ""); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.CompleteRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 4000}); err != nil {
		t.Fatal(err)
	}

	parent, _ := f.transactions.FindByID(ctx, f.payment.ID)
	if parent.Status != transaction.StatusPartialRefunded {
		t.Fatalf("parent status %s", parent.Status)
	}
	// booking untouched by a partial refund
	bk, _ := f.bookings.Find(ctx, "bk_1")
	if bk.PaymentStatus != booking.PaymentStatusPaid {
		t.Fatalf("partial refund changed booking: %+v", bk)
	}

	if _, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(6000), ""); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.CompleteRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 6000}); err != nil {
		t.Fatal(err)
	}

	parent, _ = f.transactions.FindByID(ctx, f.payment.ID)
	if parent.Status != transaction.StatusRefunded {
		t.Fatalf("parent status %s", parent.Status)
	}
	bk, _ = f.bookings.Find(ctx, "bk_1")
	if bk.PaymentStatus != booking.PaymentStatusRefunded || bk.Status != booking.StatusCancelled {
		t.Fatalf("full refund did not cancel booking: %+v", bk)
	}

	if !ledger.Balanced(f.entries.All()) {
		t.Fatal("ledger skewed after refunds")
	}
	if len(f.entries.All()) != 4 {
		t.Fatalf("expected 2 refund pairs, got %d entries", len(f.entries.All()))
	}
}

func TestFailRefundMarksInFlightRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), "guest request")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FailRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 4000, Reason: "balance_insufficient"}); err != nil {
		t.Fatal(err)
	}

	got, _ := f.transactions.FindByID(ctx, ref.ID)
	if got.Status != transaction.StatusFailed {
		t.Fatalf("refund status %s, want failed", got.Status)
	}
	if got.FailureReason != "balance_insufficient" {
		t.Fatalf("reason %q", got.FailureReason)
	}
	// a failed refund moves no money and leaves the parent untouched
	if len(f.entries.All()) != 0 {
		t.Fatal("failed refund wrote ledger entries")
	}
	parent, _ := f.transactions.FindByID(ctx, f.payment.ID)
	if parent.Status != transaction.StatusCompleted {
		t.Fatalf("parent status %s", parent.Status)
	}
}

func TestFailRefundDoesNotCaptureLaterConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.FailRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 4000}); err != nil {
		t.Fatal(err)
	}

	// a second refund of the same amount; its confirmation must attach to
	// the live row, never revive the failed one
	second, err := f.proc.CreateRefund(ctx, 1, f.payment.ID, money(4000), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.CompleteRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 4000}); err != nil {
		t.Fatal(err)
	}

	got, _ := f.transactions.FindByID(ctx, first.ID)
	if got.Status != transaction.StatusFailed {
		t.Fatalf("failed refund revived to %s", got.Status)
	}
	got, _ = f.transactions.FindByID(ctx, second.ID)
	if got.Status != transaction.StatusCompleted {
		t.Fatalf("live refund status %s, want completed", got.Status)
	}
	if len(f.entries.All()) != 2 {
		t.Fatalf("expected one refund pair, got %d entries", len(f.entries.All()))
	}
}

func TestFailRefundUnmatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// no in-flight refund with this amount: acknowledged without effect
	if err := f.proc.FailRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 1234}); err != nil {
		t.Fatalf("unmatched failure errored: %v", err)
	}
	if err := f.proc.FailRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_none", AmountMinor: 1234}); err != nil {
		t.Fatalf("failure for unknown transaction errored: %v", err)
	}
}

func TestCompleteRefundUnmatchedConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// no in-flight refund with this amount: acknowledged without effect
	if err := f.proc.CompleteRefund(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 1234}); err != nil {
		t.Fatalf("unmatched confirmation errored: %v", err)
	}
	if len(f.entries.All()) != 0 {
		t.Fatal("unmatched confirmation wrote ledger entries")
	}
}
