package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bookpay/internal/domain/booking"
	"bookpay/internal/domain/ledger"
	"bookpay/internal/domain/transaction"
	"bookpay/internal/domain/webhook"
	"bookpay/internal/services/fraud"
	"bookpay/internal/store/memory"
)

type fixture struct {
	svc          *Service
	transactions *memory.TransactionRepository
	bookings     *memory.BookingStore
	entries      *memory.LedgerRepository
	jobs         *memory.JobQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	transactions := memory.NewTransactionRepository()
	bookings := memory.NewBookingStore()
	entries := memory.NewLedgerRepository()
	jobs := memory.NewJobQueue()
	uow := memory.NewUnitOfWork(transactions, entries, bookings, jobs)

	bookings.Put(booking.Booking{ID: "bk_1", TenantID: 1, Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentStatusUnpaid})

	scorer := fraud.NewWeightedScorer(50_000, nil)
	return &fixture{
		svc:          NewService(transactions, bookings, uow, scorer, 50_000),
		transactions: transactions,
		bookings:     bookings,
		entries:      entries,
		jobs:         jobs,
	}
}

func (f *fixture) createBound(t *testing.T, amount transaction.Money, providerTxID string) *transaction.Transaction {
	t.Helper()
	ctx := context.Background()
	init, err := f.svc.CreatePayment(ctx, 1, "bk_1", amount, transaction.USD, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.BindProviderTxID(ctx, 1, init.TransactionID, providerTxID); err != nil {
		t.Fatal(err)
	}
	tx, err := f.transactions.FindByID(ctx, init.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	init, err := f.svc.CreatePayment(ctx, 1, "bk_1", 10000, transaction.USD, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	tx, err := f.transactions.FindByID(ctx, init.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != transaction.StatusPending || tx.Type != transaction.TypePayment {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestCreatePaymentUnknownBooking(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreatePayment(context.Background(), 1, "bk_missing", 10000, transaction.USD, "stripe"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestCreatePaymentForeignBooking(t *testing.T) {
	f := newFixture(t)
	// tenant 2 must not see tenant 1's booking
	if _, err := f.svc.CreatePayment(context.Background(), 2, "bk_1", 10000, transaction.USD, "stripe"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestCreatePaymentDuplicateIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreatePayment(ctx, 1, "bk_1", 10000, transaction.USD, "stripe"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreatePayment(ctx, 1, "bk_1", 10000, transaction.USD, "stripe"); !errors.Is(err, ErrDuplicatePaymentIntent) {
		t.Fatalf("expected ErrDuplicatePaymentIntent, got %v", err)
	}
}

func TestCreatePaymentRecordsFraudAssessment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	init, err := f.svc.CreatePayment(ctx, 1, "bk_1", 300_000, transaction.USD, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	tx, err := f.transactions.FindByID(ctx, init.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Metadata["risk_score"] == "" || tx.Metadata["risk_recommendation"] == "" {
		t.Fatalf("high-value payment missing risk metadata: %v", tx.Metadata)
	}
	// advisory only: the transaction is still created as pending
	if tx.Status != transaction.StatusPending {
		t.Fatalf("fraud assessment must not block creation, got %s", tx.Status)
	}
}

func TestBindProviderTxID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.createBound(t, 10000, "pi_1")
	if tx.ProviderTxID != "pi_1" {
		t.Fatalf("reference not bound: %+v", tx)
	}
	if tx.Status != transaction.StatusProcessing {
		t.Fatalf("bound transaction should be processing, got %s", tx.Status)
	}

	// idempotent for the same reference, conflict for a different one
	if err := f.svc.BindProviderTxID(ctx, 1, tx.ID, "pi_1"); err != nil {
		t.Fatalf("rebinding same reference should no-op: %v", err)
	}
	if err := f.svc.BindProviderTxID(ctx, 1, tx.ID, "pi_2"); !errors.Is(err, ErrDuplicatePaymentIntent) {
		t.Fatalf("rebinding different reference accepted: %v", err)
	}
}

func TestCompletePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.createBound(t, 10000, "pi_1")

	err := f.svc.CompletePayment(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 10000})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := f.transactions.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusCompleted {
		t.Fatalf("status %s", got.Status)
	}

	entries, _ := f.entries.ListByTransactionID(ctx, tx.ID)
	if len(entries) != 2 {
		t.Fatalf("expected one ledger pair, got %d entries", len(entries))
	}
	if !ledger.Balanced(entries) {
		t.Fatal("ledger pair not balanced")
	}
	var debit, credit ledger.Entry
	for _, e := range entries {
		if e.Side == ledger.Debit {
			debit = e
		} else {
			credit = e
		}
	}
	if debit.Account != ledger.AccountCustomerPayments || credit.Account != ledger.AccountRevenue {
		t.Fatalf("wrong accounts: debit %s credit %s", debit.Account, credit.Account)
	}

	bk, _ := f.bookings.Find(ctx, "bk_1")
	if bk.PaymentStatus != booking.PaymentStatusPaid || bk.Status != booking.StatusConfirmed {
		t.Fatalf("booking not updated: %+v", bk)
	}

	jobs := f.jobs.Jobs()
	if len(jobs) != 1 || jobs[0].Type != JobPaymentCompleted {
		t.Fatalf("expected one %s job, got %+v", JobPaymentCompleted, jobs)
	}
}

func TestCompletePaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.createBound(t, 10000, "pi_1")
	meta := webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 10000}

	if err := f.svc.CompletePayment(ctx, "stripe", meta); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.CompletePayment(ctx, "stripe", meta); err != nil {
		t.Fatalf("second completion must no-op: %v", err)
	}

	entries, _ := f.entries.ListByTransactionID(ctx, tx.ID)
	if len(entries) != 2 {
		t.Fatalf("second completion wrote ledger entries: %d", len(entries))
	}
	if jobs := f.jobs.Jobs(); len(jobs) != 1 {
		t.Fatalf("second completion enqueued again: %d jobs", len(jobs))
	}
}

// gateRepo holds concurrent completion lookups until every caller has read
// the pre-completion row, forcing both past the read-side terminal check.
type gateRepo struct {
	*memory.TransactionRepository
	gate *sync.WaitGroup
}

func (g *gateRepo) FindByProviderTxID(ctx context.Context, providerName, providerTxID string) (*transaction.Transaction, error) {
	tx, err := g.TransactionRepository.FindByProviderTxID(ctx, providerName, providerTxID)
	g.gate.Done()
	g.gate.Wait()
	return tx, err
}

func TestCompletePaymentConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	transactions := memory.NewTransactionRepository()
	bookings := memory.NewBookingStore()
	entries := memory.NewLedgerRepository()
	jobs := memory.NewJobQueue()
	uow := memory.NewUnitOfWork(transactions, entries, bookings, jobs)
	bookings.Put(booking.Booking{ID: "bk_1", TenantID: 1, Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentStatusUnpaid})

	var gate sync.WaitGroup
	gate.Add(2)
	svc := NewService(&gateRepo{TransactionRepository: transactions, gate: &gate}, bookings, uow, nil, 0)

	tx, err := transaction.New(1, "bk_1", 10000, transaction.USD, transaction.TypePayment, "stripe")
	if err != nil {
		t.Fatal(err)
	}
	tx.Status = transaction.StatusProcessing
	tx.ProviderTxID = "pi_1"
	if err := transactions.Insert(ctx, tx); err != nil {
		t.Fatal(err)
	}

	// two provider deliveries with distinct event ids race past dedup;
	// only one may write the pair
	meta := webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 10000}
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- svc.CompletePayment(ctx, "stripe", meta) }()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}

	got, _ := transactions.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusCompleted {
		t.Fatalf("status %s", got.Status)
	}
	es, _ := entries.ListByTransactionID(ctx, tx.ID)
	if len(es) != 2 {
		t.Fatalf("expected one debit/credit pair, got %d ledger entries", len(es))
	}
	if n := len(jobs.Jobs()); n != 1 {
		t.Fatalf("expected one notification job, got %d", n)
	}
}

func TestCompletePaymentUnknownReference(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CompletePayment(context.Background(), "stripe", webhook.Metadata{ProviderTxID: "pi_none"})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestFailPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.createBound(t, 10000, "pi_1")

	err := f.svc.FailPayment(ctx, "stripe", webhook.Metadata{ProviderTxID: "pi_1", Reason: "card_declined"})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := f.transactions.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusFailed {
		t.Fatalf("status %s", got.Status)
	}
	if got.FailureReason != "card_declined" {
		t.Fatalf("reason %q", got.FailureReason)
	}
	// a failed charge moves no money
	if entries, _ := f.entries.ListByTransactionID(ctx, tx.ID); len(entries) != 0 {
		t.Fatalf("failed payment wrote ledger entries: %d", len(entries))
	}
}

func TestDisputePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.createBound(t, 10000, "pi_1")
	meta := webhook.Metadata{ProviderTxID: "pi_1", AmountMinor: 10000}

	if err := f.svc.CompletePayment(ctx, "stripe", meta); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DisputePayment(ctx, "stripe", meta); err != nil {
		t.Fatal(err)
	}

	got, _ := f.transactions.FindByID(ctx, tx.ID)
	if got.Status != transaction.StatusDisputed {
		t.Fatalf("status %s", got.Status)
	}

	// the chargeback is a separate linked transaction carrying the
	// reversing pair; the original's entries are untouched
	all := f.entries.All()
	if len(all) != 4 {
		t.Fatalf("expected 2 pairs, got %d entries", len(all))
	}
	if !ledger.Balanced(all) {
		t.Fatal("ledger skewed after dispute")
	}

	// repeated dispute notifications no-op
	if err := f.svc.DisputePayment(ctx, "stripe", meta); err != nil {
		t.Fatal(err)
	}
	if len(f.entries.All()) != 4 {
		t.Fatal("repeated dispute wrote more entries")
	}
}
