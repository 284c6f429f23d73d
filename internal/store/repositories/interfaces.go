package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bookpay/internal/domain/booking"
	"bookpay/internal/domain/ledger"
	"bookpay/internal/domain/tenant"
	"bookpay/internal/domain/transaction"
	"bookpay/internal/domain/webhook"
)

// ErrNotFound is returned by lookups that miss. Callers branch on it;
// a miss is ordinary control flow, not an exceptional condition.
var ErrNotFound = errors.New("not found")

// TransactionRepository defines the contract for the append-only
// transaction record.
type TransactionRepository interface {
	Insert(ctx context.Context, t *transaction.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	FindByProviderTxID(ctx context.Context, providerName, providerTxID string) (*transaction.Transaction, error)
	// FindLiveByBookingID returns a pending/processing/completed payment for
	// the booking, if one exists. Used for the duplicate-intent check.
	FindLiveByBookingID(ctx context.Context, tenantID int64, bookingID string) (*transaction.Transaction, error)
	FindByTenantID(ctx context.Context, tenantID int64, limit, offset int) ([]*transaction.Transaction, error)
	// ListByProviderWindow returns transactions for a provider created inside
	// [from, to] as of the snapshot instant, for reconciliation.
	ListByProviderWindow(ctx context.Context, providerName string, from, to, asOf time.Time) ([]*transaction.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error
	// UpdateStatusFrom sets status only when the current status is one of
	// from, in a single atomic statement. moved=false means another writer
	// advanced the row first; the caller must skip its side effects.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, status transaction.Status, from ...transaction.Status) (moved bool, err error)
	SetProviderTxID(ctx context.Context, id uuid.UUID, providerTxID string) error
	SetFailureReason(ctx context.Context, id uuid.UUID, reason string) error
	// SumCompletedRefunds returns the total of completed refund amounts
	// linked to the given parent transaction.
	SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (transaction.Money, error)
	// FindProcessingRefundByParent returns the oldest in-flight refund for
	// the parent with the given amount, used to match asynchronous refund
	// confirmations back to their transaction.
	FindProcessingRefundByParent(ctx context.Context, parentID uuid.UUID, amount transaction.Money) (*transaction.Transaction, error)
}

// LedgerRepository defines the contract for immutable double-entry rows.
// Entries can only be appended in matched pairs.
type LedgerRepository interface {
	AppendPair(ctx context.Context, pair ledger.Pair) error
	ListByTransactionID(ctx context.Context, txID uuid.UUID) ([]ledger.Entry, error)
}

// WebhookEventRepository persists the dedup/audit record for received events.
type WebhookEventRepository interface {
	// Register inserts the event if the (provider, event_id) pair is absent,
	// atomically. firstSeen=false means a duplicate delivery; that is a
	// normal branch, never an error.
	Register(ctx context.Context, rec webhook.Received) (firstSeen bool, err error)
	MarkProcessed(ctx context.Context, providerName, eventID string) error
	// Unregister releases an unprocessed registration so a later redelivery
	// passes the dedup gate again. Used to compensate when a delivery is
	// rejected after registration (e.g. throttled).
	Unregister(ctx context.Context, providerName, eventID string) error
	// PurgeOlderThan removes audit rows outside the retention window.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UniqueInsertStore is the atomic insert-if-absent primitive behind the
// event deduplicator. A unique-constraint-backed store and an in-memory
// single-instance store are interchangeable behind this contract.
type UniqueInsertStore interface {
	Register(ctx context.Context, rec webhook.Received) (firstSeen bool, err error)
}

// AtomicCounterStore is the shared counter behind the rate limiter. In a
// multi-instance deployment this must be backed by a shared store (e.g. a
// redis counter with TTL) so one global ceiling is enforced.
type AtomicCounterStore interface {
	// Incr increments the fixed-window counter for key and returns the new
	// count. The window TTL starts on the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// BookingStore is the opaque booking-record collaborator: verify ownership,
// update payment status. The booking subsystem itself lives elsewhere.
type BookingStore interface {
	Find(ctx context.Context, bookingID string) (*booking.Booking, error)
	UpdatePaymentStatus(ctx context.Context, bookingID, paymentStatus, status string) error
}

// JobQueue enqueues notification jobs for the external background-job
// system. Delivery and retry semantics belong to that system.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload any) error
}

// TenantRepository defines the contract for tenant data access
type TenantRepository interface {
	Save(ctx context.Context, t *tenant.Tenant) error
	FindByID(ctx context.Context, id int64) (*tenant.Tenant, error)
	FindByAPIKeyHash(ctx context.Context, keyHash string) (*tenant.Tenant, error)
}

// UnitOfWork defines the transactional write boundary. A ledger write
// (status update + paired entries + booking update + job enqueue) must
// commit or roll back as one unit.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a database transaction exposing tx-scoped repositories.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Transactions() TransactionRepository
	Ledger() LedgerRepository
	Bookings() BookingStore
	Jobs() JobQueue
}
