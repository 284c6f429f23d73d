package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bookpay/internal/domain/booking"
	"bookpay/internal/domain/ledger"
	"bookpay/internal/domain/transaction"
	"bookpay/internal/domain/webhook"
	"bookpay/internal/services/fraud"
	"bookpay/internal/store/repositories"
)

// Permanent business-rule failures; the HTTP layer maps these to 4xx so
// providers and clients do not retry them.
var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrDuplicatePaymentIntent = errors.New("duplicate payment intent")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrLedgerWriteFailed      = errors.New("ledger write failed")
)

// Notification job types enqueued for the external background-job queue.
const (
	JobPaymentCompleted = "notify.payment_completed"
	JobPaymentFailed    = "notify.payment_failed"
	JobPaymentDisputed  = "notify.payment_disputed"
)

// InitiationData is returned from CreatePayment for the client to start the
// provider checkout flow.
type InitiationData struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Provider      string    `json:"provider"`
	AmountMinor   int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Risk          string    `json:"risk_recommendation,omitempty"`
}

// Service owns the payment state machine and the double-entry bookkeeping
// writes around it.
type Service struct {
	transactions repositories.TransactionRepository
	bookings     repositories.BookingStore
	uow          repositories.UnitOfWork
	scorer       fraud.Scorer
	// fraud is consulted for amounts at or above this threshold; advisory only
	highValueMinor int64
}

// NewService creates the payment service.
func NewService(
	transactions repositories.TransactionRepository,
	bookings repositories.BookingStore,
	uow repositories.UnitOfWork,
	scorer fraud.Scorer,
	highValueMinor int64,
) *Service {
	return &Service{
		transactions:   transactions,
		bookings:       bookings,
		uow:            uow,
		scorer:         scorer,
		highValueMinor: highValueMinor,
	}
}

// CreatePayment validates the booking, rejects duplicate live intents and
// creates a pending transaction.
func (s *Service) CreatePayment(ctx context.Context, tenantID int64, bookingID string, amount transaction.Money, currency transaction.Currency, providerName string) (*InitiationData, error) {
	bk, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("booking lookup: %w", err)
	}
	if !bk.BelongsTo(tenantID) {
		// foreign bookings are indistinguishable from missing ones
		return nil, ErrBookingNotFound
	}

	if existing, err := s.transactions.FindLiveByBookingID(ctx, tenantID, bookingID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: transaction %s is %s", ErrDuplicatePaymentIntent, existing.ID, existing.Status)
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("duplicate intent check: %w", err)
	}

	t, err := transaction.New(tenantID, bookingID, amount, currency, transaction.TypePayment, providerName)
	if err != nil {
		return nil, err
	}

	init := &InitiationData{
		TransactionID: t.ID,
		Provider:      providerName,
		AmountMinor:   int64(amount),
		Currency:      string(currency),
	}

	if s.scorer != nil && int64(amount) >= s.highValueMinor {
		assessment := s.scorer.Score(ctx, fraud.Signals{
			TenantID:    tenantID,
			AmountMinor: int64(amount),
			Currency:    string(currency),
			Method:      providerName,
		})
		t.Metadata["risk_score"] = fmt.Sprintf("%d", assessment.Score)
		t.Metadata["risk_recommendation"] = string(assessment.Recommendation)
		init.Risk = string(assessment.Recommendation)
		log.Info().
			Str("transaction_id", t.ID.String()).
			Int("risk_score", assessment.Score).
			Str("recommendation", string(assessment.Recommendation)).
			Msg("fraud assessment recorded")
	}

	if err := s.transactions.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	log.Info().
		Str("transaction_id", t.ID.String()).
		Int64("tenant_id", tenantID).
		Str("booking_id", bookingID).
		Int64("amount", int64(amount)).
		Msg("payment intent created")
	return init, nil
}

// CompletePayment is invoked from a webhook handler when the provider
// reports a successful charge. Already-terminal transactions no-op: this is
// the second line of defense behind the dedup gate. The status update,
// ledger pair, booking update and notification enqueue commit as one unit.
func (s *Service) CompletePayment(ctx context.Context, providerName string, meta webhook.Metadata) error {
	t, err := s.transactions.FindByProviderTxID(ctx, providerName, meta.ProviderTxID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: provider tx %s/%s", ErrTransactionNotFound, providerName, meta.ProviderTxID)
		}
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if t.Status.IsTerminal() {
		log.Debug().
			Str("transaction_id", t.ID.String()).
			Str("status", string(t.Status)).
			Msg("complete payment no-op, transaction already terminal")
		return nil
	}
	if err := t.TransitionTo(transaction.StatusCompleted); err != nil {
		return err
	}

	pair, err := ledger.NewPair(t.ID, ledger.AccountCustomerPayments, ledger.AccountRevenue, t.Amount, t.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrLedgerWriteFailed, err)
	}
	defer tx.Rollback(ctx)

	moved, err := tx.Transactions().UpdateStatusFrom(ctx, t.ID, transaction.StatusCompleted,
		transaction.StatusPending, transaction.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%w: status: %v", ErrLedgerWriteFailed, err)
	}
	if !moved {
		// a concurrent delivery advanced the row first; that writer owns
		// the ledger pair
		log.Debug().
			Str("transaction_id", t.ID.String()).
			Msg("complete payment lost the status race, skipping ledger write")
		return nil
	}
	if err := tx.Ledger().AppendPair(ctx, pair); err != nil {
		return fmt.Errorf("%w: entries: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Bookings().UpdatePaymentStatus(ctx, t.BookingID, booking.PaymentStatusPaid, booking.StatusConfirmed); err != nil {
		return fmt.Errorf("%w: booking: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Jobs().Enqueue(ctx, JobPaymentCompleted, map[string]any{
		"transaction_id": t.ID,
		"booking_id":     t.BookingID,
		"amount":         int64(t.Amount),
		"currency":       string(t.Currency),
	}); err != nil {
		return fmt.Errorf("%w: enqueue: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrLedgerWriteFailed, err)
	}

	log.Info().
		Str("transaction_id", t.ID.String()).
		Str("provider_tx_id", meta.ProviderTxID).
		Msg("payment completed")
	return nil
}

// FailPayment records a failed charge. Retry policy evaluation is a
// business-rule hook left to the notification consumer.
func (s *Service) FailPayment(ctx context.Context, providerName string, meta webhook.Metadata) error {
	t, err := s.transactions.FindByProviderTxID(ctx, providerName, meta.ProviderTxID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: provider tx %s/%s", ErrTransactionNotFound, providerName, meta.ProviderTxID)
		}
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if t.Status.IsTerminal() {
		return nil
	}
	if err := t.TransitionTo(transaction.StatusFailed); err != nil {
		return err
	}

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	moved, err := tx.Transactions().UpdateStatusFrom(ctx, t.ID, transaction.StatusFailed,
		transaction.StatusPending, transaction.StatusProcessing)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	if meta.Reason != "" {
		if err := tx.Transactions().SetFailureReason(ctx, t.ID, meta.Reason); err != nil {
			return err
		}
	}
	if err := tx.Jobs().Enqueue(ctx, JobPaymentFailed, map[string]any{
		"transaction_id": t.ID,
		"booking_id":     t.BookingID,
		"reason":         meta.Reason,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", t.ID.String()).
		Str("reason", meta.Reason).
		Msg("payment failed")
	return nil
}

// DisputePayment records a chargeback against a completed payment: the
// original flips to disputed and a separate chargeback transaction carries
// the reversing ledger pair. The original row is never rewritten.
func (s *Service) DisputePayment(ctx context.Context, providerName string, meta webhook.Metadata) error {
	t, err := s.transactions.FindByProviderTxID(ctx, providerName, meta.ProviderTxID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: provider tx %s/%s", ErrTransactionNotFound, providerName, meta.ProviderTxID)
		}
		return fmt.Errorf("transaction lookup: %w", err)
	}
	if t.Status == transaction.StatusDisputed {
		return nil
	}
	if err := t.TransitionTo(transaction.StatusDisputed); err != nil {
		return err
	}

	cb, err := transaction.New(t.TenantID, t.BookingID, t.Amount, t.Currency, transaction.TypeChargeback, providerName)
	if err != nil {
		return err
	}
	parentID := t.ID
	cb.ParentTxID = &parentID
	cb.Status = transaction.StatusCompleted
	cb.ProviderTxID = meta.ProviderTxID

	pair, err := ledger.NewPair(cb.ID, ledger.AccountRevenue, ledger.AccountDisputes, t.Amount, t.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrLedgerWriteFailed, err)
	}
	defer tx.Rollback(ctx)

	moved, err := tx.Transactions().UpdateStatusFrom(ctx, t.ID, transaction.StatusDisputed,
		transaction.StatusCompleted)
	if err != nil {
		return fmt.Errorf("%w: status: %v", ErrLedgerWriteFailed, err)
	}
	if !moved {
		// a concurrent dispute event already recorded the chargeback
		return nil
	}
	if err := tx.Transactions().Insert(ctx, cb); err != nil {
		return fmt.Errorf("%w: chargeback: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Ledger().AppendPair(ctx, pair); err != nil {
		return fmt.Errorf("%w: entries: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Jobs().Enqueue(ctx, JobPaymentDisputed, map[string]any{
		"transaction_id": t.ID,
		"chargeback_id":  cb.ID,
		"booking_id":     t.BookingID,
	}); err != nil {
		return fmt.Errorf("%w: enqueue: %v", ErrLedgerWriteFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrLedgerWriteFailed, err)
	}

	log.Warn().
		Str("transaction_id", t.ID.String()).
		Str("chargeback_id", cb.ID.String()).
		Msg("payment disputed")
	return nil
}

// BindProviderTxID attaches the provider's transaction reference once the
// client has started the provider checkout. Webhook lookups key on this
// reference, so completion events for an unbound transaction cannot match.
func (s *Service) BindProviderTxID(ctx context.Context, tenantID int64, txID uuid.UUID, providerTxID string) error {
	t, err := s.findOwned(ctx, tenantID, txID)
	if err != nil {
		return err
	}
	if t.ProviderTxID == providerTxID {
		return nil
	}
	if t.ProviderTxID != "" || t.Status.IsTerminal() {
		return fmt.Errorf("%w: transaction %s already bound or terminal", ErrDuplicatePaymentIntent, t.ID)
	}
	if err := s.transactions.SetProviderTxID(ctx, t.ID, providerTxID); err != nil {
		return fmt.Errorf("bind provider reference: %w", err)
	}
	if t.Status == transaction.StatusPending {
		if err := s.transactions.UpdateStatus(ctx, t.ID, transaction.StatusProcessing); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
	}
	log.Info().
		Str("transaction_id", t.ID.String()).
		Str("provider_tx_id", providerTxID).
		Msg("provider reference bound")
	return nil
}

// FindForTenant returns a single transaction, hiding rows owned by other
// tenants behind ErrTransactionNotFound.
func (s *Service) FindForTenant(ctx context.Context, tenantID int64, txID uuid.UUID) (*transaction.Transaction, error) {
	return s.findOwned(ctx, tenantID, txID)
}

func (s *Service) findOwned(ctx context.Context, tenantID int64, txID uuid.UUID) (*transaction.Transaction, error) {
	t, err := s.transactions.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if t.TenantID != tenantID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

// ListByTenant retrieves transactions for a tenant with pagination.
func (s *Service) ListByTenant(ctx context.Context, tenantID int64, limit, offset int) ([]*transaction.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.transactions.FindByTenantID(ctx, tenantID, limit, offset)
}
