package refund

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
	"bookpay/internal/provider"
	"bookpay/internal/store/repositories"
)

var (
	// ErrRefundExceedsBalance is permanent: retrying can never succeed, so
	// the HTTP layer returns 4xx.
	ErrRefundExceedsBalance = errors.New("refund exceeds remaining balance")
	ErrNotRefundable        = errors.New("transaction is not refundable")
	ErrRefundNotFound       = errors.New("refund transaction not found")
)

// JobRefundCompleted is the notification job type for finished refunds.
const JobRefundCompleted = "notify.refund_completed"

// Processor validates and executes partial/full refunds against the ledger.
type Processor struct {
	transactions repositories.TransactionRepository
	registry     *provider.Registry
	uow          repositories.UnitOfWork
}

// NewProcessor creates the refund processor.
func NewProcessor(transactions repositories.TransactionRepository, registry *provider.Registry, uow repositories.UnitOfWork) *Processor {
	return &Processor{transactions: transactions, registry: registry, uow: uow}
}

// CreateRefund validates the balance invariant and asks the provider for
// the refund. amount == nil means the full remaining balance. The balance
// check happens before any provider call is made.
func (p *Processor) CreateRefund(ctx context.Context, tenantID int64, txID uuid.UUID, amount *transaction.Money, reason string) (*transaction.Transaction, error) {
	orig, err := p.transactions.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotRefundable, txID)
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if orig.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", ErrNotRefundable, txID)
	}
	if orig.Type != transaction.TypePayment {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotRefundable, txID, orig.Type)
	}
	switch orig.Status {
	case transaction.StatusCompleted, transaction.StatusPartialRefunded:
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRefundable, txID, orig.Status)
	}

	refunded, err := p.transactions.SumCompletedRefunds(ctx, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("refund sum: %w", err)
	}
	remaining := orig.Amount - refunded

	amt := remaining
	if amount != nil {
		amt = *amount
	}
	if amt <= 0 || amt > remaining {
		return nil, fmt.Errorf("%w: requested %d, remaining %d of %d", ErrRefundExceedsBalance, amt, remaining, orig.Amount)
	}

	ref, err := transaction.NewRefund(orig, amt, amt < orig.Amount, reason)
	if err != nil {
		return nil, err
	}
	ref.ProviderTxID = orig.ProviderTxID

	if err := p.transactions.Insert(ctx, ref); err != nil {
		return nil, fmt.Errorf("insert refund: %w", err)
	}

	adapter, err := p.registry.Get(orig.Provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.CreateRefund(ctx, provider.RefundRequest{
		ProviderTxID: orig.ProviderTxID,
		AmountMinor:  int64(amt),
		Currency:     string(orig.Currency),
		Reason:       reason,
		Reference:    ref.ID.String(),
	}); err != nil {
		// record the rejection; the refund row stays for audit
		if ferr := p.transactions.UpdateStatus(ctx, ref.ID, transaction.StatusFailed); ferr != nil {
			log.Error().Err(ferr).Str("transaction_id", ref.ID.String()).Msg("failed to mark rejected refund")
		}
		return nil, fmt.Errorf("provider refund: %w", err)
	}

	log.Info().
		Str("transaction_id", ref.ID.String()).
		Str("parent_transaction_id", orig.ID.String()).
		Int64("amount", int64(amt)).
		Msg("refund requested")
	return ref, nil
}

// CompleteRefund is invoked from a webhook handler when the provider
// confirms a refund. It writes the reversing ledger pair, advances the
// parent to refunded/partial_refunded and, on a full refund, cancels the
// booking. Everything commits as one unit.
func (p *Processor) CompleteRefund(ctx context.Context, providerName string, meta webhook.Metadata) error {
	parent, err := p.transactions.FindByProviderTxID(ctx, providerName, meta.ProviderTxID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: provider tx %s/%s", ErrRefundNotFound, providerName, meta.ProviderTxID)
		}
		return fmt.Errorf("parent lookup: %w", err)
	}

	ref, err := p.transactions.FindProcessingRefundByParent(ctx, parent.ID, transaction.Money(meta.AmountMinor))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// confirmation already applied, or refund initiated elsewhere
			log.Debug().
				Str("parent_transaction_id", parent.ID.String()).
				Int64("amount", meta.AmountMinor).
				Msg("no in-flight refund matches confirmation, ignoring")
			return nil
		}
		return fmt.Errorf("refund lookup: %w", err)
	}

	refunded, err := p.transactions.SumCompletedRefunds(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("refund sum: %w", err)
	}
	total := refunded + ref.Amount
	fullyRefunded := total >= parent.Amount

	parentStatus := transaction.StatusPartialRefunded
	if fullyRefunded {
		parentStatus = transaction.StatusRefunded
	}

	pair, err := ledger.NewPair(ref.ID, ledger.AccountRevenue, ledger.AccountCustomerRefunds, ref.Amount, ref.Currency)
	if err != nil {
		return fmt.Errorf("ledger pair: %w", err)
	}

	tx, err := p.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	moved, err := tx.Transactions().UpdateStatusFrom(ctx, ref.ID, transaction.StatusCompleted,
		transaction.StatusProcessing)
	if err != nil {
		return fmt.Errorf("refund status: %w", err)
	}
	if !moved {
		// a concurrent confirmation already applied this refund
		return nil
	}
	if parent.Status != parentStatus {
		if err := tx.Transactions().UpdateStatus(ctx, parent.ID, parentStatus); err != nil {
			return fmt.Errorf("parent status: %w", err)
		}
	}
	if err := tx.Ledger().AppendPair(ctx, pair); err != nil {
		return fmt.Errorf("ledger entries: %w", err)
	}
	if fullyRefunded {
		if err := tx.Bookings().UpdatePaymentStatus(ctx, parent.BookingID, booking.PaymentStatusRefunded, booking.StatusCancelled); err != nil {
			return fmt.Errorf("booking: %w", err)
		}
	}
	if err := tx.Jobs().Enqueue(ctx, JobRefundCompleted, map[string]any{
		"transaction_id":        ref.ID,
		"parent_transaction_id": parent.ID,
		"booking_id":            parent.BookingID,
		"amount":                int64(ref.Amount),
		"fully_refunded":        fullyRefunded,
	}); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Info().
		Str("transaction_id", ref.ID.String()).
		Str("parent_transaction_id", parent.ID.String()).
		Bool("fully_refunded", fullyRefunded).
		Msg("refund completed")
	return nil
}

// FailRefund is invoked from a webhook handler when the provider rejects a
// refund after accepting the request. The matched in-flight row flips to
// failed so a later confirmation for another refund of the same amount
// cannot attach to it. Unmatched failures are acknowledged.
func (p *Processor) FailRefund(ctx context.Context, providerName string, meta webhook.Metadata) error {
	parent, err := p.transactions.FindByProviderTxID(ctx, providerName, meta.ProviderTxID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Debug().
				Str("provider", providerName).
				Str("provider_tx_id", meta.ProviderTxID).
				Msg("refund failure for unknown transaction, ignoring")
			return nil
		}
		return fmt.Errorf("parent lookup: %w", err)
	}

	ref, err := p.transactions.FindProcessingRefundByParent(ctx, parent.ID, transaction.Money(meta.AmountMinor))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			log.Debug().
				Str("parent_transaction_id", parent.ID.String()).
				Int64("amount", meta.AmountMinor).
				Msg("no in-flight refund matches failure, ignoring")
			return nil
		}
		return fmt.Errorf("refund lookup: %w", err)
	}

	moved, err := p.transactions.UpdateStatusFrom(ctx, ref.ID, transaction.StatusFailed,
		transaction.StatusProcessing)
	if err != nil {
		return fmt.Errorf("refund status: %w", err)
	}
	if !moved {
		return nil
	}
	if meta.Reason != "" {
		if err := p.transactions.SetFailureReason(ctx, ref.ID, meta.Reason); err != nil {
			return fmt.Errorf("failure reason: %w", err)
		}
	}

	log.Warn().
		Str("transaction_id", ref.ID.String()).
		Str("parent_transaction_id", parent.ID.String()).
		Str("reason", meta.Reason).
		Msg("refund failed at provider")
	return nil
}
