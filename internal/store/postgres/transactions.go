package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookpay/internal/domain/transaction"
	"bookpay/internal/store/repositories"
)

const transactionColumns = `id, tenant_id, booking_id, amount, currency, tx_type, status,
	provider, provider_tx_id, parent_tx_id, failure_reason, metadata, created_at, updated_at`

// TransactionRepository is the pgx implementation of
// repositories.TransactionRepository.
type TransactionRepository struct {
	db querier
}

// NewTransactionRepository creates a pool-backed repository.
func NewTransactionRepository(db querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Insert(ctx context.Context, t *transaction.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,NULLIF($11,''),$12,$13,$14)`,
		t.ID, t.TenantID, t.BookingID, int64(t.Amount), string(t.Currency),
		string(t.Type), string(t.Status), t.Provider, t.ProviderTxID,
		t.ParentTxID, t.FailureReason, t.Metadata, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *TransactionRepository) FindByProviderTxID(ctx context.Context, providerName, providerTxID string) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE provider = $1 AND provider_tx_id = $2 AND tx_type = 'payment'`,
		providerName, providerTxID)
	return scanTransaction(row)
}

func (r *TransactionRepository) FindLiveByBookingID(ctx context.Context, tenantID int64, bookingID string) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE tenant_id = $1 AND booking_id = $2 AND tx_type = 'payment'
		  AND status IN ('pending','processing','completed')
		ORDER BY created_at DESC
		LIMIT 1`, tenantID, bookingID)
	return scanTransaction(row)
}

func (r *TransactionRepository) FindByTenantID(ctx context.Context, tenantID int64, limit, offset int) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *TransactionRepository) ListByProviderWindow(ctx context.Context, providerName string, from, to, asOf time.Time) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE provider = $1 AND tx_type = 'payment'
		  AND created_at BETWEEN $2 AND $3
		  AND created_at <= $4 AND updated_at <= $4
		ORDER BY created_at`, providerName, from, to, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = now()
		WHERE id = $2`, string(status), id)
	return err
}

// UpdateStatusFrom is the race-safe variant: the status predicate lives in
// the UPDATE itself, so two concurrent writers cannot both pass a guard
// they read moments earlier. The affected row count reports the winner.
func (r *TransactionRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, status transaction.Status, from ...transaction.Status) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)`, string(status), id, allowed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepository) SetProviderTxID(ctx context.Context, id uuid.UUID, providerTxID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET provider_tx_id = $1, updated_at = now()
		WHERE id = $2`, providerTxID, id)
	return err
}

func (r *TransactionRepository) SetFailureReason(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET failure_reason = $1, updated_at = now()
		WHERE id = $2`, reason, id)
	return err
}

func (r *TransactionRepository) SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (transaction.Money, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE parent_tx_id = $1
		  AND tx_type IN ('refund','partial_refund')
		  AND status = 'completed'`, parentID).Scan(&sum)
	return transaction.Money(sum), err
}

func (r *TransactionRepository) FindProcessingRefundByParent(ctx context.Context, parentID uuid.UUID, amount transaction.Money) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE parent_tx_id = $1
		  AND tx_type IN ('refund','partial_refund')
		  AND status = 'processing'
		  AND amount = $2
		ORDER BY created_at
		LIMIT 1`, parentID, int64(amount))
	return scanTransaction(row)
}

// scanTransaction scans a single row into the domain object.
func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var providerTxID, failureReason sql.NullString
	var amount int64
	var currency, txType, status string

	err := row.Scan(
		&t.ID, &t.TenantID, &t.BookingID, &amount, &currency, &txType, &status,
		&t.Provider, &providerTxID, &t.ParentTxID, &failureReason, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}

	t.Amount = transaction.Money(amount)
	t.Currency = transaction.Currency(currency)
	t.Type = transaction.Type(txType)
	t.Status = transaction.Status(status)
	if providerTxID.Valid {
		t.ProviderTxID = providerTxID.String
	}
	if failureReason.Valid {
		t.FailureReason = failureReason.String
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	return &t, nil
}

func scanTransactions(rows pgx.Rows) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
