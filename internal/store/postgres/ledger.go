package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookpay/internal/domain/ledger"
	"bookpay/internal/domain/transaction"
)

// LedgerRepository appends immutable double-entry rows. There is no update
// or delete path: entries are only ever written in matched pairs.
type LedgerRepository struct {
	db querier
}

// NewLedgerRepository creates a pool-backed repository.
func NewLedgerRepository(db querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const insertEntry = `
	INSERT INTO ledger_entries (id, transaction_id, account, side, amount, currency, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// AppendPair writes both halves of a pair. Callers run this inside a unit
// of work together with the status update it belongs to.
func (r *LedgerRepository) AppendPair(ctx context.Context, pair ledger.Pair) error {
	for _, e := range []ledger.Entry{pair.Debit, pair.Credit} {
		if _, err := r.db.Exec(ctx, insertEntry,
			e.ID, e.TransactionID, string(e.Account), string(e.Side),
			int64(e.Amount), string(e.Currency), e.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *LedgerRepository) ListByTransactionID(ctx context.Context, txID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, transaction_id, account, side, amount, currency, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY created_at, side`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(rows pgx.Rows) (ledger.Entry, error) {
	var e ledger.Entry
	var account, side, currency string
	var amount int64

	err := rows.Scan(&e.ID, &e.TransactionID, &account, &side, &amount, &currency, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Account = ledger.Account(account)
	e.Side = ledger.Side(side)
	e.Amount = transaction.Money(amount)
	e.Currency = transaction.Currency(currency)
	return e, nil
}
