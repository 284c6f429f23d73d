package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookpay/internal/store/repositories"
)

// UnitOfWork implements the transactional write boundary: a ledger write
// (status update + paired entries + booking update + job enqueue) commits
// or rolls back as one pgx transaction.
type UnitOfWork struct {
	db *pgxpool.Pool
}

// NewUnitOfWork creates a unit of work over the pool.
func NewUnitOfWork(db *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Begin starts a transaction at read-committed isolation.
func (u *UnitOfWork) Begin(ctx context.Context) (repositories.Tx, error) {
	tx, err := u.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

// pgxTx exposes tx-scoped repositories sharing one pgx.Tx. The repository
// types take any querier, so the same query code serves pool and tx.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *pgxTx) Transactions() repositories.TransactionRepository {
	return NewTransactionRepository(t.tx)
}

func (t *pgxTx) Ledger() repositories.LedgerRepository {
	return NewLedgerRepository(t.tx)
}

func (t *pgxTx) Bookings() repositories.BookingStore {
	return NewBookingStore(t.tx)
}

func (t *pgxTx) Jobs() repositories.JobQueue {
	return NewJobQueue(t.tx)
}
