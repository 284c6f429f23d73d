package memory

import (
	"context"

	"bookpay/internal/store/repositories"
)

// UnitOfWork wraps the in-process stores behind the transactional
// contract. Writes apply immediately and rollback is a no-op, which is
// acceptable for single-node development and tests but not for money
// movement in production; the postgres unit of work is the real boundary.
type UnitOfWork struct {
	transactions *TransactionRepository
	ledger       *LedgerRepository
	bookings     *BookingStore
	jobs         *JobQueue
}

// NewUnitOfWork creates a unit of work over the given stores.
func NewUnitOfWork(transactions *TransactionRepository, ledger *LedgerRepository, bookings *BookingStore, jobs *JobQueue) *UnitOfWork {
	return &UnitOfWork{transactions: transactions, ledger: ledger, bookings: bookings, jobs: jobs}
}

func (u *UnitOfWork) Begin(context.Context) (repositories.Tx, error) {
	return &memTx{u: u}, nil
}

type memTx struct {
	u *UnitOfWork
}

func (t *memTx) Commit(context.Context) error   { return nil }
func (t *memTx) Rollback(context.Context) error { return nil }

func (t *memTx) Transactions() repositories.TransactionRepository { return t.u.transactions }
func (t *memTx) Ledger() repositories.LedgerRepository            { return t.u.ledger }
func (t *memTx) Bookings() repositories.BookingStore              { return t.u.bookings }
func (t *memTx) Jobs() repositories.JobQueue                      { return t.u.jobs }
