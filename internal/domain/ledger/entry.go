package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookpay/internal/domain/transaction"
)

// Account names the bookkeeping accounts entries are posted against.
type Account string

const (
	AccountCustomerPayments Account = "customer_payments"
	AccountRevenue          Account = "revenue"
	AccountCustomerRefunds  Account = "customer_refunds"
	AccountFees             Account = "fees"
	AccountDisputes         Account = "disputes"
)

// Side marks an entry as the debit or credit half of a pair.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Entry is one half of a double-entry pair. Entries are immutable once
// written and always reference the transaction that caused them.
type Entry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Account       Account
	Side          Side
	Amount        transaction.Money
	Currency      transaction.Currency
	CreatedAt     time.Time
}

// Pair holds a matched debit/credit pair for a single transaction. Invariant:
// both halves carry the same amount and currency, so for every transaction
// sum(debits) == sum(credits).
type Pair struct {
	Debit  Entry
	Credit Entry
}

// NewPair builds a balanced pair for a transaction.
func NewPair(txID uuid.UUID, debitAccount, creditAccount Account, amount transaction.Money, currency transaction.Currency) (Pair, error) {
	if amount <= 0 {
		return Pair{}, fmt.Errorf("ledger pair amount must be positive: %d", amount)
	}
	if debitAccount == creditAccount {
		return Pair{}, fmt.Errorf("ledger pair must span two accounts, got %s twice", debitAccount)
	}
	now := time.Now().UTC()
	return Pair{
		Debit: Entry{
			ID:            uuid.New(),
			TransactionID: txID,
			Account:       debitAccount,
			Side:          Debit,
			Amount:        amount,
			Currency:      currency,
			CreatedAt:     now,
		},
		Credit: Entry{
			ID:            uuid.New(),
			TransactionID: txID,
			Account:       creditAccount,
			Side:          Credit,
			Amount:        amount,
			Currency:      currency,
			CreatedAt:     now,
		},
	}, nil
}

// Balanced checks the debit/credit sums of a set of entries per currency.
func Balanced(entries []Entry) bool {
	sums := map[transaction.Currency]int64{}
	for _, e := range entries {
		switch e.Side {
		case Debit:
			sums[e.Currency] += int64(e.Amount)
		case Credit:
			sums[e.Currency] -= int64(e.Amount)
		}
	}
	for _, s := range sums {
		if s != 0 {
			return false
		}
	}
	return true
}
