package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bookpay/internal/domain/ledger"
)

// LedgerRepository is the in-process append-only ledger.
type LedgerRepository struct {
	mu      sync.RWMutex
	entries []ledger.Entry
}

// NewLedgerRepository creates an empty ledger.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) AppendPair(_ context.Context, pair ledger.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, pair.Debit, pair.Credit)
	return nil
}

func (r *LedgerRepository) ListByTransactionID(_ context.Context, txID uuid.UUID) ([]ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.TransactionID == txID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every entry, for balance assertions in tests.
func (r *LedgerRepository) All() []ledger.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ledger.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
