package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookpay/internal/domain/transaction"
	"bookpay/internal/store/repositories"
)

// TransactionRepository is the in-process implementation used by
// single-node development setups and tests. Semantics mirror the postgres
// repository.
type TransactionRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*transaction.Transaction
}

// NewTransactionRepository creates an empty repository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{rows: make(map[uuid.UUID]*transaction.Transaction)}
}

func (r *TransactionRepository) Insert(_ context.Context, t *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.rows[t.ID] = &cp
	return nil
}

func (r *TransactionRepository) FindByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TransactionRepository) FindByProviderTxID(_ context.Context, providerName, providerTxID string) (*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.rows {
		if t.Provider == providerName && t.ProviderTxID == providerTxID && t.Type == transaction.TypePayment {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *TransactionRepository) FindLiveByBookingID(_ context.Context, tenantID int64, bookingID string) (*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.rows {
		if t.TenantID == tenantID && t.BookingID == bookingID && t.Type == transaction.TypePayment && t.Status.IsLive() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *TransactionRepository) FindByTenantID(_ context.Context, tenantID int64, limit, offset int) ([]*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*transaction.Transaction
	for _, t := range r.rows {
		if t.TenantID == tenantID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *TransactionRepository) ListByProviderWindow(_ context.Context, providerName string, from, to, asOf time.Time) ([]*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*transaction.Transaction
	for _, t := range r.rows {
		if t.Provider != providerName || t.Type != transaction.TypePayment {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) || t.CreatedAt.After(asOf) || t.UpdatedAt.After(asOf) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TransactionRepository) UpdateStatus(_ context.Context, id uuid.UUID, status transaction.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TransactionRepository) UpdateStatusFrom(_ context.Context, id uuid.UUID, status transaction.Status, from ...transaction.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	for _, s := range from {
		if t.Status == s {
			t.Status = status
			t.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (r *TransactionRepository) SetProviderTxID(_ context.Context, id uuid.UUID, providerTxID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.ProviderTxID = providerTxID
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TransactionRepository) SetFailureReason(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.FailureReason = reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *TransactionRepository) SumCompletedRefunds(_ context.Context, parentID uuid.UUID) (transaction.Money, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum transaction.Money
	for _, t := range r.rows {
		if t.ParentTxID != nil && *t.ParentTxID == parentID && isRefundType(t.Type) && t.Status == transaction.StatusCompleted {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *TransactionRepository) FindProcessingRefundByParent(_ context.Context, parentID uuid.UUID, amount transaction.Money) (*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var oldest *transaction.Transaction
	for _, t := range r.rows {
		if t.ParentTxID == nil || *t.ParentTxID != parentID || !isRefundType(t.Type) {
			continue
		}
		if t.Status != transaction.StatusProcessing || t.Amount != amount {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func isRefundType(t transaction.Type) bool {
	return t == transaction.TypeRefund || t == transaction.TypePartialRefund
}
