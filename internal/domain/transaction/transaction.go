package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction is the append-only financial record for a single payment,
// refund, chargeback, fee or adjustment. Rows are never deleted; corrections
// happen through new linked transactions, never by mutating the original.
type Transaction struct {
	ID            uuid.UUID
	TenantID      int64
	BookingID     string
	Amount        Money
	Currency      Currency
	Type          Type
	Status        Status
	Provider      string
	ProviderTxID  string
	ParentTxID    *uuid.UUID
	FailureReason string
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Money is a monetary amount in the smallest currency unit (cents).
type Money int64

// Currency is an ISO 4217 currency code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	KES Currency = "KES"
)

// Type classifies the financial movement a transaction records.
type Type string

const (
	TypePayment       Type = "payment"
	TypeRefund        Type = "refund"
	TypePartialRefund Type = "partial_refund"
	TypeChargeback    Type = "chargeback"
	TypeFee           Type = "fee"
	TypeAdjustment    Type = "adjustment"
)

// Status represents payment status
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
	StatusRefunded        Status = "refunded"
	StatusPartialRefunded Status = "partial_refunded"
	StatusDisputed        Status = "disputed"
)

// transitions is the one-directional state machine. A terminal state is only
// ever left through the refund/dispute follow-up states; those are reached by
// creating a separate refund/chargeback transaction, never by rewriting the
// original record.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded, StatusPartialRefunded, StatusDisputed},
	// a partially refunded payment can be refunded further, up to the full
	// balance, or disputed
	StatusPartialRefunded: {StatusRefunded, StatusDisputed},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further processing-stage transition exists.
// Refund/dispute states remain reachable from completed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled,
		StatusRefunded, StatusPartialRefunded, StatusDisputed:
		return true
	}
	return false
}

// IsLive reports whether the transaction still counts as an active payment
// intent for duplicate-intent checks.
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusCompleted
}

// New creates a pending transaction with validation.
func New(tenantID int64, bookingID string, amount Money, currency Currency, txType Type, providerName string) (*Transaction, error) {
	if tenantID <= 0 {
		return nil, DomainError{Code: ErrInvalidTenant, Message: fmt.Sprintf("invalid tenant ID: %d", tenantID)}
	}
	if amount <= 0 {
		return nil, DomainError{Code: ErrInvalidAmount, Message: fmt.Sprintf("amount must be positive: %d", amount)}
	}
	if strings.TrimSpace(providerName) == "" {
		return nil, DomainError{Code: ErrInvalidProvider, Message: "provider is required"}
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:        uuid.New(),
		TenantID:  tenantID,
		BookingID: bookingID,
		Amount:    amount,
		Currency:  currency,
		Type:      txType,
		Status:    StatusPending,
		Provider:  providerName,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRefund creates a processing refund transaction linked to its parent.
func NewRefund(parent *Transaction, amount Money, partial bool, reason string) (*Transaction, error) {
	txType := TypeRefund
	if partial {
		txType = TypePartialRefund
	}
	t, err := New(parent.TenantID, parent.BookingID, amount, parent.Currency, txType, parent.Provider)
	if err != nil {
		return nil, err
	}
	parentID := parent.ID
	t.ParentTxID = &parentID
	t.Status = StatusProcessing
	t.Metadata["reason"] = reason
	return t, nil
}

// TransitionTo applies a state-machine transition in place.
func (t *Transaction) TransitionTo(next Status) error {
	if !CanTransition(t.Status, next) {
		return DomainError{
			Code:    ErrInvalidTransition,
			Message: fmt.Sprintf("transaction %s cannot move from %s to %s", t.ID, t.Status, next),
		}
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// DomainError represents a domain-level error
type DomainError struct {
	Message string
	Code    string
}

func (e DomainError) Error() string {
	return fmt.Sprintf("domain error [%s]: %s", e.Code, e.Message)
}

// Domain error codes
const (
	ErrInvalidAmount     = "INVALID_AMOUNT"
	ErrInvalidTenant     = "INVALID_TENANT"
	ErrInvalidProvider   = "INVALID_PROVIDER"
	ErrInvalidTransition = "INVALID_TRANSITION"
)
