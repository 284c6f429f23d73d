package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Type is the canonical event vocabulary provider event-type strings are
// normalized onto before any business logic runs.
type Type string

const (
	TypePaymentCompleted Type = "payment.completed"
	TypePaymentFailed    Type = "payment.failed"
	TypePaymentDisputed  Type = "payment.disputed"
	TypeRefundCompleted  Type = "refund.completed"
	TypeRefundFailed     Type = "refund.failed"
	TypeUnknown          Type = "unknown"
)

// Event is the canonical shape a provider payload is normalized into after
// the verification stages pass.
type Event struct {
	ID        string
	Type      Type
	Provider  string
	Timestamp time.Time
	Data      []byte
	Metadata  Metadata
}

// Metadata carries the fields the ledger cares about, extracted from the
// provider-specific payload.
type Metadata struct {
	ProviderTxID string
	AmountMinor  int64
	Currency     string
	Customer     string
	Status       string
	Reason       string
}

// Received is the audit record written by the deduplication gate on first
// delivery of an event. Only the Processed flag ever changes afterwards.
type Received struct {
	EventID     string
	Provider    string
	EventType   string
	ReceivedAt  time.Time
	PayloadHash string
	Processed   bool
}

// NewReceived builds the dedup/audit record for a raw delivery.
func NewReceived(providerName, eventID string, body []byte) (Received, error) {
	if strings.TrimSpace(eventID) == "" {
		return Received{}, fmt.Errorf("event ID is required")
	}
	if strings.TrimSpace(providerName) == "" {
		return Received{}, fmt.Errorf("provider is required")
	}
	sum := sha256.Sum256(body)
	return Received{
		EventID:     eventID,
		Provider:    providerName,
		ReceivedAt:  time.Now().UTC(),
		PayloadHash: hex.EncodeToString(sum[:]),
	}, nil
}
