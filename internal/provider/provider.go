package provider

import (
	"context"
	"net/http"
	"time"

	"bookpay/internal/domain/webhook"
)

// Signature is the parsed content of a provider's signature header(s).
// Providers either embed a timestamp in the signature header and sign
// "<timestamp>.<body>" (TimestampSigned), or sign the raw body and send
// the timestamp, if any, in a separate header.
type Signature struct {
	Value           string // hex-encoded MAC
	Timestamp       int64  // unix seconds, 0 when absent
	TimestampSigned bool   // timestamp is part of the signed string
}

// Adapter is the per-provider variant behind the ingestion pipeline and the
// reconciliation engine. Each provider implements signature framing, event
// normalization and the outbound calls; the pipeline stays provider-agnostic.
type Adapter interface {
	Name() string
	Profile() Profile

	// ExtractSignature parses the provider's signature header(s). It must
	// not touch the body; verification happens on the raw bytes elsewhere.
	ExtractSignature(h http.Header) (Signature, error)

	// EventID extracts the provider event id used as the dedup key. This is
	// a minimal probe of the payload; full normalization is deferred until
	// every verification stage has passed.
	EventID(body []byte) (string, error)

	// NormalizeEvent maps the provider payload onto the canonical event
	// shape, translating provider event-type strings and extracting
	// amount/currency/customer/status into metadata.
	NormalizeEvent(body []byte) (webhook.Event, error)

	// CreateRefund asks the provider to refund part or all of a charge.
	// Completion is reported asynchronously through a webhook.
	CreateRefund(ctx context.Context, req RefundRequest) error

	// ListTransactions returns the provider's authoritative transaction
	// list for a window, for reconciliation.
	ListTransactions(ctx context.Context, from, to time.Time) ([]ExportRow, error)
}
