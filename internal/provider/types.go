package provider

import "time"

// Algorithm selects the HMAC hash a provider signs with.
type Algorithm string

const (
	AlgoSHA256 Algorithm = "sha256"
	AlgoSHA512 Algorithm = "sha512"
)

// Profile is the static per-provider configuration loaded at startup and
// immutable afterwards. The signature verifier, replay guard and rate
// limiter are all parameterized by it.
type Profile struct {
	Name            string
	SignatureHeader string
	TimestampHeader string // for providers that send the timestamp separately
	Algorithm       Algorithm
	SignaturePrefix string // e.g. "sha512=" stripped before hex decoding
	Tolerance       time.Duration
	FutureGrace     time.Duration
	RateLimitPerMin int
	Secret          []byte
}

// ExportRow is one transaction from a provider's authoritative export, the
// only shape the reconciliation engine depends on.
type ExportRow struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// RefundRequest is the outbound refund instruction handed to an adapter.
type RefundRequest struct {
	ProviderTxID string
	AmountMinor  int64
	Currency     string
	Reason       string
	Reference    string // our refund transaction id, echoed back in the webhook
}

// Error is a provider-layer error with a machine code.
type Error struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	ProviderErr string `json:"provider_error,omitempty"`
}

func (e *Error) Error() string {
	if e.ProviderErr != "" {
		return e.Message + ": " + e.ProviderErr
	}
	return e.Message
}

// Error codes
const (
	ErrCodeNotRegistered  = "provider_not_registered"
	ErrCodeBadPayload     = "bad_payload"
	ErrCodeBadSignature   = "bad_signature_header"
	ErrCodeRefundRejected = "refund_rejected"
	ErrCodeExportFailed   = "export_failed"
	ErrCodeTimeout        = "provider_timeout"
)
