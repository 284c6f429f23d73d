// Package stripe adapts Stripe-style webhooks and API calls: composite
// "t=<unix>,v1=<hex>" signature header, HMAC-SHA256 over "<timestamp>.<body>".
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/provider"
	"bookpay/internal/provider/base"
	"bookpay/internal/security"
)

const (
	Name            = "stripe"
	signatureHeader = "Stripe-Signature"
)

// eventTypeMap translates Stripe event-type strings to canonical types.
var eventTypeMap = map[string]webhook.Type{
	"payment_intent.succeeded":      webhook.TypePaymentCompleted,
	"payment_intent.payment_failed": webhook.TypePaymentFailed,
	"charge.refunded":               webhook.TypeRefundCompleted,
	"refund.failed":                 webhook.TypeRefundFailed,
	"charge.dispute.created":        webhook.TypePaymentDisputed,
}

// Adapter implements provider.Adapter for Stripe.
type Adapter struct {
	profile provider.Profile
	client  *base.HTTPClient
	apiKey  string
}

// Config holds the adapter's startup configuration.
type Config struct {
	Secret          []byte // webhook signing secret
	APIKey          string // secret key for outbound calls
	BaseURL         string
	Tolerance       time.Duration
	RateLimitPerMin int
}

// New creates a Stripe adapter.
func New(cfg Config) *Adapter {
	client := base.NewHTTPClient(Name, 20)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	client.SetBaseURL(cfg.BaseURL)

	return &Adapter{
		profile: provider.Profile{
			Name:            Name,
			SignatureHeader: signatureHeader,
			Algorithm:       provider.AlgoSHA256,
			Tolerance:       cfg.Tolerance,
			FutureGrace:     security.DefaultFutureGrace,
			RateLimitPerMin: cfg.RateLimitPerMin,
			Secret:          cfg.Secret,
		},
		client: client,
		apiKey: cfg.APIKey,
	}
}

func (a *Adapter) Name() string              { return Name }
func (a *Adapter) Profile() provider.Profile { return a.profile }

// ExtractSignature parses the composite Stripe-Signature header.
func (a *Adapter) ExtractSignature(h http.Header) (provider.Signature, error) {
	return security.ParseComposite(h.Get(signatureHeader))
}

// envelope is the outer Stripe event shape.
type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID             string            `json:"id"`
			Amount         int64             `json:"amount"`
			AmountRefunded int64             `json:"amount_refunded"`
			Currency       string            `json:"currency"`
			Customer       string            `json:"customer"`
			Status         string            `json:"status"`
			Metadata       map[string]string `json:"metadata"`
			FailureMessage string            `json:"failure_message"`
		} `json:"object"`
	} `json:"data"`
}

// EventID probes the payload for the event id used as the dedup key.
func (a *Adapter) EventID(body []byte) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ID == "" {
		return "", &provider.Error{Code: provider.ErrCodeBadPayload, Message: "stripe payload has no event id"}
	}
	return probe.ID, nil
}

// NormalizeEvent maps a Stripe event onto the canonical shape.
func (a *Adapter) NormalizeEvent(body []byte) (webhook.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return webhook.Event{}, &provider.Error{Code: provider.ErrCodeBadPayload, Message: "invalid stripe payload", ProviderErr: err.Error()}
	}
	if env.ID == "" || env.Type == "" {
		return webhook.Event{}, &provider.Error{Code: provider.ErrCodeBadPayload, Message: "stripe payload missing id or type"}
	}

	canonical, ok := eventTypeMap[env.Type]
	if !ok {
		canonical = webhook.TypeUnknown
	}

	obj := env.Data.Object
	amount := obj.Amount
	if canonical == webhook.TypeRefundCompleted && obj.AmountRefunded > 0 {
		amount = obj.AmountRefunded
	}

	return webhook.Event{
		ID:        env.ID,
		Type:      canonical,
		Provider:  Name,
		Timestamp: time.Unix(env.Created, 0).UTC(),
		Data:      body,
		Metadata: webhook.Metadata{
			ProviderTxID: obj.ID,
			AmountMinor:  amount,
			Currency:     obj.Currency,
			Customer:     obj.Customer,
			Status:       obj.Status,
			Reason:       obj.FailureMessage,
		},
	}, nil
}

// CreateRefund requests a refund for a charge.
func (a *Adapter) CreateRefund(ctx context.Context, req provider.RefundRequest) error {
	payload := map[string]any{
		"payment_intent": req.ProviderTxID,
		"amount":         req.AmountMinor,
		"reason":         req.Reason,
		"metadata":       map[string]string{"reference": req.Reference},
	}
	resp, err := a.client.PostJSON(ctx, "/v1/refunds", payload, a.authHeaders())
	if err != nil {
		return &provider.Error{Code: provider.ErrCodeTimeout, Message: "stripe refund request failed", ProviderErr: err.Error()}
	}
	if !resp.IsSuccess() {
		return &provider.Error{
			Code:        provider.ErrCodeRefundRejected,
			Message:     fmt.Sprintf("stripe rejected refund with status %d", resp.StatusCode),
			ProviderErr: string(resp.Body),
		}
	}
	return nil
}

// ListTransactions fetches the authoritative transaction export for a window.
func (a *Adapter) ListTransactions(ctx context.Context, from, to time.Time) ([]provider.ExportRow, error) {
	endpoint := fmt.Sprintf("/v1/balance_transactions?created[gte]=%d&created[lte]=%d&limit=100", from.Unix(), to.Unix())
	resp, err := a.client.Get(ctx, endpoint, a.authHeaders())
	if err != nil {
		return nil, &provider.Error{Code: provider.ErrCodeExportFailed, Message: "stripe export fetch failed", ProviderErr: err.Error()}
	}
	if !resp.IsSuccess() {
		return nil, &provider.Error{
			Code:    provider.ErrCodeExportFailed,
			Message: fmt.Sprintf("stripe export returned status %d", resp.StatusCode),
		}
	}

	var list struct {
		Data []struct {
			Source   string `json:"source"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	if err := resp.UnmarshalJSON(&list); err != nil {
		return nil, &provider.Error{Code: provider.ErrCodeExportFailed, Message: "invalid stripe export payload", ProviderErr: err.Error()}
	}

	rows := make([]provider.ExportRow, 0, len(list.Data))
	for _, d := range list.Data {
		rows = append(rows, provider.ExportRow{
			ID:          d.Source,
			AmountMinor: d.Amount,
			Currency:    d.Currency,
			Status:      d.Status,
		})
	}
	return rows, nil
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}
