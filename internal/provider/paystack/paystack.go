// Package paystack adapts Paystack-style webhooks and API calls: flat hex
// signature in X-Paystack-Signature, HMAC-SHA512 over the raw body, event
// timestamp in a separate header.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/provider"
	"bookpay/internal/provider/base"
	"bookpay/internal/security"
)

const (
	Name            = "paystack"
	signatureHeader = "X-Paystack-Signature"
	timestampHeader = "X-Paystack-Timestamp"
)

var eventTypeMap = map[string]webhook.Type{
	"charge.success":   webhook.TypePaymentCompleted,
	"charge.failed":    webhook.TypePaymentFailed,
	"charge.dispute":   webhook.TypePaymentDisputed,
	"refund.processed": webhook.TypeRefundCompleted,
	"refund.failed":    webhook.TypeRefundFailed,
}

// Adapter implements provider.Adapter for Paystack.
type Adapter struct {
	profile provider.Profile
	client  *base.HTTPClient
	apiKey  string
}

// Config holds the adapter's startup configuration.
type Config struct {
	Secret          []byte
	APIKey          string
	BaseURL         string
	Tolerance       time.Duration
	RateLimitPerMin int
}

// New creates a Paystack adapter.
func New(cfg Config) *Adapter {
	client := base.NewHTTPClient(Name, 20)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	client.SetBaseURL(cfg.BaseURL)

	return &Adapter{
		profile: provider.Profile{
			Name:            Name,
			SignatureHeader: signatureHeader,
			TimestampHeader: timestampHeader,
			Algorithm:       provider.AlgoSHA512,
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

// ExtractSignature reads the flat hex signature and the separate timestamp
// header. The timestamp is not part of the signed string here.
func (a *Adapter) ExtractSignature(h http.Header) (provider.Signature, error) {
	sig := strings.TrimSpace(h.Get(signatureHeader))
	if sig == "" {
		return provider.Signature{}, &provider.Error{Code: provider.ErrCodeBadSignature, Message: "missing " + signatureHeader}
	}
	ts, _ := strconv.ParseInt(h.Get(timestampHeader), 10, 64)
	return provider.Signature{Value: sig, Timestamp: ts}, nil
}

type envelope struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		PaidAt    string `json:"paid_at"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata map[string]string `json:"metadata"`
		Message  string            `json:"gateway_response"`
	} `json:"data"`
}

// EventID derives the dedup key from event name and charge reference;
// Paystack has no top-level event id.
func (a *Adapter) EventID(body []byte) (string, error) {
	var probe struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Event == "" || probe.Data.Reference == "" {
		return "", &provider.Error{Code: provider.ErrCodeBadPayload, Message: "paystack payload has no event reference"}
	}
	return probe.Event + ":" + probe.Data.Reference, nil
}

// NormalizeEvent maps a Paystack event onto the canonical shape.
func (a *Adapter) NormalizeEvent(body []byte) (webhook.Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return webhook.Event{}, &provider.Error{Code: provider.ErrCodeBadPayload, Message: "invalid paystack payload", ProviderErr: err.Error()}
	}
	if env.Event == "" || env.Data.Reference == "" {
		return webhook.Event{}, &provider.Error{Code: provider.ErrCodeBadPayload, Message: "paystack payload missing event or reference"}
	}

	canonical, ok := eventTypeMap[env.Event]
	if !ok {
		canonical = webhook.TypeUnknown
	}

	ts := time.Now().UTC()
	if env.Data.PaidAt != "" {
		if parsed, err := time.Parse(time.RFC3339, env.Data.PaidAt); err == nil {
			ts = parsed.UTC()
		}
	}

	return webhook.Event{
		ID:        env.Event + ":" + env.Data.Reference,
		Type:      canonical,
		Provider:  Name,
		Timestamp: ts,
		Data:      body,
		Metadata: webhook.Metadata{
			ProviderTxID: env.Data.Reference,
			AmountMinor:  env.Data.Amount,
			Currency:     strings.ToUpper(env.Data.Currency),
			Customer:     env.Data.Customer.Email,
			Status:       env.Data.Status,
			Reason:       env.Data.Message,
		},
	}, nil
}

// CreateRefund requests a refund for a charge.
func (a *Adapter) CreateRefund(ctx context.Context, req provider.RefundRequest) error {
	payload := map[string]any{
		"transaction":   req.ProviderTxID,
		"amount":        req.AmountMinor,
		"merchant_note": req.Reason,
	}
	resp, err := a.client.PostJSON(ctx, "/refund", payload, a.authHeaders())
	if err != nil {
		return &provider.Error{Code: provider.ErrCodeTimeout, Message: "paystack refund request failed", ProviderErr: err.Error()}
	}
	if !resp.IsSuccess() {
		return &provider.Error{
			Code:        provider.ErrCodeRefundRejected,
			Message:     fmt.Sprintf("paystack rejected refund with status %d", resp.StatusCode),
			ProviderErr: string(resp.Body),
		}
	}
	return nil
}

// ListTransactions fetches the authoritative transaction export for a window.
func (a *Adapter) ListTransactions(ctx context.Context, from, to time.Time) ([]provider.ExportRow, error) {
	endpoint := fmt.Sprintf("/transaction?from=%s&to=%s&perPage=100",
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	resp, err := a.client.Get(ctx, endpoint, a.authHeaders())
	if err != nil {
		return nil, &provider.Error{Code: provider.ErrCodeExportFailed, Message: "paystack export fetch failed", ProviderErr: err.Error()}
	}
	if !resp.IsSuccess() {
		return nil, &provider.Error{
			Code:    provider.ErrCodeExportFailed,
			Message: fmt.Sprintf("paystack export returned status %d", resp.StatusCode),
		}
	}

	var list struct {
		Data []struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := resp.UnmarshalJSON(&list); err != nil {
		return nil, &provider.Error{Code: provider.ErrCodeExportFailed, Message: "invalid paystack export payload", ProviderErr: err.Error()}
	}

	rows := make([]provider.ExportRow, 0, len(list.Data))
	for _, d := range list.Data {
		rows = append(rows, provider.ExportRow{
			ID:          d.Reference,
			AmountMinor: d.Amount,
			Currency:    strings.ToUpper(d.Currency),
			Status:      d.Status,
		})
	}
	return rows, nil
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}
