package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/ingest"
	"bookpay/internal/provider"
	"bookpay/internal/security"
	"bookpay/internal/store/memory"
)

var testSecret = []byte("whsec_handler_test")

type testAdapter struct{}

func (testAdapter) Name() string { return "testpay" }
func (testAdapter) Profile() provider.Profile {
	return provider.Profile{
		Name:            "testpay",
		SignatureHeader: "Testpay-Signature",
		Algorithm:       provider.AlgoSHA256,
		Tolerance:       5 * time.Minute,
		Secret:          testSecret,
	}
}
func (a testAdapter) ExtractSignature(h http.Header) (provider.Signature, error) {
	return security.ParseComposite(h.Get("Testpay-Signature"))
}
func (testAdapter) EventID(body []byte) (string, error) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ID == "" {
		return "", errors.New("no id")
	}
	return probe.ID, nil
}
func (testAdapter) NormalizeEvent(body []byte) (webhook.Event, error) {
	var env struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return webhook.Event{}, err
	}
	return webhook.Event{ID: env.ID, Type: webhook.TypeUnknown, Provider: "testpay", Data: body}, nil
}
func (testAdapter) CreateRefund(context.Context, provider.RefundRequest) error { return nil }
func (testAdapter) ListTransactions(context.Context, time.Time, time.Time) ([]provider.ExportRow, error) {
	return nil, nil
}

func newWebhookServer(t *testing.T) *chi.Mux {
	t.Helper()
	adapter := testAdapter{}
	registry := provider.NewRegistry()
	registry.Register(adapter)
	events := memory.NewDedupStore()

	pipeline := ingest.NewPipeline(
		registry,
		security.NewVerifier(),
		security.NewReplayGuard(),
		security.NewDeduplicator(events),
		security.NewRateLimiter(memory.NewCounterStore()),
		events,
	)

	r := chi.NewRouter()
	r.Post("/webhooks/{provider}", ProviderWebhook(pipeline))
	return r
}

func deliver(t *testing.T, r http.Handler, providerName string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+providerName, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func signed(t *testing.T, body []byte, ts int64) http.Header {
	t.Helper()
	mac := security.Sign(testAdapter{}.Profile(), body, ts)
	h := http.Header{}
	h.Set("Testpay-Signature", "t="+strconv.FormatInt(ts, 10)+",v1="+mac)
	return h
}

func TestWebhookAccepted(t *testing.T) {
	r := newWebhookServer(t)
	body := []byte(`{"id":"evt_1"}`)

	rec := deliver(t, r, "testpay", body, signed(t, body, time.Now().Unix()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Success bool   `json:"success"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.EventID != "evt_1" {
		t.Fatalf("unexpected body: %s", rec.Body)
	}
}

func TestWebhookDuplicateStillAccepted(t *testing.T) {
	r := newWebhookServer(t)
	body := []byte(`{"id":"evt_dup"}`)
	h := signed(t, body, time.Now().Unix())

	if rec := deliver(t, r, "testpay", body, h); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status %d", rec.Code)
	}
	// a duplicate is acknowledged so the provider stops retrying
	if rec := deliver(t, r, "testpay", body, h); rec.Code != http.StatusOK {
		t.Fatalf("duplicate delivery status %d", rec.Code)
	}
}

func TestWebhookStatusMapping(t *testing.T) {
	r := newWebhookServer(t)
	body := []byte(`{"id":"evt_2"}`)

	// unknown provider
	if rec := deliver(t, r, "nonesuch", body, signed(t, body, time.Now().Unix())); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown provider status %d", rec.Code)
	}

	// bad signature
	h := http.Header{}
	h.Set("Testpay-Signature", "t="+strconv.FormatInt(time.Now().Unix(), 10)+",v1=deadbeef")
	if rec := deliver(t, r, "testpay", body, h); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged signature status %d", rec.Code)
	}

	// stale timestamp, correctly signed
	stale := time.Now().Add(-time.Hour).Unix()
	if rec := deliver(t, r, "testpay", body, signed(t, body, stale)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale timestamp status %d", rec.Code)
	}

	// well-signed but unparseable payload
	junk := []byte(`{"nope":1}`)
	if rec := deliver(t, r, "testpay", junk, signed(t, junk, time.Now().Unix())); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed payload status %d", rec.Code)
	}
}
