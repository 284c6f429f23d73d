package ingest

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/provider"
	"bookpay/internal/security"
	"bookpay/internal/store/repositories"
)

// Pipeline-stage failures surfaced at the HTTP boundary.
var (
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrProcessing       = errors.New("processing failed")
)

// Handler consumes a canonical event after every verification stage passed.
// Handlers must implement at-least-once-safe side effects: a retried
// delivery that slips past dedup (e.g. after a handler failure) will invoke
// them again.
type Handler func(ctx context.Context, evt webhook.Event) error

// Result is the pipeline outcome for one delivery.
type Result struct {
	EventID   string
	Duplicate bool
}

// Pipeline orchestrates the webhook verification stages in strict order:
// signature, replay, dedup, rate limit, then normalize and dispatch. The
// order matters: an unverified payload must never influence dedup or
// rate-limit state, or an attacker could exhaust either with forged events.
type Pipeline struct {
	registry *provider.Registry
	verifier *security.Verifier
	replay   *security.ReplayGuard
	dedup    *security.Deduplicator
	limiter  *security.RateLimiter
	events   repositories.WebhookEventRepository

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewPipeline wires the verification stages together.
func NewPipeline(
	registry *provider.Registry,
	verifier *security.Verifier,
	replay *security.ReplayGuard,
	dedup *security.Deduplicator,
	limiter *security.RateLimiter,
	events repositories.WebhookEventRepository,
) *Pipeline {
	return &Pipeline{
		registry: registry,
		verifier: verifier,
		replay:   replay,
		dedup:    dedup,
		limiter:  limiter,
		events:   events,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds the business handler for a provider's events.
func (p *Pipeline) RegisterHandler(providerName string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[providerName] = h
}

// Handle runs one delivery through the pipeline. body is the raw request
// body; the signature is always verified against these exact bytes.
func (p *Pipeline) Handle(ctx context.Context, providerName string, header http.Header, body []byte) (Result, error) {
	adapter, err := p.registry.Get(providerName)
	if err != nil {
		return Result{}, ErrUnknownProvider
	}
	profile := adapter.Profile()

	// 1. Signature.
	sig, err := adapter.ExtractSignature(header)
	if err != nil {
		return Result{}, security.ErrSignatureInvalid
	}
	if err := p.verifier.Verify(profile, body, sig); err != nil {
		return Result{}, err
	}

	// 2. Replay window.
	if err := p.replay.Check(sig.Timestamp, profile.Tolerance); err != nil {
		return Result{}, err
	}

	// 3. Dedup. Store errors fail closed: 5xx, provider retries.
	eventID, err := adapter.EventID(body)
	if err != nil {
		return Result{}, ErrMalformedPayload
	}
	rec, err := webhook.NewReceived(providerName, eventID, body)
	if err != nil {
		return Result{}, ErrMalformedPayload
	}
	firstSeen, err := p.dedup.Register(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !firstSeen {
		// Idempotent acknowledgment, before the normalized-event log line:
		// duplicates produce no log noise beyond this debug line and no
		// business side effects.
		log.Debug().
			Str("provider", providerName).
			Str("event_id", eventID).
			Msg("duplicate webhook delivery acknowledged")
		return Result{EventID: eventID, Duplicate: true}, nil
	}

	// 4. Rate limit. The event is registered by now; a throttled delivery
	// must release that registration or the provider's retry would be
	// swallowed as a duplicate and the event lost.
	if err := p.limiter.Allow(ctx, providerName, profile.RateLimitPerMin); err != nil {
		if uerr := p.events.Unregister(ctx, providerName, eventID); uerr != nil {
			log.Error().
				Err(uerr).
				Str("provider", providerName).
				Str("event_id", eventID).
				Msg("failed to release registration of throttled delivery")
		}
		return Result{}, err
	}

	// 5. Parse and normalize, only now that every check passed.
	evt, err := adapter.NormalizeEvent(body)
	if err != nil {
		return Result{}, ErrMalformedPayload
	}

	log.Info().
		Str("provider", providerName).
		Str("event_id", evt.ID).
		Str("event_type", string(evt.Type)).
		Str("provider_tx_id", evt.Metadata.ProviderTxID).
		Msg("webhook event accepted")

	// 6. Dispatch. On handler failure the event stays recorded as received
	// (dedup will absorb the provider's retry) but is not marked processed.
	p.mu.RLock()
	handler, ok := p.handlers[providerName]
	p.mu.RUnlock()
	if ok {
		if err := handler(ctx, evt); err != nil {
			log.Error().
				Err(err).
				Str("provider", providerName).
				Str("event_id", evt.ID).
				Msg("webhook handler failed")
			return Result{EventID: evt.ID}, errors.Join(ErrProcessing, err)
		}
	}

	if err := p.events.MarkProcessed(ctx, providerName, evt.ID); err != nil {
		log.Error().
			Err(err).
			Str("provider", providerName).
			Str("event_id", evt.ID).
			Msg("failed to mark event processed")
	}
	return Result{EventID: evt.ID}, nil
}
