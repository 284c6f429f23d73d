package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookpay/internal/ingest"
	"bookpay/internal/security"
)

const maxWebhookBody = 1 << 20

// ProviderWebhook is the single ingress for provider callbacks. The
// pipeline owns verification and ordering; this handler only reads the raw
// body and translates pipeline outcomes into status codes. 2xx means
// "safely recorded", so duplicates answer 200 and the provider stops
// retrying.
func ProviderWebhook(pipeline *ingest.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "MALFORMED_PAYLOAD", "unreadable body")
			return
		}

		res, err := pipeline.Handle(r.Context(), providerName, r.Header, body)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrUnknownProvider):
				writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "no adapter for provider")
			case errors.Is(err, security.ErrSignatureInvalid):
				writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed")
			case errors.Is(err, security.ErrReplayDetected):
				writeError(w, http.StatusUnauthorized, "REPLAY_DETECTED", "timestamp outside tolerance")
			case errors.Is(err, security.ErrRateLimited):
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "provider rate ceiling exceeded")
			case errors.Is(err, ingest.ErrMalformedPayload):
				writeError(w, http.StatusBadRequest, "MALFORMED_PAYLOAD", "payload could not be parsed")
			default:
				writeError(w, http.StatusInternalServerError, "PROCESSING_ERROR", "event accepted but not processed")
			}
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"event_id": res.EventID,
		})
	}
}
