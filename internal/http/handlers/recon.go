package handlers

import (
	"net/http"
	"time"

	"bookpay/internal/recon"
)

// RunReconciliation triggers an on-demand reconciliation pass for one
// provider over the given window. The periodic worker covers the steady
// state; this endpoint exists for finance-ops spot checks.
func RunReconciliation(engine *recon.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := r.URL.Query().Get("provider")
		if providerName == "" {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "provider is required")
			return
		}

		to := time.Now().UTC()
		from := to.Add(-24 * time.Hour)
		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "from must be RFC3339")
				return
			}
			from = t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "to must be RFC3339")
				return
			}
			to = t
		}
		if !from.Before(to) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "from must precede to")
			return
		}

		report, err := engine.Reconcile(r.Context(), providerName, from, to)
		if err != nil {
			writeError(w, http.StatusBadGateway, "RECONCILIATION_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": report})
	}
}
