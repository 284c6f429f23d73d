package handlers

import (
	"errors"
	"net/http"
	"strconv"

	middlewarex "bookpay/internal/http/middleware"
	"bookpay/internal/services/payment"
	"bookpay/internal/store/repositories"
)

// ListTransactions returns the tenant's transactions, newest first.
func ListTransactions(payments *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := middlewarex.TenantID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "tenant not resolved")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		txs, err := payments.ListByTenant(r.Context(), tenantID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", "listing failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": txs})
	}
}

// GetTransaction returns one transaction with its ledger entries.
func GetTransaction(payments *payment.Service, entries repositories.LedgerRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := middlewarex.TenantID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "tenant not resolved")
			return
		}
		txID, err := parseTxID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "transaction id is not a uuid")
			return
		}

		t, err := payments.FindForTenant(r.Context(), tenantID, txID)
		if err != nil {
			if errors.Is(err, payment.ErrTransactionNotFound) {
				writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "INTERNAL", "lookup failed")
			return
		}

		rows, err := entries.ListByTransactionID(r.Context(), t.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", "ledger lookup failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"transaction":    t,
				"ledger_entries": rows,
			},
		})
	}
}
