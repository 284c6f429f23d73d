package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookpay/internal/domain/transaction"
	middlewarex "bookpay/internal/http/middleware"
	"bookpay/internal/services/payment"
	"bookpay/internal/services/refund"
)

type createPaymentRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Provider  string `json:"provider"`
}

// CreatePayment opens a payment intent for a booking.
func CreatePayment(payments *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := middlewarex.TenantID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "tenant not resolved")
			return
		}

		var req createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}

		init, err := payments.CreatePayment(r.Context(), tenantID, req.BookingID,
			transaction.Money(req.Amount), transaction.Currency(req.Currency), req.Provider)
		if err != nil {
			var derr transaction.DomainError
			switch {
			case errors.Is(err, payment.ErrBookingNotFound):
				writeError(w, http.StatusNotFound, "BOOKING_NOT_FOUND", err.Error())
			case errors.Is(err, payment.ErrDuplicatePaymentIntent):
				writeError(w, http.StatusConflict, "DUPLICATE_PAYMENT_INTENT", err.Error())
			case errors.As(err, &derr):
				writeError(w, http.StatusBadRequest, derr.Code, derr.Message)
			default:
				writeError(w, http.StatusInternalServerError, "INTERNAL", "payment creation failed")
			}
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": init})
	}
}

type bindReferenceRequest struct {
	ProviderTxID string `json:"provider_tx_id"`
}

// BindProviderReference attaches the provider checkout reference to a
// pending transaction.
func BindProviderReference(payments *payment.Service) http.HandlerFunc {
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

		var req bindReferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProviderTxID == "" {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "provider_tx_id is required")
			return
		}

		if err := payments.BindProviderTxID(r.Context(), tenantID, txID, req.ProviderTxID); err != nil {
			switch {
			case errors.Is(err, payment.ErrTransactionNotFound):
				writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", err.Error())
			case errors.Is(err, payment.ErrDuplicatePaymentIntent):
				writeError(w, http.StatusConflict, "ALREADY_BOUND", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "INTERNAL", "bind failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

type createRefundRequest struct {
	Amount *int64 `json:"amount,omitempty"`
	Reason string `json:"reason"`
}

// CreateRefund starts a refund against a completed payment. Omitting the
// amount refunds the remaining balance.
func CreateRefund(refunds *refund.Processor) http.HandlerFunc {
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

		var req createRefundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}
		var amount *transaction.Money
		if req.Amount != nil {
			m := transaction.Money(*req.Amount)
			amount = &m
		}

		ref, err := refunds.CreateRefund(r.Context(), tenantID, txID, amount, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, refund.ErrRefundNotFound):
				writeError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", err.Error())
			case errors.Is(err, refund.ErrRefundExceedsBalance):
				writeError(w, http.StatusUnprocessableEntity, "REFUND_EXCEEDS_BALANCE", err.Error())
			case errors.Is(err, refund.ErrNotRefundable):
				writeError(w, http.StatusConflict, "NOT_REFUNDABLE", err.Error())
			default:
				writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", "refund could not be submitted")
			}
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"data": map[string]any{
				"refund_id": ref.ID,
				"amount":    int64(ref.Amount),
				"status":    string(ref.Status),
			},
		})
	}
}

func parseTxID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
