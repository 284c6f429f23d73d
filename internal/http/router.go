package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bookpay/internal/http/handlers"
	middlewarex "bookpay/internal/http/middleware"
	"bookpay/internal/ingest"
	"bookpay/internal/recon"
	"bookpay/internal/services/payment"
	"bookpay/internal/services/refund"
	"bookpay/internal/store/repositories"
)

// RouterDependencies holds everything the HTTP surface needs.
type RouterDependencies struct {
	Pipeline    *ingest.Pipeline
	Payments    *payment.Service
	Refunds     *refund.Processor
	ReconEngine *recon.Engine
	Ledger      repositories.LedgerRepository
	Tenants     repositories.TenantRepository
}

// NewRouter builds the HTTP router. Webhook ingress is public because the
// pipeline authenticates cryptographically; everything under /api/v1 needs
// a tenant API key.
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{provider}", handlers.ProviderWebhook(deps.Pipeline))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.APIKeyAuth(deps.Tenants))

		r.Post("/payments", handlers.CreatePayment(deps.Payments))
		r.Post("/payments/{id}/provider-reference", handlers.BindProviderReference(deps.Payments))
		r.Post("/payments/{id}/refunds", handlers.CreateRefund(deps.Refunds))

		r.Get("/transactions", handlers.ListTransactions(deps.Payments))
		r.Get("/transactions/{id}", handlers.GetTransaction(deps.Payments, deps.Ledger))

		r.Post("/reconciliation/run", handlers.RunReconciliation(deps.ReconEngine))
	})

	return r
}
