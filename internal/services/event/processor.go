package event

import (
	"context"

	"github.com/rs/zerolog/log"

	"bookpay/internal/domain/webhook"
	"bookpay/internal/services/payment"
	"bookpay/internal/services/refund"
)

// Processor routes canonical webhook events to the ledger operations. It is
// registered as the pipeline handler for every payment provider.
type Processor struct {
	payments *payment.Service
	refunds  *refund.Processor
}

// NewProcessor creates the event processor.
func NewProcessor(payments *payment.Service, refunds *refund.Processor) *Processor {
	return &Processor{payments: payments, refunds: refunds}
}

// ProcessEvent applies a canonical event's ledger effect. Unknown event
// types are acknowledged without effect so providers stop redelivering
// them.
func (p *Processor) ProcessEvent(ctx context.Context, evt webhook.Event) error {
	switch evt.Type {
	case webhook.TypePaymentCompleted:
		return p.payments.CompletePayment(ctx, evt.Provider, evt.Metadata)
	case webhook.TypePaymentFailed:
		return p.payments.FailPayment(ctx, evt.Provider, evt.Metadata)
	case webhook.TypePaymentDisputed:
		return p.payments.DisputePayment(ctx, evt.Provider, evt.Metadata)
	case webhook.TypeRefundCompleted:
		return p.refunds.CompleteRefund(ctx, evt.Provider, evt.Metadata)
	case webhook.TypeRefundFailed:
		return p.refunds.FailRefund(ctx, evt.Provider, evt.Metadata)
	default:
		log.Debug().
			Str("provider", evt.Provider).
			Str("event_id", evt.ID).
			Str("event_type", string(evt.Type)).
			Msg("ignoring unhandled event type")
		return nil
	}
}
