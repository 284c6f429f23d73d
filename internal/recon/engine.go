// Package recon implements the batch reconciliation of provider-reported
// transactions against the local ledger. It is strictly read-only: it
// reports discrepancies for operator action and never corrects the ledger.
package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"bookpay/internal/domain/transaction"
	"bookpay/internal/provider"
	"bookpay/internal/store/repositories"
)

// Source marks which side of a reconciliation an unmatched row came from.
type Source string

const (
	SourceLedger   Source = "ledger"
	SourceProvider Source = "provider"
)

// Unmatched is a transaction present on only one side.
type Unmatched struct {
	ProviderTxID string `json:"provider_tx_id"`
	Source       Source `json:"source"`
	AmountMinor  int64  `json:"amount"`
	Status       string `json:"status"`
}

// Discrepancy is a matched pair whose amount and/or status disagree.
// Amount and status are checked independently, so one pair can carry both
// reasons.
type Discrepancy struct {
	ProviderTxID string   `json:"provider_tx_id"`
	Reasons      []string `json:"reasons"`
}

// Report is the ephemeral result of one reconciliation run, deterministic
// for a given ledger snapshot and provider export.
type Report struct {
	Provider      string        `json:"provider"`
	From          time.Time     `json:"from"`
	To            time.Time     `json:"to"`
	AsOf          time.Time     `json:"as_of"`
	Matched       int           `json:"matched"`
	Unmatched     []Unmatched   `json:"unmatched"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Engine diffs the two independently maintained transaction sets.
type Engine struct {
	transactions repositories.TransactionRepository
	registry     *provider.Registry
	now          func() time.Time
}

// NewEngine creates the reconciliation engine.
func NewEngine(transactions repositories.TransactionRepository, registry *provider.Registry) *Engine {
	return &Engine{transactions: transactions, registry: registry, now: time.Now}
}

// statusMap folds provider status vocabularies onto the local one.
var statusMap = map[string]transaction.Status{
	"succeeded": transaction.StatusCompleted,
	"success":   transaction.StatusCompleted,
	"paid":      transaction.StatusCompleted,
	"completed": transaction.StatusCompleted,
	"available": transaction.StatusCompleted,
	"pending":   transaction.StatusPending,
	"ongoing":   transaction.StatusProcessing,
	"failed":    transaction.StatusFailed,
	"abandoned": transaction.StatusFailed,
	"cancelled": transaction.StatusCancelled,
	"reversed":  transaction.StatusRefunded,
	"refunded":  transaction.StatusRefunded,
}

func mapProviderStatus(s string) transaction.Status {
	if mapped, ok := statusMap[s]; ok {
		return mapped
	}
	return transaction.Status(s)
}

// Reconcile fetches both sides for the window and reports matched,
// unmatched and discrepant rows. The ledger side is read as of a fixed
// snapshot instant so live ingestion changing underneath does not skew a
// single run.
func (e *Engine) Reconcile(ctx context.Context, providerName string, from, to time.Time) (*Report, error) {
	adapter, err := e.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	asOf := e.now().UTC()

	local, err := e.transactions.ListByProviderWindow(ctx, providerName, from, to, asOf)
	if err != nil {
		return nil, fmt.Errorf("ledger window: %w", err)
	}
	remote, err := adapter.ListTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("provider export: %w", err)
	}

	localByID := make(map[string]*transaction.Transaction, len(local))
	for _, t := range local {
		if t.ProviderTxID != "" {
			localByID[t.ProviderTxID] = t
		}
	}
	remoteByID := make(map[string]provider.ExportRow, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	report := &Report{
		Provider:      providerName,
		From:          from,
		To:            to,
		AsOf:          asOf,
		Unmatched:     []Unmatched{},
		Discrepancies: []Discrepancy{},
	}

	for _, t := range local {
		if t.ProviderTxID == "" {
			continue
		}
		row, ok := remoteByID[t.ProviderTxID]
		if !ok {
			report.Unmatched = append(report.Unmatched, Unmatched{
				ProviderTxID: t.ProviderTxID,
				Source:       SourceLedger,
				AmountMinor:  int64(t.Amount),
				Status:       string(t.Status),
			})
			continue
		}

		var reasons []string
		if int64(t.Amount) != row.AmountMinor {
			reasons = append(reasons, fmt.Sprintf(
				"amount mismatch: ledger has %d %s, provider reports %d %s",
				t.Amount, t.Currency, row.AmountMinor, row.Currency))
		}
		if mapped := mapProviderStatus(row.Status); mapped != t.Status {
			reasons = append(reasons, fmt.Sprintf(
				"status mismatch: ledger has %s, provider reports %s (%s)",
				t.Status, mapped, row.Status))
		}
		if len(reasons) > 0 {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				ProviderTxID: t.ProviderTxID,
				Reasons:      reasons,
			})
		} else {
			report.Matched++
		}
	}

	for _, r := range remote {
		if _, ok := localByID[r.ID]; !ok {
			report.Unmatched = append(report.Unmatched, Unmatched{
				ProviderTxID: r.ID,
				Source:       SourceProvider,
				AmountMinor:  r.AmountMinor,
				Status:       r.Status,
			})
		}
	}

	log.Info().
		Str("provider", providerName).
		Time("from", from).
		Time("to", to).
		Int("matched", report.Matched).
		Int("unmatched", len(report.Unmatched)).
		Int("discrepancies", len(report.Discrepancies)).
		Msg("reconciliation run finished")
	return report, nil
}
