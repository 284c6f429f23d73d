// Package fraud provides the advisory risk score consulted before
// high-value payments are finalized. Weights and thresholds are business
// policy, overridable per tenant; the score never blocks a payment on its
// own, it only produces a recommendation.
package fraud

import "context"

// Recommendation is the advisory outcome of a risk assessment.
type Recommendation string

const (
	Approve Recommendation = "approve"
	Review  Recommendation = "review"
	Decline Recommendation = "decline"
)

// Signals are the transaction attributes the scorer considers.
type Signals struct {
	TenantID        int64
	AmountMinor     int64
	Currency        string
	Method          string
	RecentTxCount   int  // transactions from the same customer/IP in the last hour
	GeoMismatch     bool // card country differs from IP country
	NewDevice       bool
	CustomerAgeDays int // days since first seen
}

// Assessment is the scorer output: 0-100 risk score plus recommendation.
type Assessment struct {
	Score          int
	Recommendation Recommendation
	Indicators     []string
}

// Scorer is the advisory risk contract.
type Scorer interface {
	Score(ctx context.Context, s Signals) Assessment
}

// Thresholds bound the recommendation bands.
type Thresholds struct {
	Review  int // score >= Review -> review
	Decline int // score >= Decline -> decline
}

// DefaultThresholds are the platform-wide defaults.
var DefaultThresholds = Thresholds{Review: 40, Decline: 70}

// WeightedScorer is the default additive-severity implementation.
type WeightedScorer struct {
	highValueMinor int64
	defaults       Thresholds
	perTenant      map[int64]Thresholds
}

// NewWeightedScorer creates a scorer with per-tenant threshold overrides.
func NewWeightedScorer(highValueMinor int64, perTenant map[int64]Thresholds) *WeightedScorer {
	if highValueMinor <= 0 {
		highValueMinor = 100_000
	}
	if perTenant == nil {
		perTenant = map[int64]Thresholds{}
	}
	return &WeightedScorer{
		highValueMinor: highValueMinor,
		defaults:       DefaultThresholds,
		perTenant:      perTenant,
	}
}

// Score sums severity weights per indicator and maps the total onto a
// recommendation using the tenant's thresholds.
func (w *WeightedScorer) Score(_ context.Context, s Signals) Assessment {
	score := 0
	var indicators []string

	add := func(points int, name string) {
		score += points
		indicators = append(indicators, name)
	}

	switch {
	case s.AmountMinor >= 5*w.highValueMinor:
		add(35, "amount_very_high")
	case s.AmountMinor >= w.highValueMinor:
		add(20, "amount_high")
	}
	switch {
	case s.RecentTxCount >= 10:
		add(30, "velocity_high")
	case s.RecentTxCount >= 5:
		add(15, "velocity_elevated")
	}
	if s.GeoMismatch {
		add(20, "geo_mismatch")
	}
	if s.NewDevice {
		add(10, "new_device")
	}
	if s.CustomerAgeDays >= 0 && s.CustomerAgeDays < 7 {
		add(10, "new_customer")
	}
	if score > 100 {
		score = 100
	}

	th := w.defaults
	if t, ok := w.perTenant[s.TenantID]; ok {
		th = t
	}

	rec := Approve
	switch {
	case score >= th.Decline:
		rec = Decline
	case score >= th.Review:
		rec = Review
	}

	return Assessment{Score: score, Recommendation: rec, Indicators: indicators}
}
