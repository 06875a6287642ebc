package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteSample is one recorded price point of an outcome. Samples are
// append-only; the first write at a (market, outcome, sampled_at) key wins.
type QuoteSample struct {
	MarketID     uuid.UUID       `json:"market_id"     db:"market_id"`
	OutcomeIndex int             `json:"outcome_index" db:"outcome_index"`
	SampledAt    time.Time       `json:"sampled_at"    db:"sampled_at"`
	Quote        decimal.Decimal `json:"quote"         db:"quote"`
}

// QuoteFromTokens derives the implied probability of an outcome from the
// tokens one unit of stake buys: min(1/tokens, 1), rounded to 4 places.
func QuoteFromTokens(tokensPerOne decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !tokensPerOne.IsPositive() {
		return one
	}
	q := one.DivRound(tokensPerOne, ScaleDecimals)
	if q.GreaterThan(one) {
		return one
	}
	return q
}

// UniformQuote returns 1/n rounded to 4 places, the opening price of every
// outcome of an n-outcome market.
func UniformQuote(n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(decimal.NewFromInt(int64(n)), ScaleDecimals)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────────────────────────────────

// DiscrepancyKind classifies a mismatch between the trade journal and the
// pricing engine.
type DiscrepancyKind string

const (
	// DiscrepancyLocalExceedsEngine means the journal claims more tokens than
	// the engine holds: a committed trade without an engine-side buy.
	DiscrepancyLocalExceedsEngine DiscrepancyKind = "local_exceeds_engine"
	// DiscrepancyEngineExceedsLocal means an engine buy has no journal row,
	// typically a failed commit after a successful buy.
	DiscrepancyEngineExceedsLocal DiscrepancyKind = "engine_exceeds_local"
)

// Discrepancy is one violated reconciliation pair.
type Discrepancy struct {
	MarketID     uuid.UUID       `json:"market_id"`
	UserID       string          `json:"user_id"`
	OutcomeIndex int             `json:"outcome_index"`
	Local        decimal.Decimal `json:"local"`
	Engine       decimal.Decimal `json:"engine"`
	Kind         DiscrepancyKind `json:"kind"`
}

// IsDefect returns true for discrepancies that can never be explained by an
// in-flight buy.
func (d Discrepancy) IsDefect() bool {
	return d.Kind == DiscrepancyLocalExceedsEngine
}

// ReconciliationReport is the result of checking one market.
type ReconciliationReport struct {
	MarketID      uuid.UUID     `json:"market_id"`
	CheckedAt     time.Time     `json:"checked_at"`
	Pairs         int           `json:"pairs"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// OK returns true when no discrepancy was found.
func (r *ReconciliationReport) OK() bool {
	return len(r.Discrepancies) == 0
}
