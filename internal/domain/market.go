// Package domain defines the core business entities and types for the
// prediction-market settlement core.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	StatusActive   MarketStatus = "active"   // accepting trades
	StatusClosed   MarketStatus = "closed"   // trading window over, awaiting resolution
	StatusResolved MarketStatus = "resolved" // final outcome set, payouts triggered
	StatusCanceled MarketStatus = "canceled" // voided; positions refunded
)

// IsTerminal reports whether no further transition may leave this status.
func (s MarketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusCanceled
}

// CanSettle reports whether a market in this status may be resolved or canceled.
func (s MarketStatus) CanSettle() bool {
	return s == StatusActive || s == StatusClosed
}

const (
	MinOutcomes = 2
	MaxOutcomes = 4
)

// Outcome is one possible answer to a market.
type Outcome struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Outcomes is stored as a JSONB column.
type Outcomes []Outcome

// Value implements driver.Valuer.
func (o Outcomes) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("domain.Outcomes.Value: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (o *Outcomes) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*o = nil
		return nil
	default:
		return fmt.Errorf("domain.Outcomes.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(raw, o)
}

// Validate enforces 2–4 outcomes with unique index and name.
func (o Outcomes) Validate() error {
	if len(o) < MinOutcomes || len(o) > MaxOutcomes {
		return fmt.Errorf("%w: need %d-%d outcomes, got %d", ErrInvalidOutcome, MinOutcomes, MaxOutcomes, len(o))
	}
	seenIdx := make(map[int]bool, len(o))
	seenName := make(map[string]bool, len(o))
	for _, out := range o {
		if out.Name == "" {
			return fmt.Errorf("%w: outcome %d has no name", ErrInvalidOutcome, out.Index)
		}
		if seenIdx[out.Index] || seenName[out.Name] {
			return fmt.Errorf("%w: duplicate outcome %d/%q", ErrInvalidOutcome, out.Index, out.Name)
		}
		seenIdx[out.Index] = true
		seenName[out.Name] = true
	}
	return nil
}

// ByIndex returns the outcome with the given index.
func (o Outcomes) ByIndex(index int) (Outcome, bool) {
	for _, out := range o {
		if out.Index == index {
			return out, true
		}
	}
	return Outcome{}, false
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market (a "bet" in user-facing terms) is a single resolvable question.
type Market struct {
	ID                   uuid.UUID    `json:"id"                     db:"id"`
	Title                string       `json:"title"                  db:"title"`
	Outcomes             Outcomes     `json:"outcomes"               db:"outcomes"`
	Status               MarketStatus `json:"status"                 db:"status"`
	Published            bool         `json:"published"              db:"published"`
	FinalOutcome         *int         `json:"final_outcome"          db:"final_outcome"`
	EndDate              time.Time    `json:"end_date"               db:"end_date"`
	EvidenceActual       *string      `json:"evidence_actual"        db:"evidence_actual"`
	EvidenceDescription  *string      `json:"evidence_description"   db:"evidence_description"`
	ReasonOfCancellation *string      `json:"reason_of_cancellation" db:"reason_of_cancellation"`
	CreatedAt            time.Time    `json:"created_at"             db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"             db:"updated_at"`
}

// IsTradable returns true while the market accepts buys at instant now.
func (m *Market) IsTradable(now time.Time) bool {
	return m.Status == StatusActive && now.Before(m.EndDate)
}

// IsResolved returns true after the final outcome has been recorded.
func (m *Market) IsResolved() bool {
	return m.Status == StatusResolved && m.FinalOutcome != nil
}

// IsCanceled returns true for a voided market.
func (m *Market) IsCanceled() bool {
	return m.Status == StatusCanceled
}

// ValidOutcome reports whether index names one of the market's outcomes.
func (m *Market) ValidOutcome(index int) bool {
	_, ok := m.Outcomes.ByIndex(index)
	return ok
}

// IsWinning reports whether index is the resolved final outcome.
func (m *Market) IsWinning(index int) bool {
	return m.FinalOutcome != nil && *m.FinalOutcome == index
}

// TimeLeft returns the duration remaining until trading ends.
// Returns 0 if the end date has already passed.
func (m *Market) TimeLeft() time.Duration {
	remaining := time.Until(m.EndDate)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// Requests
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarketRequest carries the inputs of the market-creation hook.
type CreateMarketRequest struct {
	Title     string
	Outcomes  Outcomes
	EndDate   time.Time
	Published bool
}

// Validate checks the request shape.
func (r CreateMarketRequest) Validate(now time.Time) error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidMarket)
	}
	if err := r.Outcomes.Validate(); err != nil {
		return err
	}
	if !r.EndDate.After(now) {
		return fmt.Errorf("%w: end date must be in the future", ErrMarketNotTradable)
	}
	return nil
}

// ResolveRequest carries the reporter's resolution of a market.
type ResolveRequest struct {
	MarketID            uuid.UUID
	OutcomeIndex        int
	EvidenceActual      string
	EvidenceDescription string
	Reporter            string
}

// CancelRequest voids a market.
type CancelRequest struct {
	MarketID uuid.UUID
	Reason   string
}
