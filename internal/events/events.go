// Package events defines the notifications the bet lifecycle emits and the
// bus that carries them to consumers (quote recorder, websocket hub and any
// external subscriber on the same Redis channel).
package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/domain"
)

// Kind names an event on the wire.
type Kind string

const (
	KindBetPlaced       Kind = "Notification/EVENT_BET_PLACED"
	KindBetResolved     Kind = "Notification/EVENT_BET_RESOLVED"
	KindBetCanceled     Kind = "Notification/EVENT_BET_CANCELED"
	KindUserBetCanceled Kind = "Notification/EVENT_CANCEL"
	KindUserReward      Kind = "Notification/EVENT_USER_REWARD"
	KindUserAward       Kind = "Notification/EVENT_USER_AWARD"
	KindNewBet          Kind = "Notification/EVENT_NEW_BET"
)

// Producer kinds carried in the envelope.
const (
	ProducerUser   = "user"
	ProducerSystem = "system"
)

// Event is the closed set of notifications. Only types in this package
// implement it.
type Event interface {
	Kind() Kind
	// Producer identifies who caused the event, for consumer-side dedup.
	Producer() (kind, id string)
	sealed()
}

// Targeted events are delivered only to the connections of one user.
type Targeted interface {
	Event
	Recipient() uuid.UUID
}

// Publisher emits events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Payloads
// ──────────────────────────────────────────────────────────────────────────────

// BetPlaced follows a committed buy.
type BetPlaced struct {
	Market  *domain.Market  `json:"bet"`
	Trade   *domain.Trade   `json:"trade"`
	UserID  uuid.UUID       `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

// BetResolved follows a committed resolution.
type BetResolved struct {
	Market   *domain.Market `json:"bet"`
	Reporter string         `json:"reporter"`
}

// BetCanceled is the market-wide cancellation notice.
type BetCanceled struct {
	Market  *domain.Market `json:"bet"`
	UserIDs []uuid.UUID    `json:"userIds"`
}

// UserBetCanceled tells one affected user that their position was refunded.
type UserBetCanceled struct {
	UserID   uuid.UUID `json:"userId"`
	MarketID uuid.UUID `json:"betId"`
	Title    string    `json:"title"`
	Reason   string    `json:"reason"`
}

// UserReward reports a winner's payout.
type UserReward struct {
	UserID   uuid.UUID       `json:"userId"`
	MarketID uuid.UUID       `json:"betId"`
	WinToken decimal.Decimal `json:"winToken"`
	Invested decimal.Decimal `json:"invested"`
}

// UserAward reports a max-stake streak award.
type UserAward struct {
	UserID uuid.UUID       `json:"userId"`
	Award  decimal.Decimal `json:"award"`
	Streak int             `json:"streak"`
}

// NewBet announces a freshly created market.
type NewBet struct {
	Market *domain.Market `json:"bet"`
}

func (BetPlaced) Kind() Kind       { return KindBetPlaced }
func (BetResolved) Kind() Kind     { return KindBetResolved }
func (BetCanceled) Kind() Kind     { return KindBetCanceled }
func (UserBetCanceled) Kind() Kind { return KindUserBetCanceled }
func (UserReward) Kind() Kind      { return KindUserReward }
func (UserAward) Kind() Kind       { return KindUserAward }
func (NewBet) Kind() Kind          { return KindNewBet }

func (e BetPlaced) Producer() (string, string)       { return ProducerUser, e.UserID.String() }
func (e BetResolved) Producer() (string, string)     { return ProducerSystem, e.Reporter }
func (e BetCanceled) Producer() (string, string)     { return ProducerSystem, e.Market.ID.String() }
func (e UserBetCanceled) Producer() (string, string) { return ProducerSystem, e.MarketID.String() }
func (e UserReward) Producer() (string, string)      { return ProducerSystem, e.MarketID.String() }
func (e UserAward) Producer() (string, string)       { return ProducerSystem, e.UserID.String() }
func (e NewBet) Producer() (string, string)          { return ProducerSystem, e.Market.ID.String() }

func (e UserBetCanceled) Recipient() uuid.UUID { return e.UserID }
func (e UserReward) Recipient() uuid.UUID      { return e.UserID }
func (e UserAward) Recipient() uuid.UUID       { return e.UserID }

func (BetPlaced) sealed()       {}
func (BetResolved) sealed()     {}
func (BetCanceled) sealed()     {}
func (UserBetCanceled) sealed() {}
func (UserReward) sealed()      {}
func (UserAward) sealed()       {}
func (NewBet) sealed()          {}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// Discard is a Publisher that drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
