package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access to the admin routes.
type UserRole string

const (
	RoleUser     UserRole = "user"     // standard bettor
	RoleAdmin    UserRole = "admin"    // may create, resolve and cancel markets
	RoleReporter UserRole = "reporter" // may resolve markets
)

// IsAdmin returns true only for the full admin role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// CanResolve returns true for roles allowed to report a market's outcome.
func (r UserRole) CanResolve() bool {
	return r == RoleAdmin || r == RoleReporter
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is created outside the settlement core. It is read for existence and
// updated only for statistics.
type User struct {
	ID             uuid.UUID       `json:"id"               db:"id"`
	Username       string          `json:"username"         db:"username"`
	Role           UserRole        `json:"role"             db:"role"`
	AmountWon      decimal.Decimal `json:"amount_won"       db:"amount_won"`
	MaxStakeStreak int             `json:"max_stake_streak" db:"max_stake_streak"`
	CreatedAt      time.Time       `json:"created_at"       db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"       db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger accounts
// ──────────────────────────────────────────────────────────────────────────────

const (
	UserNamespace = "usr"
	TokenSymbol   = "WFAIR"
)

// Account addresses a ledger balance.
type Account struct {
	Owner     string `json:"owner"`
	Namespace string `json:"namespace"`
	Symbol    string `json:"symbol"`
}

// UserAccount returns the play-token account of a user.
func UserAccount(userID uuid.UUID) Account {
	return Account{Owner: userID.String(), Namespace: UserNamespace, Symbol: TokenSymbol}
}

// IsMaxStake reports whether stake is the user's whole balance, compared on
// the integer part as the streak reward does.
func IsMaxStake(stake, balance decimal.Decimal) bool {
	return stake.Floor().Equal(balance.Floor())
}
