package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors, compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors
var (
	// ErrInvalidStake is returned when the stake is zero, negative or has more
	// precision than the ledger can represent.
	ErrInvalidStake = errors.New("stake must be a positive amount")

	// ErrInvalidOutcome is returned when an outcome index does not belong to
	// the market, or when a market's outcome list is malformed.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInvalidMarket is returned when a market-creation request is malformed.
	ErrInvalidMarket = errors.New("invalid market")
)

// Market errors
var (
	// ErrMarketNotFound is returned when no market matches the given criteria.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketNotTradable is returned when a buy is attempted on a market that
	// is not active or whose end date has passed.
	ErrMarketNotTradable = errors.New("market is not tradable")

	// ErrInvalidMarketState is returned when resolve/cancel is attempted on a
	// market that already left the active/closed states.
	ErrInvalidMarketState = errors.New("market is in an invalid state for this operation")
)

// User / balance errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientBalance is returned when the ledger balance is below the stake.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientOutcomeTokens is returned when the pricing engine would
	// deliver fewer outcome tokens than the caller's minimum (slippage).
	ErrInsufficientOutcomeTokens = errors.New("buy would yield fewer outcome tokens than requested")
)

// Settlement errors
var (
	// ErrUnexpectedSettlement wraps any lower-level failure of a buy, resolve or
	// cancel. The cause is logged, never shown to the caller.
	ErrUnexpectedSettlement = errors.New("unexpected settlement error")

	// ErrPayoutComputation is returned when the market was resolved but the
	// pricing engine payout could not be computed or reported.
	ErrPayoutComputation = errors.New("payout computation failed")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// SettlementError
// ──────────────────────────────────────────────────────────────────────────────

// SettlementError carries the context of a failed settlement step. It matches
// ErrUnexpectedSettlement (or Kind, when set) under errors.Is and unwraps to the
// underlying cause.
type SettlementError struct {
	Op       string
	UserID   uuid.UUID
	MarketID uuid.UUID
	Kind     error
	Err      error
}

func (e *SettlementError) Error() string {
	kind := e.kind()
	if e.UserID != uuid.Nil {
		return fmt.Sprintf("%s: %v (market=%s user=%s)", e.Op, kind, e.MarketID, e.UserID)
	}
	return fmt.Sprintf("%s: %v (market=%s)", e.Op, kind, e.MarketID)
}

func (e *SettlementError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnexpectedSettlement) work without exposing the
// cause through the message.
func (e *SettlementError) Is(target error) bool {
	return target == e.kind()
}

// Cause returns the lower-level error for logging.
func (e *SettlementError) Cause() error { return e.Err }

func (e *SettlementError) kind() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrUnexpectedSettlement
}

// ──────────────────────────────────────────────────────────────────────────────
// Error kinds
// ──────────────────────────────────────────────────────────────────────────────

// ErrorKind is the caller-visible category of a failure.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotTradable       ErrorKind = "not_tradable"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

var kindTable = []struct {
	kind    ErrorKind
	targets []error
}{
	{KindValidation, []error{ErrInvalidStake, ErrInvalidOutcome, ErrInvalidMarket}},
	{KindNotTradable, []error{ErrMarketNotTradable}},
	{KindInsufficientFunds, []error{ErrInsufficientBalance, ErrInsufficientOutcomeTokens}},
	{KindNotFound, []error{ErrMarketNotFound, ErrUserNotFound}},
	{KindForbidden, []error{ErrForbidden, ErrUnauthorized, ErrTokenInvalid}},
	{KindConflict, []error{ErrInvalidMarketState}},
}

// KindOf maps err onto one of the caller-visible kinds. Anything unknown,
// including ErrUnexpectedSettlement and ErrPayoutComputation, is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, row := range kindTable {
		for _, target := range row.targets {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindInternal
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict returns true for errors that represent a state conflict, such as
// a second resolution of the same market.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	return KindOf(err) == KindForbidden
}
