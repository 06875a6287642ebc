// Package amm is the HTTP client of the external pricing engine. The engine
// owns the outcome-token books of every market; amounts on the wire are
// scaled integers (see domain.ToScaled).
package amm

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
)

// codeSlippage is the error code the engine returns when a buy would yield
// fewer outcome tokens than the caller's minimum.
const codeSlippage = "ERR_SLIPPAGE"

// ──────────────────────────────────────────────────────────────────────────────
// Wire types
// ──────────────────────────────────────────────────────────────────────────────

// BuyRequest buys outcome tokens of one market for a user.
type BuyRequest struct {
	MarketID         uuid.UUID `json:"-"`
	Buyer            string    `json:"buyer"`
	Amount           *big.Int  `json:"amount"`
	OutcomeIndex     int       `json:"outcome_index"`
	MinOutcomeTokens *big.Int  `json:"min_outcome_tokens"`
}

// BuyResult is the engine's fill.
type BuyResult struct {
	OutcomeTokens *big.Int `json:"outcome_tokens"`
}

// Holding is an owner's balance on the engine: outcome tokens for an investor
// listing, play tokens for a payout.
type Holding struct {
	Owner   string   `json:"owner"`
	Balance *big.Int `json:"balance"`
}

// Direction of a pricing-engine interaction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Interaction is one buy or sell recorded by the engine.
type Interaction struct {
	Buyer               string    `json:"buyer"`
	Direction           Direction `json:"direction"`
	OutcomeIndex        int       `json:"outcome_index"`
	InvestmentAmount    *big.Int  `json:"investment_amount"`
	FeeAmount           *big.Int  `json:"fee_amount"`
	OutcomeTokensBought *big.Int  `json:"outcome_tokens_bought"`
	TradedAt            time.Time `json:"trade_timestamp"`
}

type resolveBody struct {
	Reporter     string `json:"reporter"`
	OutcomeIndex int    `json:"outcome_index"`
}

type quoteBody struct {
	OutcomeTokens *big.Int `json:"outcome_tokens"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer from the engine.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amm.%s: http %d %s: %s", e.Op, e.Status, e.Code, e.Message)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client talks to the pricing engine. One Client is shared by the process.
type Client struct {
	http *resty.Client
}

// New creates a Client for the engine at cfg.BaseURL. Requests are never
// retried: a buy is not idempotent on the engine side.
func New(cfg config.RemoteConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
	}
}

// Buy purchases outcome tokens. The engine commits the buy itself; a
// slippage rejection is reported as domain.ErrInsufficientOutcomeTokens.
func (c *Client) Buy(ctx context.Context, req BuyRequest) (*BuyResult, error) {
	var out BuyResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("market", req.MarketID.String()).
		SetBody(req).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/markets/{market}/buy")
	if err := check("Buy", resp, err); err != nil {
		return nil, err
	}
	if out.OutcomeTokens == nil {
		return nil, fmt.Errorf("amm.Buy: response without outcome_tokens")
	}
	return &out, nil
}

// ResolveAndPayout settles the market on the engine and returns the play-token
// balance paid to each owner of the winning outcome.
func (c *Client) ResolveAndPayout(ctx context.Context, marketID uuid.UUID, reporter string, outcomeIndex int) ([]Holding, error) {
	var out []Holding
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("market", marketID.String()).
		SetBody(resolveBody{Reporter: reporter, OutcomeIndex: outcomeIndex}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/markets/{market}/resolve")
	if err := check("ResolveAndPayout", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Refund returns every investor's stake of a voided market.
func (c *Client) Refund(ctx context.Context, marketID uuid.UUID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("market", marketID.String()).
		SetError(&errorBody{}).
		Post("/markets/{market}/refund")
	return check("Refund", resp, err)
}

// InvestorsOfOutcome lists the current holders of an outcome's tokens.
func (c *Client) InvestorsOfOutcome(ctx context.Context, marketID uuid.UUID, outcomeIndex int) ([]Holding, error) {
	var out []Holding
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"market":  marketID.String(),
			"outcome": strconv.Itoa(outcomeIndex),
		}).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/markets/{market}/outcomes/{outcome}/investors")
	if err := check("InvestorsOfOutcome", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// UserInteractions returns every buy and sell the engine recorded for a market.
func (c *Client) UserInteractions(ctx context.Context, marketID uuid.UUID) ([]Interaction, error) {
	var out []Interaction
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("market", marketID.String()).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/markets/{market}/interactions")
	if err := check("UserInteractions", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// QuoteBuy returns how many outcome tokens amount would buy right now,
// without trading.
func (c *Client) QuoteBuy(ctx context.Context, marketID uuid.UUID, amount *big.Int, outcomeIndex int) (*big.Int, error) {
	var out quoteBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"market":  marketID.String(),
			"outcome": strconv.Itoa(outcomeIndex),
		}).
		SetQueryParam("amount", amount.String()).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/markets/{market}/outcomes/{outcome}/quote")
	if err := check("QuoteBuy", resp, err); err != nil {
		return nil, err
	}
	if out.OutcomeTokens == nil {
		return nil, fmt.Errorf("amm.QuoteBuy: response without outcome_tokens")
	}
	return out.OutcomeTokens, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("amm.%s: %w", op, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Op: op, Status: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	if body, ok := resp.Error().(*errorBody); ok && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	if resp.StatusCode() == http.StatusConflict && apiErr.Code == codeSlippage {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientOutcomeTokens, apiErr.Message)
	}
	return apiErr
}
