// Package ledger is the HTTP client of the token ledger that owns every
// account balance.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
)

type balanceBody struct {
	Balance *big.Int `json:"balance"`
}

type mintBody struct {
	Namespace string   `json:"namespace"`
	Symbol    string   `json:"symbol"`
	Amount    *big.Int `json:"amount"`
}

// Client talks to the ledger service.
type Client struct {
	http *resty.Client
}

// New creates a Client for the ledger at cfg.BaseURL.
func New(cfg config.RemoteConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
	}
}

// BalanceOf returns the scaled balance of account.
func (c *Client) BalanceOf(ctx context.Context, account domain.Account) (*big.Int, error) {
	var out balanceBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("owner", account.Owner).
		SetQueryParams(map[string]string{
			"namespace": account.Namespace,
			"symbol":    account.Symbol,
		}).
		SetResult(&out).
		Get("/accounts/{owner}/balance")
	if err != nil {
		return nil, fmt.Errorf("ledger.BalanceOf: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("ledger.BalanceOf: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.Balance == nil {
		return big.NewInt(0), nil
	}
	return out.Balance, nil
}

// Mint credits amount scaled units to account.
func (c *Client) Mint(ctx context.Context, account domain.Account, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger.Mint: amount must be positive")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("owner", account.Owner).
		SetBody(mintBody{Namespace: account.Namespace, Symbol: account.Symbol, Amount: amount}).
		Post("/accounts/{owner}/mint")
	if err != nil {
		return fmt.Errorf("ledger.Mint: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("ledger.Mint: http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
