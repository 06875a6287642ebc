package ledger_test

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/ledger"
)

func newClient(t *testing.T, h http.HandlerFunc) *ledger.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return ledger.New(config.RemoteConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestBalanceOf(t *testing.T) {
	userID := uuid.New()
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/"+userID.String()+"/balance", r.URL.Path)
		assert.Equal(t, "usr", r.URL.Query().Get("namespace"))
		assert.Equal(t, "WFAIR", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"balance": 5000000}`)
	})

	bal, err := client.BalanceOf(context.Background(), domain.UserAccount(userID))
	require.NoError(t, err)
	assert.Equal(t, "500", domain.FromScaled(bal).String())
}

func TestBalanceOf_Error(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ledger offline", http.StatusBadGateway)
	})

	_, err := client.BalanceOf(context.Background(), domain.UserAccount(uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestMint(t *testing.T) {
	userID := uuid.New()
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/"+userID.String()+"/mint", r.URL.Path)
		var body struct {
			Namespace string   `json:"namespace"`
			Symbol    string   `json:"symbol"`
			Amount    *big.Int `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "usr", body.Namespace)
		assert.Equal(t, int64(1_000_000), body.Amount.Int64())
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Mint(context.Background(), domain.UserAccount(userID), big.NewInt(1_000_000))
	require.NoError(t, err)
}

func TestMint_RejectsNonPositive(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	require.Error(t, client.Mint(context.Background(), domain.UserAccount(uuid.New()), big.NewInt(0)))
}
