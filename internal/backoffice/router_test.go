package backoffice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallfair/settlement/internal/backoffice"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/service"
)

const secret = "backoffice-test-secret-0123456789"

type stubMarkets struct {
	markets []*domain.Market
}

func (s stubMarkets) ListByStatus(_ context.Context, statuses ...domain.MarketStatus) ([]*domain.Market, error) {
	var out []*domain.Market
	for _, m := range s.markets {
		for _, st := range statuses {
			if m.Status == st {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type stubCloser struct{ closed int }

func (s stubCloser) CloseExpired(context.Context) (int, error) { return s.closed, nil }

type stubReconciler struct{}

func (stubReconciler) CheckMarket(_ context.Context, id uuid.UUID) (*domain.ReconciliationReport, error) {
	return nil, domain.ErrMarketNotFound
}

func (stubReconciler) CheckAll(context.Context) ([]*domain.ReconciliationReport, error) {
	return []*domain.ReconciliationReport{{
		Discrepancies: []domain.Discrepancy{
			{Kind: domain.DiscrepancyLocalExceedsEngine},
			{Kind: domain.DiscrepancyEngineExceedsLocal},
			{Kind: domain.DiscrepancyEngineExceedsLocal},
		},
	}}, nil
}

func newRouter(t *testing.T, allowedIPs []string) http.Handler {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	markets := stubMarkets{markets: []*domain.Market{
		{ID: uuid.New(), Status: domain.StatusActive, EndDate: past},
		{ID: uuid.New(), Status: domain.StatusActive, EndDate: future},
		{ID: uuid.New(), Status: domain.StatusClosed, EndDate: past},
		{ID: uuid.New(), Status: domain.StatusResolved, EndDate: past},
	}}
	return backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		Tokens:     service.NewTokenVerifier(secret),
		Markets:    markets,
		Closer:     stubCloser{closed: 2},
		Reconciler: stubReconciler{},
		Cfg: &config.Config{Server: config.ServerConfig{
			Env:                  "development",
			BackofficeAllowedIPs: allowedIPs,
		}},
	})
}

func bearer(t *testing.T, role domain.UserRole) string {
	t.Helper()
	claims := service.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: string(role),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func get(t *testing.T, h http.Handler, method, path, auth string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:4000"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return rr.Code, body
}

func TestBackoffice_RequiresAdmin(t *testing.T) {
	h := newRouter(t, nil)

	code, _ := get(t, h, http.MethodGet, "/admin/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, h, http.MethodGet, "/admin/dashboard", bearer(t, domain.RoleReporter))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestBackoffice_IPAllowlist(t *testing.T) {
	code, body := get(t, newRouter(t, []string{"192.168.1.1"}), http.MethodGet, "/admin/dashboard", bearer(t, domain.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ERR_IP_DENIED", body["code"])

	code, _ = get(t, newRouter(t, []string{"10.0.0.1"}), http.MethodGet, "/admin/dashboard", bearer(t, domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, code)
}

func TestBackoffice_Dashboard(t *testing.T) {
	code, body := get(t, newRouter(t, nil), http.MethodGet, "/admin/dashboard", bearer(t, domain.RoleAdmin))
	require.Equal(t, http.StatusOK, code)

	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 4, data["total"])
	assert.EqualValues(t, 1, data["overdue_active"])
	counts := data["markets"].(map[string]interface{})
	assert.EqualValues(t, 2, counts["active"])
	assert.EqualValues(t, 0, counts["canceled"])
}

func TestBackoffice_ListMarkets(t *testing.T) {
	h := newRouter(t, nil)
	admin := bearer(t, domain.RoleAdmin)

	code, body := get(t, h, http.MethodGet, "/admin/markets?status=active,closed&limit=2&page=2", admin)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 3, body["meta"].(map[string]interface{})["total"])

	code, _ = get(t, h, http.MethodGet, "/admin/markets?status=paused", admin)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBackoffice_ListMarketsPageBounds(t *testing.T) {
	h := newRouter(t, nil)
	admin := bearer(t, domain.RoleAdmin)

	for _, page := range []string{"3", "184467440737095517", "9223372036854775807"} {
		code, body := get(t, h, http.MethodGet, "/admin/markets?limit=100&page="+page, admin)
		require.Equal(t, http.StatusOK, code, page)
		assert.Empty(t, body["data"], page)
		assert.EqualValues(t, 4, body["meta"].(map[string]interface{})["total"], page)
	}

	code, body := get(t, h, http.MethodGet, "/admin/markets?limit=5000&page=-4", admin)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 4)
	meta := body["meta"].(map[string]interface{})
	assert.EqualValues(t, 1, meta["page"])
	assert.EqualValues(t, 50, meta["limit"])
}

func TestBackoffice_CloseAndReconcile(t *testing.T) {
	h := newRouter(t, nil)
	admin := bearer(t, domain.RoleAdmin)

	code, body := get(t, h, http.MethodPost, "/admin/markets/close-expired", admin)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["data"].(map[string]interface{})["closed"])

	code, body = get(t, h, http.MethodGet, "/admin/reconcile", admin)
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["defects"])
	assert.EqualValues(t, 2, data["mismatches"])

	code, _ = get(t, h, http.MethodGet, "/admin/markets/"+uuid.NewString()+"/reconcile", admin)
	assert.Equal(t, http.StatusNotFound, code)
}
