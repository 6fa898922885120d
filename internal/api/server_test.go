package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/catalog"
	"lifesim/internal/config"
	"lifesim/internal/inflation"
	"lifesim/internal/sim"
	"lifesim/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	ix, err := inflation.NewIndexer(0)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := sim.NewService(store.NewMemory(), sim.NewPipeline(cat, ix), 21, logger)
	srv := httptest.NewServer(New(config.APIConfig{}, logger, svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	status, out := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["ok"])
}

func TestInflationPrice(t *testing.T) {
	srv := newTestServer(t)
	status, out := do(t, srv, http.MethodPost, "/v1/inflation/price", `{
		"base_price": 1000, "category": "default", "base_year": 2024, "current_year": 2026,
		"inflation": 5, "inflation_history": [3, 4]
	}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1092.0, out["price"])
	assert.Equal(t, "default", out["category"])

	status, out = do(t, srv, http.MethodPost, "/v1/inflation/price", `{"base_price": 1, "country_id": "atlantis"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out["error"], "unknown country")

	status, _ = do(t, srv, http.MethodPost, "/v1/inflation/price", `{"base_price": 1, "bogus": true}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreditEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, out := do(t, srv, http.MethodPost, "/v1/credit/rating", `{"monthly_income": 5000, "cash": 20000}`)
	require.Equal(t, http.StatusOK, status)
	profile := out["profile"].(map[string]any)
	assert.Equal(t, 70.0, profile["rating"])
	assert.Contains(t, out["max_loan"], "mortgage")

	status, out = do(t, srv, http.MethodPost, "/v1/credit/loan",
		`{"type": "auto", "amount": 10000, "cash": 20000, "monthly_income": 5000, "key_rate": 2}`,
		"X-Seed", "5")
	require.Equal(t, http.StatusCreated, status)
	debt := out["debt"].(map[string]any)
	assert.Equal(t, 10.0, debt["interest_rate"])
	assert.Equal(t, 16.0, debt["term_quarters"])

	status, out = do(t, srv, http.MethodPost, "/v1/credit/loan", `{"type": "auto", "amount": -5}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	v := out["validation"].(map[string]any)
	assert.Equal(t, false, v["is_valid"])
	assert.Equal(t, "LOAN_INVALID_AMOUNT", v["code"])

	status, out = do(t, srv, http.MethodPost, "/v1/credit/schedule", `{"principal": 10000, "annual_rate": 8, "term_quarters": 4}`)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["rows"], 4)

	status, _ = do(t, srv, http.MethodPost, "/v1/credit/schedule", `{"principal": 10000, "annual_rate": 8, "term_quarters": 0}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBusinessFinancials(t *testing.T) {
	srv := newTestServer(t)
	body := `{
		"business": {
			"id": "b1", "status": "active", "price": 5, "reputation": 50, "efficiency": 100,
			"base_demand": 100, "max_employees": 5,
			"line": {"kind": "service", "service": {"price_per_unit": 100, "cost_per_unit": 10}},
			"employees": [{"id": "e1", "role": "worker", "salary": 1000, "productivity": 1, "stars": 1}]
		},
		"current_year": 2025,
		"corporate_tax_rate": 20,
		"player": {"stats": {"health": 100, "sanity": 15, "intelligence": 100, "happiness": 100}}
	}`
	status, out := do(t, srv, http.MethodPost, "/v1/business/financials", body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1000.0, out["income"])
}

func TestBusinessHireRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t)
	body := `{
		"business": {"id": "b1", "status": "active", "max_employees": 5,
			"line": {"kind": "service", "service": {"price_per_unit": 10, "cost_per_unit": 1}}},
		"candidate": {"id": "c1", "role": "wizard", "salary": 100, "productivity": 1, "stars": 3},
		"year": 2025
	}`
	status, out := do(t, srv, http.MethodPost, "/v1/business/hire", body)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "HIRE_UNKNOWN_ROLE", out["validation"].(map[string]any)["code"])

	status, out = do(t, srv, http.MethodPost, "/v1/business/candidates", `{"roles": ["worker"], "count": 3}`, "X-Seed", "8")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["candidates"], 3)
}

func TestBusinessOpenFromTemplate(t *testing.T) {
	srv := newTestServer(t)
	status, out := do(t, srv, http.MethodPost, "/v1/business/open",
		`{"template": "cafe", "id": "b-new", "owner_id": "p1", "country_id": "meridia", "year": 2026}`)
	require.Equal(t, http.StatusCreated, status)
	b := out["business"].(map[string]any)
	assert.Equal(t, "b-new", b["id"])
	assert.Equal(t, "meridia", b["country_id"])
	assert.Equal(t, "opening", b["status"])
	assert.Equal(t, 2026.0, b["opened_year"])

	status, out = do(t, srv, http.MethodPost, "/v1/business/open", `{"template": "cafe", "country_id": "karst"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, out["business"].(map[string]any)["id"])
}

func TestBusinessOpenErrors(t *testing.T) {
	srv := newTestServer(t)
	status, _ := do(t, srv, http.MethodPost, "/v1/business/open", `{"template": "casino", "country_id": "meridia"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, srv, http.MethodPost, "/v1/business/open", `{"template": "cafe", "country_id": "atlantis"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, srv, http.MethodPost, "/v1/business/open", `{"template": "cafe"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBusinessHireRejectsFrozenBusiness(t *testing.T) {
	srv := newTestServer(t)
	body := `{
		"business": {"id": "b1", "status": "frozen", "max_employees": 5,
			"line": {"kind": "service", "service": {"price_per_unit": 10, "cost_per_unit": 1}}},
		"candidate": {"id": "c1", "role": "worker", "salary": 100, "productivity": 1, "stars": 3},
		"year": 2025
	}`
	status, out := do(t, srv, http.MethodPost, "/v1/business/hire", body)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "BUSINESS_INACTIVE", out["validation"].(map[string]any)["code"])
}

func TestThresholds(t *testing.T) {
	srv := newTestServer(t)
	status, out := do(t, srv, http.MethodPost, "/v1/thresholds", `{"health": 5, "sanity": 100, "intelligence": 100, "happiness": 100}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["can_work"])
	assert.Equal(t, 5000.0, out["medical_cost"])
}

func TestWorldTick(t *testing.T) {
	srv := newTestServer(t)

	status, out := do(t, srv, http.MethodGet, "/v1/world", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, out["tick"])
	assert.NotEmpty(t, out["countries"])

	status, out = do(t, srv, http.MethodPost, "/v1/world/tick", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["tick"])

	status, out = do(t, srv, http.MethodGet, "/v1/world", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, out["tick"])
	assert.Equal(t, 2.0, out["quarter"])

	status, out = do(t, srv, http.MethodGet, "/v1/world/reports?limit=5", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["reports"], 1)

	status, _ = do(t, srv, http.MethodGet, "/v1/world/reports?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
