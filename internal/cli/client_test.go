package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/api"
	"lifesim/internal/catalog"
	"lifesim/internal/config"
	"lifesim/internal/credit"
	"lifesim/internal/sim"
	"lifesim/internal/store"
	"lifesim/internal/threshold"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := sim.NewService(store.NewMemory(), sim.NewPipeline(cat, nil), 3, logger)
	srv := httptest.NewServer(api.New(config.APIConfig{}, logger, svc).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientWorldAndTick(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	require.NoError(t, c.Health(ctx))

	w, err := c.World(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, w.Businesses)
	for _, b := range w.Businesses {
		assert.NotNil(t, b.Line)
	}

	rep, err := c.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.Tick)

	reports, err := c.Reports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
}

func TestClientCalculators(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	res, err := c.Thresholds(ctx, threshold.Stats{Health: 100, Sanity: 5, Intelligence: 100, Happiness: 100})
	require.NoError(t, err)
	assert.False(t, res.CanManageBusiness)

	table, err := c.Schedule(ctx, 10000, 8, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2626.24, table.Payment, 1e-9)

	out, err := c.Loan(ctx, credit.LoanRequest{Type: credit.DebtConsumer, Amount: 0}, 1)
	require.NoError(t, err)
	v := out["validation"].(map[string]any)
	assert.Equal(t, "LOAN_INVALID_AMOUNT", v["code"])
}

func TestClientAPIError(t *testing.T) {
	c := newClient(t)
	_, err := c.Schedule(context.Background(), 0, 8, 4)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
