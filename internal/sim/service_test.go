package sim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/catalog"
	"lifesim/internal/sim"
	"lifesim/internal/store"
)

func newService(t *testing.T, st sim.Store, seed int64) *sim.Service {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sim.NewService(st, sim.NewPipeline(cat, nil), seed, logger)
}

func TestServiceSeedsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(t, mem, 5)

	w, err := svc.World(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Seed)
	assert.NotEmpty(t, w.Players)
	assert.False(t, w.UpdatedAt.IsZero())

	stored, err := mem.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(w.Businesses), len(stored.Businesses))
}

func TestServiceRunTickPersists(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := newService(t, mem, 11)

	reports, err := svc.Run(ctx, 5)
	require.NoError(t, err)
	require.Len(t, reports, 5)
	assert.True(t, reports[3].YearRolled)

	w, err := svc.World(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Tick)
	assert.Equal(t, 2, w.Quarter)

	journal, err := svc.Reports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, journal, 5)
	assert.Equal(t, int64(5), journal[0].Tick)
	assert.False(t, journal[0].CreatedAt.IsZero())
}

func TestServiceSameSeedSameHistory(t *testing.T) {
	ctx := context.Background()
	a := newService(t, store.NewMemory(), 77)
	b := newService(t, store.NewMemory(), 77)

	ra, err := a.Run(ctx, 6)
	require.NoError(t, err)
	rb, err := b.Run(ctx, 6)
	require.NoError(t, err)
	for i := range ra {
		ra[i].CreatedAt = rb[i].CreatedAt
	}
	assert.Equal(t, ra, rb)
}

type failingStore struct {
	*store.Memory
}

var errDown = errors.New("store down")

func (failingStore) SaveWorld(context.Context, sim.World) error { return errDown }

func TestServiceWrapsStoreErrors(t *testing.T) {
	svc := newService(t, failingStore{store.NewMemory()}, 1)
	_, err := svc.RunTick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDown))
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(t, store.NewMemory(), 1)
	reports, err := svc.Run(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reports)
}
