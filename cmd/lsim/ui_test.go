package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/catalog"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/inflation"
	"lifesim/internal/sim"
	"lifesim/internal/store"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.00", formatMoney(0))
	assert.Equal(t, "999.50", formatMoney(999.5))
	assert.Equal(t, "1,234,567.89", formatMoney(1234567.891))
	assert.Equal(t, "-12,000.00", formatMoney(-12000))
	assert.Equal(t, "n/a", formatMoney(math.NaN()))
}

func TestComma(t *testing.T) {
	assert.Equal(t, "12", comma(12))
	assert.Equal(t, "123,456", comma(123456))
	assert.Equal(t, "1,000,000", comma(1000000))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short ", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestSortedDebtTypes(t *testing.T) {
	got := sortedDebtTypes(map[credit.DebtType]float64{
		credit.DebtMortgage: 1,
		credit.DebtAuto:     1,
		credit.DebtBusiness: 1,
	})
	assert.Equal(t, []credit.DebtType{credit.DebtAuto, credit.DebtBusiness, credit.DebtMortgage}, got)
}

func TestCountryOf(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	first, err := countryOf(cat, "")
	require.NoError(t, err)
	assert.Equal(t, cat.SeedCountries()[0].ID, first.ID)

	_, err = countryOf(cat, "atlantis")
	assert.ErrorIs(t, err, sim.ErrUnknownCountry)
}

func TestSummarize(t *testing.T) {
	line := summarize(sim.Report{
		YearRolled: true,
		Countries: []sim.CountryReport{
			{CountryID: "north", Triggered: &events.Event{Type: events.KindBoom, Duration: 3}},
		},
		Businesses: []sim.BusinessReport{{Profit: 1500}, {Profit: -500}},
		Players: []sim.PlayerReport{{
			MedicalCost: 100,
			Payments:    []credit.Payment{{Amount: 250}},
		}},
	})
	assert.Contains(t, line, "business profit 1,000.00")
	assert.Contains(t, line, "loan payments 250.00")
	assert.Contains(t, line, "boom in north")
	assert.Contains(t, line, "year closed")
}

func TestWatchModelSteps(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	ix, err := inflation.NewIndexer(0)
	require.NoError(t, err)
	svc := sim.NewService(store.NewMemory(), sim.NewPipeline(cat, ix), 3, slog.New(slog.NewTextHandler(io.Discard, nil)))

	m := newWatchModel(context.Background(), svc, time.Second, 1)
	next, _ := m.Update(m.loadWorld())
	m = next.(watchModel)
	assert.Len(t, m.table.Rows(), len(cat.SeedCountries()))

	next, cmd := m.Update(tickDueMsg{})
	m = next.(watchModel)
	require.True(t, m.running)
	require.NotNil(t, cmd)

	next, cmd = m.Update(cmd())
	m = next.(watchModel)
	assert.False(t, m.running)
	assert.Equal(t, 1, m.ticks)
	require.NotNil(t, m.last)
	assert.Equal(t, int64(1), m.last.Tick)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestWatchModelPause(t *testing.T) {
	m := watchModel{every: time.Second}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = next.(watchModel)
	assert.True(t, m.paused)

	next, cmd := m.Update(tickDueMsg{})
	m = next.(watchModel)
	assert.False(t, m.running)
	assert.NotNil(t, cmd)
}
