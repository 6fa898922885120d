package sim

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifesim/internal/business"
	"lifesim/internal/catalog"
	"lifesim/internal/credit"
	"lifesim/internal/events"
	"lifesim/internal/inflation"
	"lifesim/internal/randsrc"
	"lifesim/internal/threshold"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	ix, err := inflation.NewIndexer(0)
	require.NoError(t, err)
	return NewPipeline(cat, ix)
}

func healthy() threshold.Stats {
	return threshold.Stats{Health: 100, Sanity: 100, Intelligence: 100, Happiness: 100}
}

func country(id string) events.Country {
	return events.Country{
		ID:               id,
		Name:             id,
		Archetype:        "developed",
		Inflation:        5,
		KeyRate:          3,
		Unemployment:     5,
		CorporateTaxRate: 20,
		SalaryModifier:   1,
		InflationHistory: []float64{3, 4},
		BaseYear:         2024,
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestTickDoesNotMutateInput(t *testing.T) {
	p := newTestPipeline(t)
	w, err := p.Seed(1, randsrc.New(1))
	require.NoError(t, err)
	require.NotEmpty(t, w.Businesses)

	before := mustJSON(t, w)
	_, _ = p.Tick(w, randsrc.New(2))
	assert.Equal(t, before, mustJSON(t, w))
}

func TestTickIsDeterministicForSeed(t *testing.T) {
	run := func() (World, []Report) {
		p := newTestPipeline(t)
		rng := randsrc.New(42)
		w, err := p.Seed(42, rng)
		require.NoError(t, err)
		var reports []Report
		for i := 0; i < 8; i++ {
			var rep Report
			w, rep = p.Tick(w, rng)
			reports = append(reports, rep)
		}
		return w, reports
	}
	w1, r1 := run()
	w2, r2 := run()
	assert.Equal(t, mustJSON(t, w1), mustJSON(t, w2))
	assert.Equal(t, mustJSON(t, r1), mustJSON(t, r2))
	assert.Equal(t, int64(8), w1.Tick)
	assert.Equal(t, 2026, w1.Year)
}

func TestQuarterAdvanceAndYearRoll(t *testing.T) {
	p := newTestPipeline(t)
	w := World{Year: 2025, Quarter: 3, Countries: []events.Country{country("a")}}

	w, rep := p.Tick(w, nil)
	assert.False(t, rep.YearRolled)
	assert.Equal(t, 4, w.Quarter)
	assert.Equal(t, 2025, w.Year)
	assert.Len(t, w.Countries[0].InflationHistory, 2)

	w, rep = p.Tick(w, nil)
	assert.True(t, rep.YearRolled)
	assert.Equal(t, 2025, rep.Year)
	assert.Equal(t, 4, rep.Quarter)
	assert.Equal(t, 1, w.Quarter)
	assert.Equal(t, 2026, w.Year)
	require.Len(t, w.Countries[0].InflationHistory, 3)
	assert.InDelta(t, rep.Countries[0].Inflation, w.Countries[0].InflationHistory[0], 1e-9)
	assert.Equal(t, []float64{3, 4}, w.Countries[0].InflationHistory[1:])
	assert.Equal(t, 2025, w.Countries[0].HistoryYear)
}

func TestSalaryIndexationAcrossYearRolls(t *testing.T) {
	p := newTestPipeline(t)
	shop := serviceShop("p1")
	shop.Employees[0].Salary = 1234.5
	shop.Employees[0].HireYear = 2024
	c := country("a")
	c.SalaryModifier = 1.1
	w := World{
		Year:       2024,
		Quarter:    1,
		Countries:  []events.Country{c},
		Players:    []Player{{ID: "p1", CountryID: "a", Stats: healthy()}},
		Businesses: []business.Business{shop},
	}

	closed := map[int]float64{}
	for i := 0; i < 12; i++ {
		next, rep := p.Tick(w, nil)
		require.Len(t, rep.Businesses, 1)
		live := rep.Countries[0].Inflation

		want := 1234.5
		for year := 2025; year < rep.Year; year++ {
			want *= 1 + closed[year]/100
		}
		if rep.Year > 2024 {
			want *= 1 + live/100
		}
		want = math.Round(want*1.1*100) / 100
		assert.InDelta(t, want, rep.Businesses[0].Salaries, 0.011, "tick %d year %d", rep.Tick, rep.Year)

		if rep.YearRolled {
			closed[rep.Year] = live
		}
		w = next
	}

	require.Len(t, closed, 3)
	assert.Equal(t, 2027, w.Year)
	assert.Equal(t, 2026, w.Countries[0].HistoryYear)
	assert.Equal(t, []float64{closed[2026], closed[2025], closed[2024]}, w.Countries[0].InflationHistory[:3])
}

func TestInvalidQuarterResets(t *testing.T) {
	p := newTestPipeline(t)
	w, rep := p.Tick(World{Quarter: 9}, nil)
	assert.Equal(t, 1, rep.Quarter)
	assert.Equal(t, 2, w.Quarter)
	assert.Equal(t, p.Catalog().StartYear, w.Year)
}

func TestLoanPaymentsSettleDebts(t *testing.T) {
	p := newTestPipeline(t)
	w := World{
		Year:      2025,
		Quarter:   1,
		Countries: []events.Country{country("a")},
		Players: []Player{{
			ID:        "p1",
			CountryID: "a",
			Stats:     healthy(),
			Cash:      5000,
			Debts: []credit.Debt{
				{ID: "last", Type: credit.DebtAuto, PrincipalAmount: 4000, RemainingAmount: 1000, InterestRate: 8, QuarterlyPayment: 1020, TermQuarters: 4, RemainingQuarters: 1},
				{ID: "long", Type: credit.DebtAuto, PrincipalAmount: 10000, RemainingAmount: 10000, InterestRate: 8, QuarterlyPayment: credit.QuarterlyPayment(10000, 8, 4), TermQuarters: 4, RemainingQuarters: 4},
			},
		}},
	}

	next, rep := p.Tick(w, nil)
	pl := next.Players[0]
	require.Len(t, pl.Debts, 1)
	assert.Equal(t, "long", pl.Debts[0].ID)
	assert.Equal(t, 3, pl.Debts[0].RemainingQuarters)

	pr := rep.Players[0]
	assert.Equal(t, []string{"last"}, pr.SettledDebts)
	require.Len(t, pr.Payments, 2)
	assert.InDelta(t, 1020, pr.Payments[0].Amount, 1e-9)
	assert.InDelta(t, 5000-1020-2626.2375, pl.Cash, 0.01)
	assert.InDelta(t, pl.Cash, pr.Cash, 1e-9)

	// the input snapshot keeps both debts
	assert.Len(t, w.Players[0].Debts, 2)
}

func TestUpkeepIsIndexedToCurrentYear(t *testing.T) {
	p := newTestPipeline(t)
	sick := healthy()
	sick.Health = 5

	w := World{
		Year:      2026,
		Quarter:   1,
		Countries: []events.Country{country("a")},
		Players:   []Player{{ID: "p1", CountryID: "a", Stats: sick, Cash: 20000}},
	}
	next, rep := p.Tick(w, nil)
	pr := rep.Players[0]
	assert.Greater(t, pr.MedicalCost, 5000.0)
	assert.Zero(t, pr.TherapyCost)
	assert.Contains(t, pr.Events, "hospitalized")
	assert.InDelta(t, 20000-pr.MedicalCost, next.Players[0].Cash, 1e-9)

	// at the base year nothing is indexed
	w.Year = 2024
	_, rep = p.Tick(w, nil)
	assert.Equal(t, 5000.0, rep.Players[0].MedicalCost)
}

func serviceShop(owner string) business.Business {
	return business.Business{
		ID:           "b-" + owner,
		OwnerID:      owner,
		CountryID:    "a",
		Status:       business.StatusActive,
		Price:        5,
		Line:         &business.ServiceLine{PricePerUnit: 100, CostPerUnit: 10},
		Employees:    []business.Employee{{ID: "e1", Role: business.RoleWorker, Salary: 1000, Productivity: 1, Stars: 1, HireYear: 2025}},
		Reputation:   50,
		Efficiency:   100,
		MaxEmployees: 5,
		OpenedYear:   2025,
		BaseDemand:   100,
	}
}

func TestBusinessUsesOwnerEfficiency(t *testing.T) {
	p := newTestPipeline(t)
	stressed := healthy()
	stressed.Sanity = 15

	w := World{
		Year:      2025,
		Quarter:   2,
		Countries: []events.Country{country("a")},
		Players: []Player{
			{ID: "fit", CountryID: "a", Stats: healthy()},
			{ID: "sad", CountryID: "a", Stats: stressed},
		},
		Businesses: []business.Business{serviceShop("fit"), serviceShop("sad")},
	}
	next, rep := p.Tick(w, nil)
	require.Len(t, rep.Businesses, 2)
	fit, sad := rep.Businesses[0], rep.Businesses[1]
	assert.Equal(t, "b-fit", fit.BusinessID)
	assert.InDelta(t, 2000, fit.Income, 1e-9)
	assert.Less(t, sad.Income, fit.Income)

	b, ok := next.Business("b-fit")
	require.True(t, ok)
	assert.InDelta(t, fit.Profit, b.Cash, 1e-9)
}

func TestOpeningBusinessActivatesAfterFirstTick(t *testing.T) {
	p := newTestPipeline(t)
	shop := serviceShop("p1")
	shop.Status = business.StatusOpening
	w := World{
		Year:       2025,
		Quarter:    1,
		Countries:  []events.Country{country("a")},
		Players:    []Player{{ID: "p1", CountryID: "a", Stats: healthy()}},
		Businesses: []business.Business{shop},
	}

	w, rep := p.Tick(w, nil)
	assert.Zero(t, rep.Businesses[0].Income)
	assert.Equal(t, business.StatusActive, w.Businesses[0].Status)

	_, rep = p.Tick(w, nil)
	assert.Positive(t, rep.Businesses[0].Income)
}

func TestSeedWorld(t *testing.T) {
	p := newTestPipeline(t)
	w, err := p.Seed(9, randsrc.New(9))
	require.NoError(t, err)

	assert.Equal(t, int64(9), w.Seed)
	assert.Equal(t, 1, w.Quarter)
	assert.Len(t, w.Players, len(p.Catalog().Countries))
	assert.Len(t, w.Businesses, len(p.Catalog().Templates))
	for _, b := range w.Businesses {
		_, ok := w.Player(b.OwnerID)
		assert.True(t, ok, b.ID)
		assert.NotEmpty(t, b.Employees)
		assert.Equal(t, business.StatusActive, b.Status)
	}
	for _, pl := range w.Players {
		require.Len(t, pl.Debts, 1)
		assert.Equal(t, credit.DebtBusiness, pl.Debts[0].Type)
		assert.Equal(t, float64(seedCash+seedLoanAmount), pl.Cash)
	}
}
