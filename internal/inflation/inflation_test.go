package inflation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInflationToPriceConcrete(t *testing.T) {
	tests := []struct {
		name     string
		econ     Economy
		category Category
		base     float64
		from, to int
		want     float64
	}{
		{
			name:     "two years default",
			econ:     Economy{Inflation: 5, History: []float64{3, 4}},
			category: CategoryDefault,
			base:     1000,
			from:     2024,
			to:       2026,
			want:     1092,
		},
		{
			name:     "housing one year",
			econ:     Economy{Inflation: 3, History: []float64{3}},
			category: CategoryHousing,
			base:     100000,
			from:     2024,
			to:       2025,
			want:     104500,
		},
		{
			name:     "unknown category uses default",
			econ:     Economy{Inflation: 5, History: []float64{3, 4}},
			category: Category("yachts"),
			base:     1000,
			from:     2024,
			to:       2026,
			want:     1092,
		},
		{
			name:     "empty history",
			econ:     Economy{Inflation: 9},
			category: CategoryHousing,
			base:     777,
			from:     2020,
			to:       2026,
			want:     777,
		},
		{
			name:     "negative base price",
			econ:     Economy{Inflation: 5, History: []float64{3}},
			category: CategoryFood,
			base:     -10,
			from:     2024,
			to:       2025,
			want:     0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyInflationToPrice(tc.base, tc.econ, tc.category, tc.from, tc.to)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyInflationSameYearIsNoop(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		price := rng.Float64() * 1e6
		econ := Economy{Inflation: rng.Float64() * 20, History: randomHistory(rng, 1+rng.Intn(10))}
		for _, cat := range Categories() {
			year := 2000 + rng.Intn(50)
			require.Equal(t, price, ApplyInflationToPrice(price, econ, cat, year, year))
		}
	}
}

func TestYearRatesCountFromEnd(t *testing.T) {
	econ := Economy{Inflation: 9, History: []float64{1, 2, 3}}
	// 2021 -> history[2], 2022 -> history[1], 2023 -> live rate.
	assert.Equal(t, []float64{3, 2, 9}, YearRates(econ, 2020, 2023))
	// Years past the recorded window fall back to the live rate.
	assert.Equal(t, []float64{3, 2, 1, 9, 9}, YearRates(econ, 2020, 2025))
	assert.Nil(t, YearRates(econ, 2025, 2025))
}

func TestYearRatesAnchoredToHistoryYear(t *testing.T) {
	econ := Economy{Inflation: 9, History: []float64{1, 2, 3}, HistoryYear: 2022}
	// 2021 -> history[1], 2022 -> history[0], 2023 -> live rate.
	assert.Equal(t, []float64{2, 1, 9}, YearRates(econ, 2020, 2023))
	assert.Equal(t, []float64{3, 9}, YearRates(econ, 2019, 2021))
	// The anchor does not move with the query's base year.
	assert.Equal(t, []float64{1, 9}, YearRates(econ, 2021, 2023))
	assert.Equal(t, []float64{9, 9}, YearRates(econ, 2017, 2019))
}

func TestCumulativeMultiplierMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		history := randomHistory(rng, 1+rng.Intn(12))
		for _, cat := range Categories() {
			shorter := CumulativeMultiplier(history[:len(history)-1], cat)
			longer := CumulativeMultiplier(history, cat)
			require.GreaterOrEqual(t, longer, shorter)
			require.GreaterOrEqual(t, longer, 1.0)
		}
	}
}

func TestCategoryOrdering(t *testing.T) {
	history := []float64{3, 4, 2.5}
	housing := CumulativeMultiplier(history, CategoryHousing)
	def := CumulativeMultiplier(history, CategoryDefault)
	food := CumulativeMultiplier(history, CategoryFood)
	assert.Greater(t, housing, def)
	assert.Greater(t, def, food)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryHousing, ParseCategory(" Housing "))
	assert.Equal(t, CategoryDefault, ParseCategory("spaceships"))
	assert.Equal(t, 1.0, Factor(Category("nope")))
}

func TestIndexerCachesAndMatches(t *testing.T) {
	ix, err := NewIndexer(16)
	require.NoError(t, err)

	econ := Economy{ID: "de", Inflation: 5, History: []float64{3, 4}, SalaryModifier: 1}
	assert.Equal(t, 1092.0, ix.Price(1000, econ, CategoryDefault, 2024, 2026))
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1092.0, ix.Price(1000, econ, CategoryDefault, 2024, 2026))
	assert.Equal(t, 1, ix.Len())

	econ.SalaryModifier = 1.1
	assert.InDelta(t, 1201.2, ix.Salary(1000, econ, 2024, 2026), 1e-9)

	econ.SalaryModifier = 0
	assert.Equal(t, 500.0, ix.Salary(500, econ, 2026, 2026))
}

func TestSalaryAppliesModifierBeforeRounding(t *testing.T) {
	ix, err := NewIndexer(0)
	require.NoError(t, err)

	econ := Economy{Inflation: 5, History: []float64{3, 4}, SalaryModifier: 1.5}
	// 10 x 1.05 x 1.5; rounding the indexed 10.5 first would give 16.5.
	assert.InDelta(t, 15.75, ix.Salary(10, econ, 2024, 2025), 1e-9)
	assert.InDelta(t, 1234.57, ix.Salary(1234.5678, Economy{SalaryModifier: 1}, 2020, 2026), 1e-9)
	assert.Equal(t, 0.0, ix.Salary(-1, econ, 2024, 2025))
}

func TestNilIndexerStillComputes(t *testing.T) {
	var ix *Indexer
	econ := Economy{Inflation: 3, History: []float64{3}}
	assert.Equal(t, 104500.0, ix.Price(100000, econ, CategoryHousing, 2024, 2025))
	assert.Equal(t, 0, ix.Len())
}

func randomHistory(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64() * 15
	}
	return out
}
