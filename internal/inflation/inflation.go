// Package inflation converts a country's annual inflation history into
// category-specific cumulative price multipliers.
//
// History is stored newest first. When the economy records HistoryYear, the
// calendar year of history[0], year y lives at history[HistoryYear-y].
// Without it the mapping counts from the array's end: year baseYear+k lives
// at history[len(history)-k]. The current year always uses the live annual
// rate, which supersedes any opening value recorded for it.
package inflation

import (
	"math"
	"strings"
)

type Category string

const (
	CategoryHousing   Category = "housing"
	CategoryBusiness  Category = "business"
	CategoryEducation Category = "education"
	CategoryHealth    Category = "health"
	CategoryTransport Category = "transport"
	CategoryServices  Category = "services"
	CategoryFood      Category = "food"
	CategorySalaries  Category = "salaries"
	CategoryDefault   Category = "default"
)

var categoryFactors = map[Category]float64{
	CategoryHousing:   1.5,
	CategoryBusiness:  1.3,
	CategoryEducation: 1.2,
	CategoryHealth:    1.1,
	CategoryTransport: 1.0,
	CategoryServices:  0.9,
	CategoryFood:      0.5,
	CategorySalaries:  1.0,
	CategoryDefault:   1.0,
}

// Economy is the slice of country state the engine reads.
type Economy struct {
	ID        string
	Inflation float64
	History   []float64
	// HistoryYear is the year History[0] was recorded for. Zero means the
	// history ends at baseYear+len(History) for every query.
	HistoryYear    int
	SalaryModifier float64
}

// ParseCategory maps free-form input to a known category, falling back to
// CategoryDefault.
func ParseCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := categoryFactors[c]; ok {
		return c
	}
	return CategoryDefault
}

// Factor returns the elasticity factor for a category.
func Factor(category Category) float64 {
	if f, ok := categoryFactors[category]; ok {
		return f
	}
	return categoryFactors[CategoryDefault]
}

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryHousing, CategoryBusiness, CategoryEducation, CategoryHealth,
		CategoryTransport, CategoryServices, CategoryFood, CategorySalaries, CategoryDefault,
	}
}

// CumulativeMultiplier compounds every rate in history with the category
// factor: Π(1 + factor × rate/100).
func CumulativeMultiplier(history []float64, category Category) float64 {
	factor := Factor(category)
	m := 1.0
	for _, rate := range history {
		if math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		step := 1 + factor*rate/100
		if step < 0 {
			step = 0
		}
		m *= step
	}
	return m
}

// YearRates returns the annual rates for the years strictly after baseYear
// through currentYear, oldest first.
func YearRates(econ Economy, baseYear, currentYear int) []float64 {
	if baseYear >= currentYear {
		return nil
	}
	n := len(econ.History)
	newest := econ.HistoryYear
	if newest <= 0 {
		newest = baseYear + n
	}
	out := make([]float64, 0, currentYear-baseYear)
	for year := baseYear + 1; year <= currentYear; year++ {
		if year == currentYear {
			out = append(out, econ.Inflation)
			continue
		}
		idx := newest - year
		if idx < 0 || idx >= n {
			out = append(out, econ.Inflation)
			continue
		}
		out = append(out, econ.History[idx])
	}
	return out
}

// ApplyInflationToPrice indexes basePrice from baseYear money to
// currentYear money and rounds to the nearest unit.
func ApplyInflationToPrice(basePrice float64, econ Economy, category Category, baseYear, currentYear int) float64 {
	if math.IsNaN(basePrice) || math.IsInf(basePrice, 0) || basePrice < 0 {
		return 0
	}
	if baseYear >= currentYear || len(econ.History) == 0 {
		return basePrice
	}
	m := CumulativeMultiplier(YearRates(econ, baseYear, currentYear), category)
	return math.Round(basePrice * m)
}
