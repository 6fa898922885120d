package inflation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

const defaultIndexerSize = 4096

// Indexer memoizes cumulative multipliers. Multipliers depend only on the
// selected rates, so a cached value is valid for any caller passing the same
// snapshot.
type Indexer struct {
	cache *lru.Cache
}

func NewIndexer(size int) (*Indexer, error) {
	if size <= 0 {
		size = defaultIndexerSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("inflation cache: %w", err)
	}
	return &Indexer{cache: cache}, nil
}

// Multiplier returns the cumulative multiplier for a year window.
func (ix *Indexer) Multiplier(econ Economy, category Category, baseYear, currentYear int) float64 {
	if baseYear >= currentYear || len(econ.History) == 0 {
		return 1
	}
	category = ParseCategory(string(category))
	key := cacheKey(econ, category, baseYear, currentYear)
	if ix != nil && ix.cache != nil {
		if v, ok := ix.cache.Get(key); ok {
			return v.(float64)
		}
	}
	m := CumulativeMultiplier(YearRates(econ, baseYear, currentYear), category)
	if ix != nil && ix.cache != nil {
		ix.cache.Add(key, m)
	}
	return m
}

// Price is ApplyInflationToPrice backed by the cache.
func (ix *Indexer) Price(basePrice float64, econ Economy, category Category, baseYear, currentYear int) float64 {
	if math.IsNaN(basePrice) || math.IsInf(basePrice, 0) || basePrice < 0 {
		return 0
	}
	if baseYear >= currentYear || len(econ.History) == 0 {
		return basePrice
	}
	return math.Round(basePrice * ix.Multiplier(econ, category, baseYear, currentYear))
}

// Salary indexes a salary agreed in hireYear, applies the country's salary
// modifier and rounds the result to cents.
func (ix *Indexer) Salary(base float64, econ Economy, hireYear, currentYear int) float64 {
	if math.IsNaN(base) || math.IsInf(base, 0) || base < 0 {
		return 0
	}
	mod := econ.SalaryModifier
	if mod <= 0 || math.IsNaN(mod) || math.IsInf(mod, 0) {
		mod = 1
	}
	return math.Round(base*ix.Multiplier(econ, CategorySalaries, hireYear, currentYear)*mod*100) / 100
}

// Len reports how many multipliers are cached.
func (ix *Indexer) Len() int {
	if ix == nil || ix.cache == nil {
		return 0
	}
	return ix.cache.Len()
}

func cacheKey(econ Economy, category Category, baseYear, currentYear int) string {
	var b strings.Builder
	b.WriteString(string(category))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(baseYear))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(currentYear))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(econ.HistoryYear))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(econ.Inflation, 'g', -1, 64))
	for _, h := range econ.History {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(h, 'g', -1, 64))
	}
	return b.String()
}
