package events

import (
	"math"
	"strings"

	"lifesim/internal/inflation"
)

const DefaultArchetype = "default"

// Country is the macro state of one simulated country.
type Country struct {
	ID                   string    `json:"id" yaml:"id"`
	Name                 string    `json:"name" yaml:"name"`
	Archetype            string    `json:"archetype" yaml:"archetype"`
	GDPGrowth            float64   `json:"gdp_growth" yaml:"gdp_growth"`
	Inflation            float64   `json:"inflation" yaml:"inflation"`
	StockMarketInflation float64   `json:"stock_market_inflation" yaml:"stock_market_inflation"`
	KeyRate              float64   `json:"key_rate" yaml:"key_rate"`
	Unemployment         float64   `json:"unemployment" yaml:"unemployment"`
	TaxRate              float64   `json:"tax_rate" yaml:"tax_rate"`
	CorporateTaxRate     float64   `json:"corporate_tax_rate" yaml:"corporate_tax_rate"`
	SalaryModifier       float64   `json:"salary_modifier" yaml:"salary_modifier"`
	CostOfLivingModifier float64   `json:"cost_of_living_modifier" yaml:"cost_of_living_modifier"`
	InflationHistory     []float64 `json:"inflation_history" yaml:"inflation_history"`
	HistoryYear          int       `json:"history_year" yaml:"history_year"`
	BaseYear             int       `json:"base_year" yaml:"base_year"`
	ActiveEvents         []Event   `json:"active_events" yaml:"active_events"`
}

// Archetype tunes drift and the inflation floor for a class of countries.
type Archetype struct {
	Floor    float64 `json:"floor" yaml:"floor"`
	Target   float64 `json:"target" yaml:"target"`
	GDPNoise float64 `json:"gdp_noise" yaml:"gdp_noise"`
}

func DefaultArchetypes() map[string]Archetype {
	return map[string]Archetype{
		"developed":      {Floor: 0, Target: 2, GDPNoise: 0.2},
		"emerging":       {Floor: 1, Target: 5, GDPNoise: 0.4},
		"unstable":       {Floor: 2, Target: 9, GDPNoise: 0.8},
		DefaultArchetype: {Floor: 0, Target: 4, GDPNoise: 0.3},
	}
}

// Economy exposes the fields the inflation engine reads.
func (c Country) Economy() inflation.Economy {
	return inflation.Economy{
		ID:             c.ID,
		Inflation:      c.Inflation,
		History:        c.InflationHistory,
		HistoryYear:    c.HistoryYear,
		SalaryModifier: c.SalaryModifier,
	}
}

// Clone returns a deep copy so callers never share slices with a snapshot.
func (c Country) Clone() Country {
	out := c
	if c.InflationHistory != nil {
		out.InflationHistory = append([]float64(nil), c.InflationHistory...)
	}
	if c.ActiveEvents != nil {
		out.ActiveEvents = append([]Event(nil), c.ActiveEvents...)
	}
	return out
}

// RollYear closes closingYear: the live rate is recorded as the newest
// history entry, HistoryYear moves to closingYear and the history is trimmed
// to maxHistory entries. Years skipped since the last roll are filled with the
// live rate, and entries at or after closingYear are replaced. A closingYear
// of zero closes the year after HistoryYear.
func RollYear(c Country, closingYear, maxHistory int) Country {
	out := c.Clone()
	rate := out.Inflation
	if !finite(rate) {
		rate = 0
	}
	if closingYear <= 0 && out.HistoryYear > 0 {
		closingYear = out.HistoryYear + 1
	}
	history := out.InflationHistory
	if out.HistoryYear > 0 && closingYear > 0 {
		switch {
		case closingYear <= out.HistoryYear:
			history = history[min(out.HistoryYear-closingYear+1, len(history)):]
		case closingYear > out.HistoryYear+1:
			for year := out.HistoryYear + 1; year < closingYear; year++ {
				history = append([]float64{rate}, history...)
			}
		}
	}
	out.InflationHistory = append([]float64{rate}, history...)
	if closingYear > 0 {
		out.HistoryYear = closingYear
	}
	if maxHistory > 0 && len(out.InflationHistory) > maxHistory {
		out.InflationHistory = out.InflationHistory[:maxHistory]
	}
	return out
}

func normalizeArchetype(name string, archetypes map[string]Archetype) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := archetypes[name]; ok {
		return name
	}
	return DefaultArchetype
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
